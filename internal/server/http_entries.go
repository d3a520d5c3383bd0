package server

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
)

// handleAddEntry handles POST /v1/entries.
func (s *RegistryServer) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var e model.ConfigurationEntry
	if !decodeBody(w, r, &e) {
		return
	}
	added, err := s.reg.Entries.Add(r.Context(), e)
	if err != nil {
		s.writeRegistryError(w, r, "add configuration entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// handleListEntries handles GET /v1/entries with the criteria given as
// query parameters. Required content can only be given through search.
func (s *RegistryServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		s.writeRegistryError(w, r, "list configuration entries", err)
		return
	}
	s.findEntries(w, r, c)
}

// handleSearchEntries handles POST /v1/entries/search with EntryCriteria as the body.
func (s *RegistryServer) handleSearchEntries(w http.ResponseWriter, r *http.Request) {
	var c registry.EntryCriteria
	if !decodeBody(w, r, &c) {
		return
	}
	s.findEntries(w, r, c)
}

func (s *RegistryServer) findEntries(w http.ResponseWriter, r *http.Request, c registry.EntryCriteria) {
	entries, err := s.reg.Entries.Find(r.Context(), c)
	if err != nil {
		s.writeRegistryError(w, r, "find configuration entries", err)
		return
	}
	if entries == nil {
		entries = []*model.ConfigurationEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// resolveRequest is the JSON body for POST /v1/entries/resolve.
type resolveRequest struct {
	Filter    model.ConfigurationFilter `json:"filter"`
	VisibleTo []model.Target            `json:"visible_to,omitempty"`
}

// handleResolveEntries handles POST /v1/entries/resolve: a consumer lookup
// that falls back to the global configuration target.
func (s *RegistryServer) handleResolveEntries(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := model.ValidateFilter(&req.Filter); err != nil {
		s.writeRegistryError(w, r, "resolve configuration entries", err)
		return
	}
	entries, err := s.reg.Entries.FindWithGlobalFallback(r.Context(), req.Filter, req.VisibleTo)
	if err != nil {
		s.writeRegistryError(w, r, "resolve configuration entries", err)
		return
	}
	if entries == nil {
		entries = []*model.ConfigurationEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleGetEntry handles GET /v1/entries/{id}.
func (s *RegistryServer) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.reg.Entries.FindByID(r.Context(), id)
	if err != nil {
		s.writeRegistryError(w, r, "get configuration entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleUpdateEntry handles PATCH /v1/entries/{id}. Fields absent from the
// body are left unchanged.
func (s *RegistryServer) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var delta model.EntryDelta
	if !decodeBody(w, r, &delta) {
		return
	}
	if delta.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	e, err := s.reg.Entries.Update(r.Context(), id, delta)
	if err != nil {
		s.writeRegistryError(w, r, "update configuration entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleRemoveEntry handles DELETE /v1/entries/{id}.
func (s *RegistryServer) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.reg.Entries.Remove(r.Context(), id); err != nil {
		s.writeRegistryError(w, r, "remove configuration entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveSpaceEntries handles DELETE /v1/spaces/{space_id}/entries.
func (s *RegistryServer) handleRemoveSpaceEntries(w http.ResponseWriter, r *http.Request) {
	n, err := s.reg.Entries.RemoveAll(r.Context(), r.PathValue("space_id"))
	if err != nil {
		s.writeRegistryError(w, r, "remove configuration entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// criteriaFromQuery builds entry criteria from GET query parameters.
// Targets are given as "org/space"; visible_to may repeat.
func criteriaFromQuery(q url.Values) (registry.EntryCriteria, error) {
	var ve model.ValidationError
	c := registry.EntryCriteria{
		ProviderNID:        q.Get("provider_nid"),
		ProviderID:         q.Get("provider_id"),
		MTAID:              q.Get("mta_id"),
		ProviderNamespace:  q.Get("namespace"),
		VersionRequirement: q.Get("version"),
		SpaceID:            q.Get("space_id"),
	}
	if v := q.Get("target"); v != "" {
		t, err := model.ParseTarget(v)
		if err != nil {
			ve.Add("target", err.Error())
		} else {
			c.Target = &t
		}
	}
	for _, v := range q["visible_to"] {
		t, err := model.ParseTarget(v)
		if err != nil {
			ve.Add("visible_to", err.Error())
			continue
		}
		c.VisibleTo = append(c.VisibleTo, t)
	}
	if v := q.Get("order_by_id"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ve.Add("order_by_id", "must be a boolean")
		}
		c.OrderByID = b
	}
	if ve.HasErrors() {
		return c, &ve
	}
	return c, nil
}
