package server

import (
	"net/http"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
)

// handleAddSubscription handles POST /v1/subscriptions.
func (s *RegistryServer) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	var sub model.ConfigurationSubscription
	if !decodeBody(w, r, &sub) {
		return
	}
	added, err := s.reg.Subscriptions.Add(r.Context(), sub)
	if err != nil {
		s.writeRegistryError(w, r, "add configuration subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// handleListSubscriptions handles GET /v1/subscriptions?mta_id=&space_id=&app_name=&resource_name=.
func (s *RegistryServer) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subs, err := s.reg.Subscriptions.Find(r.Context(), registry.SubscriptionCriteria{
		MTAID:        q.Get("mta_id"),
		SpaceID:      q.Get("space_id"),
		AppName:      q.Get("app_name"),
		ResourceName: q.Get("resource_name"),
	})
	if err != nil {
		s.writeRegistryError(w, r, "list configuration subscriptions", err)
		return
	}
	writeSubscriptions(w, subs)
}

// matchRequest is the JSON body for POST /v1/subscriptions/match. Entries
// may be given inline, by id, or both.
type matchRequest struct {
	Entries  []*model.ConfigurationEntry   `json:"entries,omitempty"`
	EntryIDs []int64                       `json:"entry_ids,omitempty"`
	Scope    registry.SubscriptionCriteria `json:"scope"`
}

// handleMatchSubscriptions handles POST /v1/subscriptions/match.
func (s *RegistryServer) handleMatchSubscriptions(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entries := req.Entries
	for _, id := range req.EntryIDs {
		e, err := s.reg.Entries.FindByID(r.Context(), id)
		if err != nil {
			s.writeRegistryError(w, r, "match configuration subscriptions", err)
			return
		}
		entries = append(entries, e)
	}
	subs, err := s.reg.Subscriptions.FindMatching(r.Context(), entries, req.Scope)
	if err != nil {
		s.writeRegistryError(w, r, "match configuration subscriptions", err)
		return
	}
	writeSubscriptions(w, subs)
}

// handleGetSubscription handles GET /v1/subscriptions/{id}.
func (s *RegistryServer) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := s.reg.Subscriptions.FindByID(r.Context(), id)
	if err != nil {
		s.writeRegistryError(w, r, "get configuration subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// handleUpdateSubscription handles PATCH /v1/subscriptions/{id}.
func (s *RegistryServer) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var delta model.SubscriptionDelta
	if !decodeBody(w, r, &delta) {
		return
	}
	if delta.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	sub, err := s.reg.Subscriptions.Update(r.Context(), id, delta)
	if err != nil {
		s.writeRegistryError(w, r, "update configuration subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// handleRemoveSubscription handles DELETE /v1/subscriptions/{id}.
func (s *RegistryServer) handleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.reg.Subscriptions.Remove(r.Context(), id); err != nil {
		s.writeRegistryError(w, r, "remove configuration subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveSpaceSubscriptions handles DELETE /v1/spaces/{space_id}/subscriptions.
func (s *RegistryServer) handleRemoveSpaceSubscriptions(w http.ResponseWriter, r *http.Request) {
	n, err := s.reg.Subscriptions.RemoveAll(r.Context(), r.PathValue("space_id"))
	if err != nil {
		s.writeRegistryError(w, r, "remove configuration subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// purgeRequest is the JSON body for POST /v1/spaces/{space_id}/purge.
type purgeRequest struct {
	Applications []model.LiveApplication `json:"applications"`
}

// handlePurgeSpace handles POST /v1/spaces/{space_id}/purge.
func (s *RegistryServer) handlePurgeSpace(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := s.reg.Purger.Purge(r.Context(), r.PathValue("space_id"), req.Applications)
	if err != nil {
		s.writeRegistryError(w, r, "purge space", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeSubscriptions(w http.ResponseWriter, subs []*model.ConfigurationSubscription) {
	if subs == nil {
		subs = []*model.ConfigurationSubscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}
