package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *RegistryServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/entries", s.handleAddEntry)
	mux.HandleFunc("GET /v1/entries", s.handleListEntries)
	mux.HandleFunc("POST /v1/entries/search", s.handleSearchEntries)
	mux.HandleFunc("POST /v1/entries/resolve", s.handleResolveEntries)
	mux.HandleFunc("GET /v1/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("PATCH /v1/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /v1/entries/{id}", s.handleRemoveEntry)
	mux.HandleFunc("POST /v1/subscriptions", s.handleAddSubscription)
	mux.HandleFunc("GET /v1/subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("POST /v1/subscriptions/match", s.handleMatchSubscriptions)
	mux.HandleFunc("GET /v1/subscriptions/{id}", s.handleGetSubscription)
	mux.HandleFunc("PATCH /v1/subscriptions/{id}", s.handleUpdateSubscription)
	mux.HandleFunc("DELETE /v1/subscriptions/{id}", s.handleRemoveSubscription)
	mux.HandleFunc("POST /v1/spaces/{space_id}/purge", s.handlePurgeSpace)
	mux.HandleFunc("DELETE /v1/spaces/{space_id}/entries", s.handleRemoveSpaceEntries)
	mux.HandleFunc("DELETE /v1/spaces/{space_id}/subscriptions", s.handleRemoveSpaceSubscriptions)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RequestLogger(s.logger, RecoverMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *RegistryServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRegistryError maps a registry error onto a response: validation
// failures are 400, missing rows 404 and key collisions 409.
func (s *RegistryServer) writeRegistryError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "fields": ve.Errors})
	case model.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case model.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), op+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// decodeBody decodes a JSON request body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// pathID parses the {id} path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
