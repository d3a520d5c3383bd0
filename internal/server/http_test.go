package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
	"github.com/alfredjeanlab/cfgregistry/internal/store/sqlite"
)

func newTestServer(t *testing.T, authToken string) http.Handler {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	global := model.Target{Org: "global", Space: "config"}
	reg := registry.New(db, registry.Options{GlobalConfigTarget: &global})
	return NewRegistryServer(reg, db, nil).NewHTTPHandler(authToken)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func sampleEntry(providerID, version, org, space string) map[string]any {
	return map[string]any{
		"provider_nid":     "mta",
		"provider_id":      providerID,
		"provider_version": version,
		"target":           map[string]string{"org": org, "space": space},
		"content":          map[string]any{"url": "https://db", "plan": "small"},
		"space_id":         "guid-" + space,
	}
}

func TestHTTP_EntryLifecycle(t *testing.T) {
	h := newTestServer(t, "")

	rec := doRequest(t, h, http.MethodPost, "/v1/entries", sampleEntry("m:dep", "1.2.0", "org-1", "space-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[model.ConfigurationEntry](t, rec)
	if created.ID == 0 || len(created.Visibility) != 1 || created.Visibility[0] != (model.Target{Org: "org-1", Space: "*"}) {
		t.Fatalf("unexpected created entry: %+v", created)
	}
	path := "/v1/entries/" + strconv.FormatInt(created.ID, 10)

	rec = doRequest(t, h, http.MethodPost, "/v1/entries", sampleEntry("m:dep", "1.2.0", "org-1", "space-1"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status %d, want 409", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPatch, path, map[string]any{"provider_version": "1.3.0"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[model.ConfigurationEntry](t, rec); got.ProviderVersion != "1.3.0" || got.ProviderID != "m:dep" {
		t.Fatalf("unexpected patched entry: %+v", got)
	}

	rec = doRequest(t, h, http.MethodPatch, path, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: status %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodDelete, path, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestHTTP_EntryValidation(t *testing.T) {
	h := newTestServer(t, "")

	rec := doRequest(t, h, http.MethodPost, "/v1/entries", map[string]any{"provider_version": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	body := decode[struct {
		Fields []model.FieldError `json:"fields"`
	}](t, rec)
	if len(body.Fields) == 0 {
		t.Fatalf("expected field errors: %s", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/entries/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/entries?version=newest", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad requirement: status %d, want 400", rec.Code)
	}
}

func TestHTTP_FindEntries(t *testing.T) {
	h := newTestServer(t, "")
	for _, e := range []map[string]any{
		sampleEntry("m:dep", "1.2.0", "org-1", "space-1"),
		sampleEntry("m:cache", "0.5.0", "org-1", "space-1"),
		sampleEntry("n:dep", "2.0.0", "org-2", "space-9"),
	} {
		if rec := doRequest(t, h, http.MethodPost, "/v1/entries", e); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d %s", rec.Code, rec.Body.String())
		}
	}

	type listResp struct {
		Entries []model.ConfigurationEntry `json:"entries"`
	}

	rec := doRequest(t, h, http.MethodGet, "/v1/entries?mta_id=m&version=%3E%3D1.0.0&visible_to=org-1/space-2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[listResp](t, rec); len(got.Entries) != 1 || got.Entries[0].ProviderID != "m:dep" {
		t.Fatalf("unexpected entries: %+v", got.Entries)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/entries?mta_id=m&visible_to=org-2/space-1", nil)
	if got := decode[listResp](t, rec); len(got.Entries) != 0 {
		t.Fatalf("other org must see nothing: %+v", got.Entries)
	}

	rec = doRequest(t, h, http.MethodPost, "/v1/entries/search", map[string]any{
		"target":           map[string]string{"org": "org-1", "space": "*"},
		"required_content": map[string]any{"plan": "small"},
		"order_by_id":      true,
	})
	if got := decode[listResp](t, rec); len(got.Entries) != 2 {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHTTP_ResolveFallsBackToGlobal(t *testing.T) {
	h := newTestServer(t, "")
	global := sampleEntry("m:dep", "1.0.0", "global", "config")
	global["visibility"] = []map[string]string{{"org": "*", "space": "*"}}
	if rec := doRequest(t, h, http.MethodPost, "/v1/entries", global); rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d %s", rec.Code, rec.Body.String())
	}

	rec := doRequest(t, h, http.MethodPost, "/v1/entries/resolve", map[string]any{
		"filter":     map[string]any{"mta_id": "m", "target": map[string]string{"org": "org-1", "space": "space-1"}},
		"visible_to": []map[string]string{{"org": "org-1", "space": "space-1"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Entries []model.ConfigurationEntry `json:"entries"`
	}](t, rec)
	if len(got.Entries) != 1 || got.Entries[0].Target.Org != "global" {
		t.Fatalf("expected the global entry: %+v", got.Entries)
	}
}

func TestHTTP_SubscriptionsMatchAndPurge(t *testing.T) {
	h := newTestServer(t, "")

	rec := doRequest(t, h, http.MethodPost, "/v1/entries", sampleEntry("m:dep", "1.0.0", "org-1", "space-1"))
	entry := decode[model.ConfigurationEntry](t, rec)

	sub := map[string]any{
		"mta_id":        "consumer",
		"space_id":      "guid-space-1",
		"app_name":      "web",
		"resource_name": "db",
		"filter":        map[string]any{"mta_id": "m"},
	}
	rec = doRequest(t, h, http.MethodPost, "/v1/subscriptions", sub)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create subscription: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[model.ConfigurationSubscription](t, rec)

	rec = doRequest(t, h, http.MethodPost, "/v1/subscriptions", sub)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate subscription: %d, want 409", rec.Code)
	}

	type subsResp struct {
		Subscriptions []model.ConfigurationSubscription `json:"subscriptions"`
	}
	rec = doRequest(t, h, http.MethodPost, "/v1/subscriptions/match", map[string]any{"entry_ids": []int64{entry.ID}})
	if got := decode[subsResp](t, rec); len(got.Subscriptions) != 1 || got.Subscriptions[0].ID != created.ID {
		t.Fatalf("match: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/subscriptions?app_name=web", nil)
	if got := decode[subsResp](t, rec); len(got.Subscriptions) != 1 {
		t.Fatalf("list: %s", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/v1/spaces/guid-space-1/purge", map[string]any{"applications": []any{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("purge: %d %s", rec.Code, rec.Body.String())
	}
	report := decode[registry.PurgeReport](t, rec)
	if len(report.DeletedEntries) != 1 || len(report.DeletedSubscriptions) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	rec = doRequest(t, h, http.MethodPost, "/v1/spaces/guid-space-1/purge", map[string]any{"applications": []any{}})
	report = decode[registry.PurgeReport](t, rec)
	if len(report.DeletedEntries) != 0 || len(report.DeletedSubscriptions) != 0 {
		t.Fatalf("second purge should delete nothing: %+v", report)
	}
}

func TestHTTP_RemoveSpace(t *testing.T) {
	h := newTestServer(t, "")
	doRequest(t, h, http.MethodPost, "/v1/entries", sampleEntry("m:dep", "1.0.0", "org-1", "space-1"))
	doRequest(t, h, http.MethodPost, "/v1/entries", sampleEntry("m:dep", "2.0.0", "org-1", "space-1"))

	rec := doRequest(t, h, http.MethodDelete, "/v1/spaces/guid-space-1/entries", nil)
	if got := decode[map[string]int64](t, rec); got["deleted"] != 2 {
		t.Fatalf("remove space entries: %d %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, h, http.MethodDelete, "/v1/spaces/guid-space-1/subscriptions", nil)
	if got := decode[map[string]int64](t, rec); got["deleted"] != 0 {
		t.Fatalf("remove space subscriptions: %s", rec.Body.String())
	}
}

func TestHTTP_AuthAndHealth(t *testing.T) {
	h := newTestServer(t, "secret")

	rec := doRequest(t, h, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, "/v1/entries", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: %d, want 401", rec.Code)
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHTTP_HealthUnavailable(t *testing.T) {
	h := NewRegistryServer(nil, downStore{}, nil).NewHTTPHandler("")
	rec := doRequest(t, h, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health: %d, want 503", rec.Code)
	}
}
