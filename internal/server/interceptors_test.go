package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const registryMethod = "/cfgregistry.v1.Registry/GetEntry"

func TestCheckBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "missing authorization header"},
		{"Basic secret", "invalid authorization scheme"},
		{"bearer secret", "invalid authorization scheme"},
		{"Bearer wrong", "invalid token"},
		{"Bearer secretx", "invalid token"},
		{"Bearer secret", ""},
	}
	for _, tt := range tests {
		if got := checkBearer(tt.header, "secret"); got != tt.want {
			t.Errorf("checkBearer(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

// authCase describes one request against a server expecting token "secret".
type authCase struct {
	name   string
	token  string
	method string
	md     metadata.MD // nil means no incoming metadata
	ok     bool
}

var authCases = []authCase{
	{name: "auth disabled", token: "", method: registryMethod, ok: true},
	{name: "health check exempt", token: "secret", method: healthpb.Health_Check_FullMethodName, ok: true},
	{name: "health watch exempt", token: "secret", method: healthpb.Health_Watch_FullMethodName, ok: true},
	{name: "no metadata", token: "secret", method: registryMethod},
	{name: "no authorization key", token: "secret", method: registryMethod, md: metadata.Pairs("x-other", "v")},
	{name: "wrong scheme", token: "secret", method: registryMethod, md: metadata.Pairs("authorization", "Basic secret")},
	{name: "wrong token", token: "secret", method: registryMethod, md: metadata.Pairs("authorization", "Bearer nope")},
	{name: "valid token", token: "secret", method: registryMethod, md: metadata.Pairs("authorization", "Bearer secret"), ok: true},
}

func (c authCase) ctx() context.Context {
	if c.md == nil {
		return context.Background()
	}
	return metadata.NewIncomingContext(context.Background(), c.md)
}

func checkAuthResult(t *testing.T, c authCase, err error, called bool) {
	t.Helper()
	if c.ok {
		if err != nil || !called {
			t.Fatalf("want handler called without error, got err=%v called=%v", err, called)
		}
		return
	}
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}
	if called {
		t.Fatal("handler ran for a rejected call")
	}
}

func TestAuthInterceptor(t *testing.T) {
	for _, c := range authCases {
		t.Run(c.name, func(t *testing.T) {
			called := false
			handler := func(context.Context, any) (any, error) { called = true; return "ok", nil }
			_, err := AuthInterceptor(c.token)(c.ctx(), nil, &grpc.UnaryServerInfo{FullMethod: c.method}, handler)
			checkAuthResult(t, c, err, called)
		})
	}
}

// stubStream is a server stream carrying only a context.
type stubStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubStream) Context() context.Context { return s.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	for _, c := range authCases {
		t.Run(c.name, func(t *testing.T) {
			called := false
			handler := func(any, grpc.ServerStream) error { called = true; return nil }
			err := StreamAuthInterceptor(c.token)(nil, &stubStream{ctx: c.ctx()}, &grpc.StreamServerInfo{FullMethod: c.method}, handler)
			checkAuthResult(t, c, err, called)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		method string
		path   string
		header string
		want   int
	}{
		{"disabled", "", http.MethodGet, "/v1/entries", "", http.StatusOK},
		{"health exempt", "secret", http.MethodGet, "/v1/health", "", http.StatusOK},
		{"health only for GET", "secret", http.MethodPost, "/v1/health", "", http.StatusUnauthorized},
		{"no header", "secret", http.MethodGet, "/v1/entries", "", http.StatusUnauthorized},
		{"basic scheme", "secret", http.MethodGet, "/v1/entries", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "secret", http.MethodDelete, "/v1/entries/e1", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "secret", http.MethodPost, "/v1/entries", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tt.token, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate challenge")
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	panicking := func(context.Context, any) (any, error) { panic("boom") }

	_, err := RecoveryInterceptor(logger)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: registryMethod}, panicking)
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
	if out := buf.String(); !strings.Contains(out, "panic=boom") || !strings.Contains(out, registryMethod) {
		t.Errorf("panic not logged: %s", out)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	interceptor := LoggingInterceptor(logger)

	ok := func(context.Context, any) (any, error) { return "ok", nil }
	failing := func(context.Context, any) (any, error) { return nil, status.Error(codes.NotFound, "no entry") }

	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: healthpb.Health_Check_FullMethodName}, ok); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("health check logged above debug: %s", buf.String())
	}

	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: registryMethod}, failing); status.Code(err) != codes.NotFound {
		t.Fatalf("error not passed through: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"level=ERROR", "method=" + registryMethod, "code=NotFound"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := RequestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	serve := func(incomingID string) string {
		req := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
		if incomingID != "" {
			req.Header.Set("X-Request-ID", incomingID)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Header().Get("X-Request-ID")
	}

	reqID := serve("")
	if !strings.HasPrefix(reqID, "req-") {
		t.Fatalf("X-Request-ID = %q, want a generated req- id", reqID)
	}
	out := buf.String()
	for _, want := range []string{"request_id=" + reqID, "status=418", "path=/v1/entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}

	if got := serve("req-upstream"); got != "req-upstream" {
		t.Errorf("X-Request-ID = %q, want the caller's id", got)
	}
	if got := serve("forged\nstatus=200"); !strings.HasPrefix(got, "req-") {
		t.Errorf("X-Request-ID = %q, want a generated id", got)
	}
}

func TestRequestLogger_HealthAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := RequestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, healthPath, nil))
	if buf.Len() != 0 {
		t.Fatalf("health probe logged at info: %s", buf.String())
	}
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := RequestLogger(logger, RecoverMiddleware(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/entries", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{"panic=boom", "status=500"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}
