package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"holdem-server/internal/config"
	"holdem-server/internal/recovery"
	"holdem-server/internal/tablegateway"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, cfg config.ServerConfig, db Pinger) http.Handler {
	t.Helper()
	pub := tablegateway.NewTopicPublisher(16)
	coord := tablegateway.NewCoordinator(recovery.New(nil), tablegateway.DefaultConfig(), tablegateway.WithPublisher(pub))
	t.Cleanup(coord.Close)
	return NewRouter(cfg, coord, pub, db)
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	cases := []struct {
		name   string
		db     Pinger
		status int
		dbText string
	}{
		{name: "memory", db: nil, status: http.StatusOK, dbText: "disabled"},
		{name: "up", db: fakePinger{}, status: http.StatusOK, dbText: "up"},
		{name: "down", db: fakePinger{err: errors.New("refused")}, status: http.StatusServiceUnavailable, dbText: "down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, config.ServerConfig{}, tc.db)
			w := serve(router, http.MethodGet, "/healthz", "", nil)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["db"] != tc.dbText {
				t.Fatalf("expected db=%s, got %v", tc.dbText, body["db"])
			}
		})
	}
}

func TestTableRoutesMounted(t *testing.T) {
	router := newTestRouter(t, config.ServerConfig{}, nil)

	w := serve(router, http.MethodPost, "/api/tables", `{"table_id":"t1","small_blind":5,"big_blind":10}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected create 201, got %d: %s", w.Code, w.Body.String())
	}
	w = serve(router, http.MethodGet, "/api/tables/t1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected state 200, got %d", w.Code)
	}
	w = serve(router, http.MethodGet, "/api/tables/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected missing table 404, got %d", w.Code)
	}
	w = serve(router, http.MethodPost, "/api/tables/t1/seats", `{`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected malformed body 400, got %d", w.Code)
	}
}

func TestDebugVarsRequiresAdminKey(t *testing.T) {
	router := newTestRouter(t, config.ServerConfig{AdminAPIKey: "admin-key"}, nil)

	w := serve(router, http.MethodGet, "/api/debug/vars", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}
	w = serve(router, http.MethodGet, "/api/debug/vars", "", map[string]string{"X-Admin-Key": "admin-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with header key, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tables_created_total") {
		t.Fatal("expected gateway counters in debug vars")
	}
	w = serve(router, http.MethodGet, "/api/debug/vars", "", map[string]string{"Authorization": "Bearer admin-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer key, got %d", w.Code)
	}
}

func TestCaptureWriterTruncates(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, maxBytes: 4}
	if _, err := cw.Write([]byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := cw.Write([]byte("def")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := cw.body.String(); got != "abcd" {
		t.Fatalf("expected captured abcd, got %q", got)
	}
	if !cw.truncated {
		t.Fatal("expected truncated flag")
	}
	if rec.Body.String() != "abcdef" {
		t.Fatalf("expected full passthrough, got %q", rec.Body.String())
	}
}

func TestIsSSERequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tables/t1/events", nil)
	if !isSSERequest(req) {
		t.Fatal("expected events path to be treated as SSE")
	}
	req = httptest.NewRequest(http.MethodGet, "/api/tables/t1", nil)
	if isSSERequest(req) {
		t.Fatal("state path is not SSE")
	}
	req.Header.Set("Accept", "text/event-stream")
	if !isSSERequest(req) {
		t.Fatal("expected Accept header to mark SSE")
	}
}
