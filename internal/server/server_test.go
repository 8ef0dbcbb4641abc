package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/db"
	"github.com/ziadkadry99/osbuddy/internal/sessions"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(cfg, database)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, Config{Port: 0})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body api.Health
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" || body.Message != "I am awake!" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, Config{Port: 0, AllowAll: true})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", api.UserHeader)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
	if !strings.Contains(strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), strings.ToLower(api.UserHeader)) {
		t.Errorf("X-User-ID not allowed: %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

type echoTutor struct{}

func (echoTutor) Respond(ctx context.Context, history []api.Message, q string) (string, string, error) {
	return "echo: " + q, "", nil
}

func TestServiceEndToEnd(t *testing.T) {
	srv := newTestServer(t, Config{})
	sessions.RegisterRoutes(srv.Router(), sessions.NewStore(srv.Database()), echoTutor{}, sessions.Options{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	c := api.NewClient(ts.URL, func() string { return "user_e2e" }, 0)
	reply, err := c.Chat(t.Context(), "hello", "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	list, err := c.ListSessions(t.Context())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 || list[0].ID != reply.SessionID || list[0].Title != "hello..." {
		t.Errorf("list = %+v", list)
	}
	if _, err := c.GetSession(t.Context(), "nope"); err == nil {
		t.Error("expected not found")
	}
}
