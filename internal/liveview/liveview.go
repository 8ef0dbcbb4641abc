// Package liveview serves the chat page and bridges it to one chat
// Controller per browser connection over a websocket. The page only paints
// the HTML it is sent and reports clicks and submits back as intents.
package liveview

import (
	_ "embed"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ziadkadry99/osbuddy/internal/chat"
	"github.com/ziadkadry99/osbuddy/internal/identity"
	"github.com/ziadkadry99/osbuddy/internal/render"
)

//go:embed index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

var upgrader = websocket.Upgrader{
	// The page is served from the same origin; anything else is rejected by
	// gorilla's default same-origin check.
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
}

// ServiceFactory builds the session service client for one browser. userID
// returns "" when user isolation is off.
type ServiceFactory func(userID func() string) chat.Service

// Options configure the live view.
type Options struct {
	NewService ServiceFactory
	Pipeline   *render.Pipeline
	// Theme is passed to mermaid.initialize in the page.
	Theme string
	// UserIsolation attaches the browser's identity to service requests.
	UserIsolation bool
	// IntentRate and IntentBurst bound how fast one page may send intents.
	IntentRate  rate.Limit
	IntentBurst int
}

// Server serves the page and its websocket.
type Server struct {
	opts Options
}

// New creates a live view server.
func New(opts Options) *Server {
	if opts.IntentRate == 0 {
		opts.IntentRate = 5
	}
	if opts.IntentBurst == 0 {
		opts.IntentBurst = 10
	}
	if opts.Theme == "" {
		opts.Theme = "dark"
	}
	return &Server{opts: opts}
}

// RegisterRoutes mounts the page and the websocket endpoint.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/", s.serveIndex)
	r.Get("/ws", s.handleWebSocket)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	// Issue the identity cookie before the socket is opened.
	identity.New(identity.NewCookieStore(r, w.Header())).UserID()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, struct{ Theme string }{s.opts.Theme}); err != nil {
		log.Printf("liveview: rendering page: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	ids := identity.New(identity.NewCookieStore(r, header))
	userID := func() string { return "" }
	if s.opts.UserIsolation {
		userID = ids.UserID
		ids.UserID()
	}

	ws, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("liveview: websocket upgrade: %v", err)
		return
	}

	c := newConn(ws, rate.NewLimiter(s.opts.IntentRate, s.opts.IntentBurst))
	c.ctrl = chat.New(chat.Options{
		Service:   s.opts.NewService(userID),
		Pipeline:  s.opts.Pipeline,
		Confirmer: c,
	})
	c.serve(r.Context())
}
