package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/osbuddy/internal/api"
)

// Responder answers a question given the prior conversation.
type Responder interface {
	Respond(ctx context.Context, history []api.Message, question string) (answer, thoughts string, err error)
}

// Options tune the HTTP handlers.
type Options struct {
	// RequireUserID rejects requests without an X-User-ID header instead of
	// filing them under AnonymousUser.
	RequireUserID bool
}

// EmptyMessageReply answers a chat request with no text.
const EmptyMessageReply = "Please enter a message."

// RegisterRoutes mounts the session service on r.
func RegisterRoutes(r chi.Router, store *Store, responder Responder, opts Options) {
	h := &handlers{store: store, responder: responder, opts: opts}
	r.Group(func(r chi.Router) {
		r.Use(h.identify)
		r.Get("/sessions", h.list)
		r.Post("/sessions/new", h.create)
		r.Get("/sessions/{id}", h.get)
		r.Delete("/sessions/{id}", h.delete)
		r.Post("/chat", h.chat)
	})
}

type handlers struct {
	store     *Store
	responder Responder
	opts      Options
}

type userKey struct{}

func userFrom(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok {
		return u
	}
	return AnonymousUser
}

func (h *handlers) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(api.UserHeader))
		if user == "" {
			if h.opts.RequireUserID {
				writeError(w, http.StatusUnauthorized, api.UserHeader+" header is required")
				return
			}
			user = AnonymousUser
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]api.SessionSummary, len(list))
	for i, s := range list {
		out[i] = api.SessionSummary{
			ID:        s.ID,
			Title:     s.Title,
			Timestamp: float64(s.UpdatedAt.UnixMilli()) / 1000,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.NewSessionResponse{ID: sess.ID})
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.store.Get(r.Context(), id, userFrom(r.Context()))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msgs, err := h.store.Messages(r.Context(), sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.Session{ID: sess.ID, Title: sess.Title, Messages: toWire(msgs)})
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), userFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.DeleteResponse{Success: ok})
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusOK, api.ChatReply{Response: EmptyMessageReply, Thoughts: "Empty input"})
		return
	}

	ctx := r.Context()
	user := userFrom(ctx)

	var sess *Session
	var history []Message
	var err error
	if req.SessionID != "" {
		sess, err = h.store.Get(ctx, req.SessionID, user)
		if err != nil && !errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if sess != nil {
		if history, err = h.store.Messages(ctx, sess.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	answer, thoughts, err := h.responder.Respond(ctx, toWire(history), message)
	if err != nil {
		log.Printf("sessions: tutor failed for session %q: %v", req.SessionID, err)
		writeError(w, http.StatusBadGateway, "the tutor could not answer: "+err.Error())
		return
	}

	turn := []Message{
		{Role: RoleUser, Content: message},
		{Role: RoleAssistant, Content: answer},
	}
	// A new session is only stored together with its first answered turn.
	if sess == nil {
		if sess, err = h.store.CreateWith(ctx, user, TitleFor(message), turn...); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, api.ChatReply{Response: answer, Thoughts: thoughts, SessionID: sess.ID})
		return
	}

	if _, err := h.store.Append(ctx, sess.ID, turn...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(history) == 0 || sess.Title == DefaultTitle {
		if err := h.store.SetTitle(ctx, sess.ID, TitleFor(message)); err != nil {
			log.Printf("sessions: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, api.ChatReply{Response: answer, Thoughts: thoughts, SessionID: sess.ID})
}

func toWire(msgs []Message) []api.Message {
	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("sessions: writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
