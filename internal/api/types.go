package api

// UserHeader carries the per-browser identity on every request.
const UserHeader = "X-User-ID"

// SessionSummary is one entry of GET /sessions. Timestamp is Unix seconds of
// the last activity.
type SessionSummary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Timestamp float64 `json:"timestamp"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the body of GET /sessions/{id}.
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// NewSessionResponse is the body of POST /sessions/new.
type NewSessionResponse struct {
	ID string `json:"id"`
}

// DeleteResponse is the body of DELETE /sessions/{id}.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// ChatRequest is the body of POST /chat. An empty SessionID asks the service
// to create a session.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatReply struct {
	Response  string `json:"response"`
	Thoughts  string `json:"thoughts,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health is the body of GET /healthz.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
