package liveview

// Outbound frame types.
const (
	FrameThread    = "thread"
	FrameDirectory = "directory"
	FrameConfirm   = "confirm"
	FrameError     = "error"
)

// Inbound message types.
const (
	MsgIntent        = "intent"
	MsgConfirmResult = "confirm_result"
)

// Frame is what the page receives. Directory frames carry the whole list
// element. Thread frames carry every message, without the container, each
// keyed by data-handle; the page keeps messages whose markup is unchanged and
// only renders diagrams in new ones. Confirm frames carry a question to
// answer with a confirm_result of the same ID.
type Frame struct {
	Type string `json:"type"`
	HTML string `json:"html,omitempty"`
	ID   uint64 `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

// inbound is what the page sends.
type inbound struct {
	Type      string `json:"type"`
	Intent    string `json:"intent,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	ID        uint64 `json:"id,omitempty"`
	OK        bool   `json:"ok,omitempty"`
}
