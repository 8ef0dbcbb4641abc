package tutor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/diagrams"
	"github.com/ziadkadry99/osbuddy/internal/llm"
)

// DefaultHistoryLimit is how many prior messages accompany a question.
const DefaultHistoryLimit = 10

// Knowledge supplies reference material for a question.
type Knowledge interface {
	Context(ctx context.Context, question string, k int) (string, error)
}

// Options configure a Tutor. Knowledge is optional.
type Options struct {
	Provider     llm.Provider
	Model        string
	HistoryLimit int
	Knowledge    Knowledge
	TopK         int
}

// Tutor answers chat questions through an LLM.
type Tutor struct {
	opts Options
}

// New creates a tutor. A zero HistoryLimit means DefaultHistoryLimit.
func New(opts Options) *Tutor {
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Tutor{opts: opts}
}

// Respond answers question given the earlier turns of the conversation.
// thoughts names where the answer came from.
func (t *Tutor) Respond(ctx context.Context, history []api.Message, question string) (answer, thoughts string, err error) {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt}}

	usedNotes := false
	if t.opts.Knowledge != nil {
		notes, err := t.opts.Knowledge.Context(ctx, question, t.opts.TopK)
		if err != nil {
			log.Printf("tutor: knowledge lookup failed: %v", err)
		} else if strings.TrimSpace(notes) != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: notesPreamble + notes})
			usedNotes = true
		}
	}

	msgs = append(msgs, Window(history, t.opts.HistoryLimit)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	resp, err := t.opts.Provider.Complete(ctx, llm.CompletionRequest{
		Model:       t.opts.Model,
		Messages:    msgs,
		Temperature: 0,
	})
	if err != nil {
		return "", "", fmt.Errorf("tutor: %w", err)
	}

	model := resp.Model
	if model == "" {
		model = t.opts.Model
	}
	thoughts = fmt.Sprintf("Internal Knowledge (%s via %s)", model, t.opts.Provider.Name())
	if usedNotes {
		thoughts = "Reference Notes + " + thoughts
	}
	return diagrams.SanitizeBlocks(resp.Content), thoughts, nil
}

// Window maps the last limit messages of history to LLM turns. Any role
// other than user is the assistant. A negative limit keeps everything.
func Window(history []api.Message, limit int) []llm.Message {
	if limit >= 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleAssistant
		if m.Role == "user" {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
