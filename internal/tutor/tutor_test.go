package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/llm"
)

type fakeProvider struct {
	reqs    []llm.CompletionRequest
	content string
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content, Model: "llama"}, nil
}

type fakeKnowledge struct {
	text string
	err  error
	k    int
}

func (f *fakeKnowledge) Context(_ context.Context, _ string, k int) (string, error) {
	f.k = k
	return f.text, f.err
}

func history(n int) []api.Message {
	out := make([]api.Message, n)
	for i := range out {
		role := "user"
		if i%2 == 1 {
			role = "ai"
		}
		out[i] = api.Message{Role: role, Content: fmt.Sprintf("m%d", i)}
	}
	return out
}

func TestRespondBuildsConversation(t *testing.T) {
	p := &fakeProvider{content: "A thread is a unit of execution."}
	tu := New(Options{Provider: p, Model: "llama"})

	answer, thoughts, err := tu.Respond(t.Context(), history(14), "What about threads?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if answer != "A thread is a unit of execution." {
		t.Errorf("answer = %q", answer)
	}
	if thoughts != "Internal Knowledge (llama via fake)" {
		t.Errorf("thoughts = %q", thoughts)
	}

	msgs := p.reqs[0].Messages
	// system + 10 history + question
	if len(msgs) != 12 {
		t.Fatalf("sent %d messages", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "mermaid") {
		t.Errorf("system prompt = %+v", msgs[0])
	}
	if msgs[1].Content != "m4" || msgs[1].Role != llm.RoleUser {
		t.Errorf("window starts at %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleAssistant {
		t.Errorf("ai role mapped to %q", msgs[2].Role)
	}
	if last := msgs[len(msgs)-1]; last.Role != llm.RoleUser || last.Content != "What about threads?" {
		t.Errorf("question = %+v", last)
	}
}

func TestRespondSanitizesDiagrams(t *testing.T) {
	p := &fakeProvider{content: "```mermaid\ngraph TD\nA[Ready (queue)] --> B[Running]\n```"}
	answer, _, err := New(Options{Provider: p}).Respond(t.Context(), nil, "states?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(answer, `A["Ready #lpar;queue#rpar;"]`) {
		t.Errorf("answer not sanitized:\n%s", answer)
	}
}

func TestRespondWithKnowledge(t *testing.T) {
	p := &fakeProvider{content: "ok"}
	k := &fakeKnowledge{text: "Round robin uses a time quantum."}
	_, thoughts, err := New(Options{Provider: p, Model: "m", Knowledge: k}).Respond(t.Context(), nil, "rr?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if k.k != 3 {
		t.Errorf("top k = %d", k.k)
	}
	if !strings.HasPrefix(thoughts, "Reference Notes + ") {
		t.Errorf("thoughts = %q", thoughts)
	}
	msgs := p.reqs[0].Messages
	if len(msgs) != 3 || !strings.Contains(msgs[1].Content, "time quantum") {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRespondKnowledgeFailureIsNotFatal(t *testing.T) {
	p := &fakeProvider{content: "ok"}
	k := &fakeKnowledge{err: errors.New("index missing")}
	_, thoughts, err := New(Options{Provider: p, Knowledge: k}).Respond(t.Context(), nil, "q")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if strings.HasPrefix(thoughts, "Reference Notes") || len(p.reqs[0].Messages) != 2 {
		t.Errorf("failed lookup leaked into request: %q", thoughts)
	}
}

func TestRespondProviderError(t *testing.T) {
	boom := errors.New("429 rate limited")
	p := &fakeProvider{err: boom}
	if _, _, err := New(Options{Provider: p}).Respond(t.Context(), nil, "q"); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestWindow(t *testing.T) {
	if got := Window(history(4), -1); len(got) != 4 {
		t.Errorf("unbounded window = %d", len(got))
	}
	if got := Window(history(4), 2); len(got) != 2 || got[0].Content != "m2" {
		t.Errorf("window = %+v", got)
	}
	if got := Window(nil, 10); len(got) != 0 {
		t.Errorf("nil window = %+v", got)
	}
}
