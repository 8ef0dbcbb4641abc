package render

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type spyConverter struct {
	inputs []string
	err    error
}

func (s *spyConverter) Convert(src string) (string, error) {
	s.inputs = append(s.inputs, src)
	if s.err != nil {
		return "", s.err
	}
	return NewMarkdown("").Convert(src)
}

type fakeDiagrams struct {
	calls atomic.Int32
	fail  map[string]error
	panic string
	delay time.Duration
}

func (f *fakeDiagrams) Render(ctx context.Context, c *html.Node) error {
	f.calls.Add(1)
	src := TextContent(c)
	if src == f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err, ok := f.fail[src]; ok {
		return err
	}
	SetAttr(c, "data-rendered", "true")
	return nil
}

func diagramNodes(msg *Message) []*html.Node {
	return FindAll(msg.Node, func(n *html.Node) bool {
		return HasClass(n, "mermaid") || HasClass(n, "diagram-error")
	})
}

func content(msg *Message) *html.Node {
	return msg.Node.LastChild
}

func TestBuildMessageShape(t *testing.T) {
	p := &Pipeline{}
	tests := []struct {
		kind   Kind
		class  string
		avatar string
	}{
		{User, "user-message", "U"},
		{Assistant, "ai-message", "AI"},
	}
	for _, tt := range tests {
		msg := p.Build(tt.kind, "hello")
		if !HasClass(msg.Node, "message") || !HasClass(msg.Node, tt.class) {
			t.Errorf("class = %q, want message %s", Attr(msg.Node, "class"), tt.class)
		}
		if got := TextContent(msg.Node.FirstChild); got != tt.avatar {
			t.Errorf("avatar = %q, want %q", got, tt.avatar)
		}
		if !HasClass(content(msg), "content") || TextContent(content(msg)) != "hello" {
			t.Errorf("content = %q", HTML(content(msg)))
		}
	}
}

func TestZeroBlocksSkipsPlaceholdersAndRenderer(t *testing.T) {
	conv := &spyConverter{}
	d := &fakeDiagrams{}
	p := &Pipeline{Converter: conv, Diagrams: d}

	text := "Processes have **states** and a ```python block```."
	msg, out := p.Render(context.Background(), Assistant, text)

	if len(conv.inputs) != 1 || conv.inputs[0] != text {
		t.Fatalf("converter saw %q, want the unmodified text", conv.inputs)
	}
	if msg.Diagrams() != 0 || out != nil {
		t.Errorf("expected no diagrams, got %d / %v", msg.Diagrams(), out)
	}
	if d.calls.Load() != 0 {
		t.Errorf("renderer called %d times", d.calls.Load())
	}
	if strings.Contains(HTML(msg.Node), tokenTag) {
		t.Error("placeholder leaked into output")
	}
}

func TestBlocksBecomeContainersWithExactSource(t *testing.T) {
	p := &Pipeline{Converter: NewMarkdown("")}
	sources := []string{
		"graph TD\n  A-->B",
		"sequenceDiagram\n  Alice->>Bob: a < b && c > d",
		`graph LR
  P["fork() & exec()"] --> C{"x > 0?"}`,
	}
	text := "Intro *text*.\n\n```mermaid\n" + sources[0] + "\n```\n\nBetween.\n\n```mermaid\n" +
		sources[1] + "\n```\n\n```mermaid\n" + sources[2] + "\n```\n\nOutro."

	msg := p.Build(Assistant, text)

	nodes := diagramNodes(msg)
	if len(nodes) != len(sources) {
		t.Fatalf("got %d containers, want %d:\n%s", len(nodes), len(sources), HTML(msg.Node))
	}
	for i, n := range nodes {
		if Attr(n, "data-diagram-index") != string(rune('0'+i)) {
			t.Errorf("container %d has index %q", i, Attr(n, "data-diagram-index"))
		}
		if n.FirstChild == nil || n.FirstChild.Type != html.TextNode || n.FirstChild != n.LastChild {
			t.Fatalf("container %d should hold a single text node", i)
		}
		if n.FirstChild.Data != sources[i] {
			t.Errorf("container %d text = %q, want %q", i, n.FirstChild.Data, sources[i])
		}
		if n.Parent != content(msg) {
			t.Errorf("container %d should replace its paragraph", i)
		}
	}

	out := HTML(msg.Node)
	if !strings.Contains(out, "a &lt; b &amp;&amp; c &gt; d") {
		t.Errorf("markup characters not escaped on output:\n%s", out)
	}
	if !strings.Contains(out, "<em>text</em>") {
		t.Errorf("surrounding markdown not converted:\n%s", out)
	}
	if strings.Contains(out, tokenTag) {
		t.Errorf("placeholder leaked:\n%s", out)
	}
}

func TestOriginalExchangeRendersTwoEntries(t *testing.T) {
	p := &Pipeline{Converter: NewMarkdown(""), Diagrams: &fakeDiagrams{}}
	history := []struct{ role, content string }{
		{"user", "hi"},
		{"assistant", "```mermaid\nA-->B\n```"},
	}

	var msgs []*Message
	for _, m := range history {
		msg, _ := p.Render(context.Background(), KindForRole(m.role), m.content)
		msgs = append(msgs, msg)
	}

	if len(msgs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(msgs))
	}
	if !HasClass(msgs[0].Node, "user-message") || TextContent(content(msgs[0])) != "hi" {
		t.Errorf("first entry = %s", HTML(msgs[0].Node))
	}
	nodes := diagramNodes(msgs[1])
	if len(nodes) != 1 || TextContent(nodes[0]) != "A-->B" {
		t.Fatalf("second entry = %s", HTML(msgs[1].Node))
	}
	if Attr(nodes[0], "data-rendered") != "true" {
		t.Error("diagram was not rendered")
	}
}

func TestUserTextIsNeverMarkup(t *testing.T) {
	conv := &spyConverter{}
	p := &Pipeline{Converter: conv}

	text := "**not bold** <script>alert(1)</script> <b>x</b>"
	msg := p.Build(User, text)

	if len(conv.inputs) != 0 {
		t.Errorf("converter called for user text")
	}
	if got := TextContent(content(msg)); got != text {
		t.Errorf("text = %q, want %q", got, text)
	}
	els := FindAll(content(msg), func(n *html.Node) bool {
		return n.Type == html.ElementNode && n != content(msg)
	})
	if len(els) != 0 {
		t.Errorf("user text produced elements: %s", HTML(content(msg)))
	}
}

func TestAssistantRawHTMLIsOmitted(t *testing.T) {
	p := &Pipeline{Converter: NewMarkdown("")}
	msg := p.Build(Assistant, "Hi <script>alert(1)</script> [x](javascript:alert(1))")

	scripts := FindAll(msg.Node, func(n *html.Node) bool { return n.DataAtom == atom.Script })
	if len(scripts) != 0 {
		t.Errorf("script element survived: %s", HTML(msg.Node))
	}
	if strings.Contains(HTML(msg.Node), `href="javascript:`) {
		t.Errorf("dangerous link survived: %s", HTML(msg.Node))
	}
}

func TestConverterFailureFallsBackToLiteral(t *testing.T) {
	p := &Pipeline{Converter: &spyConverter{err: errors.New("broken")}}
	msg := p.Build(Assistant, "**still here**")
	if got := TextContent(content(msg)); got != "**still here**" {
		t.Errorf("text = %q", got)
	}
}

func TestMessageEntirelyDiagram(t *testing.T) {
	p := &Pipeline{Converter: NewMarkdown("")}
	msg := p.Build(Assistant, "```mermaid\npie\n  \"a\": 1\n```")

	nodes := diagramNodes(msg)
	if len(nodes) != 1 {
		t.Fatalf("got %d containers", len(nodes))
	}
	if strings.TrimSpace(TextContent(content(msg))) != "pie\n  \"a\": 1" {
		t.Errorf("content = %q", TextContent(content(msg)))
	}
}

func TestInlinePlaceholderSplitsText(t *testing.T) {
	p := &Pipeline{}
	msg := p.Build(User, "before ```mermaid\ngraph TD\nA-->B``` after")

	c := content(msg)
	if c.FirstChild == nil || c.FirstChild.Data != "before " {
		t.Fatalf("first child = %q", HTML(c))
	}
	if !HasClass(c.FirstChild.NextSibling, "mermaid") {
		t.Fatalf("middle child is not a container: %s", HTML(c))
	}
	if c.LastChild.Data != " after" {
		t.Errorf("last child = %q", c.LastChild.Data)
	}
}

func TestPlaceholderLikeSourceIsRestoredIndependently(t *testing.T) {
	p := &Pipeline{Converter: NewMarkdown("")}
	fake := "graph TD\n  OSBDIAGRAMdeadbeef0000N1Z --> OSBDIAGRAMN0Z"
	text := "```mermaid\n" + fake + "\n```\n\nOSBDIAGRAMN1Z\n\n```mermaid\ngraph LR\n  X-->Y\n```"

	msg := p.Build(Assistant, text)

	nodes := diagramNodes(msg)
	if len(nodes) != 2 {
		t.Fatalf("got %d containers:\n%s", len(nodes), HTML(msg.Node))
	}
	if TextContent(nodes[0]) != fake {
		t.Errorf("block 0 = %q", TextContent(nodes[0]))
	}
	if TextContent(nodes[1]) != "graph LR\n  X-->Y" {
		t.Errorf("block 1 = %q", TextContent(nodes[1]))
	}
	if !strings.Contains(TextContent(content(msg)), "OSBDIAGRAMN1Z") {
		t.Error("literal placeholder-like user text was altered")
	}
}

func TestDiagramFailureIsIsolated(t *testing.T) {
	d := &fakeDiagrams{
		fail:  map[string]error{"graph TD\n  bad": errors.New("parse error")},
		panic: "graph TD\n  explode",
	}
	p := &Pipeline{Converter: NewMarkdown(""), Diagrams: d}
	text := "Text first.\n\n```mermaid\ngraph TD\n  ok\n```\n\n```mermaid\ngraph TD\n  bad\n```\n\n```mermaid\ngraph TD\n  explode\n```"

	msg, out := p.Render(context.Background(), Assistant, text)

	if len(out) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(out))
	}
	if !out[0].OK() || out[1].OK() || out[2].OK() {
		t.Fatalf("outcomes = %+v", out)
	}
	if d.calls.Load() != 3 {
		t.Errorf("renderer called %d times, want 3", d.calls.Load())
	}

	nodes := diagramNodes(msg)
	if len(nodes) != 3 {
		t.Fatalf("got %d diagram nodes", len(nodes))
	}
	if !HasClass(nodes[0], "mermaid") || Attr(nodes[0], "data-rendered") != "true" {
		t.Errorf("good diagram not rendered: %s", HTML(nodes[0]))
	}
	for i, src := range []string{"graph TD\n  bad", "graph TD\n  explode"} {
		n := nodes[i+1]
		if n.DataAtom != atom.Pre || TextContent(n) != ErrorPrefix+src {
			t.Errorf("fallback %d = %s", i+1, HTML(n))
		}
		if !strings.Contains(Attr(n, "style"), "pre-wrap") || !strings.Contains(Attr(n, "style"), "monospace") {
			t.Errorf("fallback %d style = %q", i+1, Attr(n, "style"))
		}
	}
	if !strings.HasPrefix(TextContent(content(msg)), "Text first.") {
		t.Error("surrounding text missing")
	}
}

func TestDiagramTimeout(t *testing.T) {
	p := &Pipeline{Diagrams: &fakeDiagrams{delay: time.Second}, Timeout: 20 * time.Millisecond}
	_, out := p.Render(context.Background(), Assistant, "```mermaid\ngraph TD\nA-->B\n```")
	if len(out) != 1 || out[0].OK() {
		t.Fatalf("expected timeout failure, got %+v", out)
	}
}

func TestBuildLeavesContainersUntilApplied(t *testing.T) {
	p := &Pipeline{Diagrams: &fakeDiagrams{fail: map[string]error{"x": errors.New("bad")}}}
	msg := p.Build(Assistant, "```mermaid\nx\n```")
	before := msg.Containers()[0]

	out := p.RenderDiagrams(context.Background(), msg)
	if msg.Containers()[0] != before || !HasClass(diagramNodes(msg)[0], "mermaid") {
		t.Fatal("RenderDiagrams must not touch the message tree")
	}

	msg.ApplyDiagrams(out)
	msg.ApplyDiagrams(out)
	nodes := diagramNodes(msg)
	if len(nodes) != 1 || nodes[0].DataAtom != atom.Pre {
		t.Fatalf("after apply: %s", HTML(msg.Node))
	}
}

func TestKindForRole(t *testing.T) {
	for role, want := range map[string]Kind{"user": User, "assistant": Assistant, "ai": Assistant, "": Assistant} {
		if got := KindForRole(role); got != want {
			t.Errorf("KindForRole(%q) = %v, want %v", role, got, want)
		}
	}
}
