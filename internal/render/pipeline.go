// Package render turns raw chat text into a safe node tree. Mermaid blocks
// are cut out before markdown conversion and restored afterwards by tree
// surgery, so neither renderer can see or corrupt the other's input.
package render

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ziadkadry99/osbuddy/internal/diagrams"
)

// Kind selects how message text is treated.
type Kind int

const (
	// User text is always shown literally.
	User Kind = iota
	// Assistant text is converted from markdown.
	Assistant
)

// KindForRole maps a stored role to a Kind. Anything but "user" is an
// assistant message.
func KindForRole(role string) Kind {
	if role == "user" {
		return User
	}
	return Assistant
}

func (k Kind) class() string {
	if k == User {
		return "user-message"
	}
	return "ai-message"
}

func (k Kind) avatar() string {
	if k == User {
		return "U"
	}
	return "AI"
}

// DiagramRenderer renders a single diagram container in place.
type DiagramRenderer interface {
	Render(ctx context.Context, container *html.Node) error
}

// DefaultDiagramTimeout bounds a single diagram render.
const DefaultDiagramTimeout = 2 * time.Second

// ErrorPrefix starts the text of a failed diagram's fallback.
const ErrorPrefix = "Diagram Error. Raw Code:\n"

var ErrTimeout = errors.New("diagram render timed out")

// Pipeline renders messages. The zero value shows every message literally
// and leaves diagram containers unrendered.
type Pipeline struct {
	Converter Converter
	Diagrams  DiagramRenderer
	// Timeout bounds each diagram; DefaultDiagramTimeout when zero.
	Timeout time.Duration
}

// Message is a rendered message node plus the diagram bookkeeping needed to
// finish it later.
type Message struct {
	Kind Kind
	// Node is the div.message element to attach to a thread.
	Node *html.Node

	sources    []string
	containers []*html.Node
}

// Diagrams returns the number of diagram blocks in the message.
func (m *Message) Diagrams() int { return len(m.sources) }

// Containers returns the current diagram nodes, by block index.
func (m *Message) Containers() []*html.Node {
	out := make([]*html.Node, len(m.containers))
	copy(out, m.containers)
	return out
}

// Outcome is the result of rendering one diagram.
type Outcome struct {
	Index int
	Err   error

	node *html.Node
}

func (o Outcome) OK() bool { return o.Err == nil }

// Build runs every step that does not involve the diagram renderer: block
// extraction, conversion, materialization and container substitution.
func (p *Pipeline) Build(kind Kind, text string) *Message {
	msg := &Message{Kind: kind}
	content := Element("div", "class", "content")
	msg.Node = Element("div", "class", "message "+kind.class())
	avatar := Element("div", "class", "avatar")
	avatar.AppendChild(Text(kind.avatar()))
	msg.Node.AppendChild(avatar)
	msg.Node.AppendChild(content)

	substituted, tokens := text, (*tokenSet)(nil)
	if FenceCount(text) > 0 {
		tokens = newTokenSet(text)
		substituted = diagrams.FencePattern.ReplaceAllStringFunc(text, func(block string) string {
			src := diagrams.FencePattern.FindStringSubmatch(block)[1]
			msg.sources = append(msg.sources, src)
			return tokens.token(len(msg.sources) - 1)
		})
	}

	for _, n := range materialize(p.markup(kind, substituted)) {
		content.AppendChild(n)
	}

	if tokens != nil {
		msg.containers = make([]*html.Node, len(msg.sources))
		substitute(content, tokens, msg)
		// A converter may drop a placeholder; the diagram still gets shown.
		for i, c := range msg.containers {
			if c == nil {
				msg.containers[i] = newContainer(i, msg.sources[i])
				content.AppendChild(msg.containers[i])
			}
		}
	}
	return msg
}

// RenderDiagrams renders every diagram of msg concurrently on detached
// containers. The message tree is not touched; pass the outcomes to
// ApplyDiagrams. All diagrams are attempted regardless of failures.
func (p *Pipeline) RenderDiagrams(ctx context.Context, msg *Message) []Outcome {
	out := make([]Outcome, len(msg.sources))
	var wg sync.WaitGroup
	for i, src := range msg.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = p.renderOne(ctx, i, src)
		}()
	}
	wg.Wait()
	return out
}

// Render builds the message and renders its diagrams synchronously.
func (p *Pipeline) Render(ctx context.Context, kind Kind, text string) (*Message, []Outcome) {
	msg := p.Build(kind, text)
	if msg.Diagrams() == 0 {
		return msg, nil
	}
	out := p.RenderDiagrams(ctx, msg)
	msg.ApplyDiagrams(out)
	return msg, out
}

// ApplyDiagrams swaps rendered or fallback nodes into the message tree.
// Containers that have been detached are skipped.
func (m *Message) ApplyDiagrams(outcomes []Outcome) {
	for _, o := range outcomes {
		if o.node == nil || o.Index < 0 || o.Index >= len(m.containers) {
			continue
		}
		old := m.containers[o.Index]
		if old == nil || old == o.node || old.Parent == nil {
			continue
		}
		Replace(old, o.node)
		m.containers[o.Index] = o.node
	}
}

func (p *Pipeline) markup(kind Kind, text string) string {
	if kind == Assistant && p.Converter != nil {
		out, err := p.Converter.Convert(text)
		if err == nil {
			return out
		}
		log.Printf("render: markdown conversion failed, showing literal text: %v", err)
	}
	return html.EscapeString(text)
}

func (p *Pipeline) renderOne(ctx context.Context, i int, src string) Outcome {
	node := newContainer(i, src)
	if p.Diagrams == nil {
		return Outcome{Index: i, node: node}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultDiagramTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("diagram renderer panicked: %v", r)
			}
		}()
		done <- p.Diagrams.Render(ctx, node)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrTimeout
	}
	if err != nil {
		return Outcome{Index: i, Err: fmt.Errorf("diagram %d: %w", i, err), node: fallback(src)}
	}
	return Outcome{Index: i, node: node}
}

// FenceCount reports how many mermaid blocks text contains.
func FenceCount(text string) int {
	if !strings.Contains(text, "```mermaid") {
		return 0
	}
	return len(diagrams.FencePattern.FindAllStringIndex(text, -1))
}

func materialize(markup string) []*html.Node {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		// The tokenizer only fails on reader errors.
		return []*html.Node{Text(markup)}
	}
	return nodes
}

func newContainer(i int, src string) *html.Node {
	div := Element("div", "class", "mermaid", "data-diagram-index", strconv.Itoa(i))
	div.AppendChild(Text(strings.TrimSpace(html.UnescapeString(src))))
	return div
}

func fallback(src string) *html.Node {
	pre := Element("pre", "class", "diagram-error", "style", "white-space: pre-wrap; font-family: monospace;")
	pre.AppendChild(Text(ErrorPrefix + strings.TrimSpace(html.UnescapeString(src))))
	return pre
}

// tokenSet produces placeholders unique to one render. The nonce is chosen
// so that no placeholder already occurs in the input text.
type tokenSet struct {
	prefix string
	re     *regexp.Regexp
}

const tokenTag = "OSBDIAGRAM"

func newTokenSet(text string) *tokenSet {
	var prefix string
	for {
		var b [6]byte
		_, _ = rand.Read(b[:])
		prefix = tokenTag + hex.EncodeToString(b[:]) + "N"
		if !strings.Contains(text, prefix) {
			break
		}
	}
	return &tokenSet{
		prefix: prefix,
		re:     regexp.MustCompile(prefix + `(\d+)Z`),
	}
}

func (t *tokenSet) token(i int) string {
	return t.prefix + strconv.Itoa(i) + "Z"
}

// substitute replaces placeholders in text nodes below root with diagram
// containers.
func substitute(root *html.Node, tokens *tokenSet, msg *Message) {
	texts := FindAll(root, func(n *html.Node) bool {
		return n.Type == html.TextNode && strings.Contains(n.Data, tokens.prefix)
	})
	for _, n := range texts {
		matches := tokens.re.FindAllStringSubmatchIndex(n.Data, -1)
		if len(matches) == 0 {
			continue
		}

		// <p>TOKEN</p> becomes the container itself.
		if len(matches) == 1 && onlyChild(n) && n.Parent.DataAtom == atom.P &&
			strings.TrimSpace(n.Data) == n.Data[matches[0][0]:matches[0][1]] {
			if c := claim(msg, n.Data[matches[0][2]:matches[0][3]]); c != nil {
				Replace(n.Parent, c)
			}
			continue
		}

		parent, pos := n.Parent, 0
		for _, m := range matches {
			c := claim(msg, n.Data[m[2]:m[3]])
			if c == nil {
				continue
			}
			if m[0] > pos {
				parent.InsertBefore(Text(n.Data[pos:m[0]]), n)
			}
			parent.InsertBefore(c, n)
			pos = m[1]
		}
		if pos < len(n.Data) {
			parent.InsertBefore(Text(n.Data[pos:]), n)
		}
		parent.RemoveChild(n)
	}
}

// claim returns a fresh container for the block index, or nil when the index
// is unknown or already placed.
func claim(msg *Message, idx string) *html.Node {
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(msg.sources) || msg.containers[i] != nil {
		return nil
	}
	msg.containers[i] = newContainer(i, msg.sources[i])
	return msg.containers[i]
}

func onlyChild(n *html.Node) bool {
	return n.Parent != nil && n.PrevSibling == nil && n.NextSibling == nil
}
