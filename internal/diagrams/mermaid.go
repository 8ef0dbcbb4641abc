package diagrams

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// DefaultTheme is the Mermaid theme used when none is configured.
const DefaultTheme = "dark"

// FencePattern matches a fenced mermaid block and captures its inner source.
var FencePattern = regexp.MustCompile("(?s)```mermaid\\s*(.*?)\\s*```")

var (
	ErrEmpty       = errors.New("empty diagram")
	ErrUnknownType = errors.New("unknown diagram type")
	ErrSyntax      = errors.New("diagram syntax error")
)

var (
	initOnce sync.Once
	theme    string
)

// Initialize sets the global diagram theme. Only the first call has any
// effect; it reports whether this call performed the initialization.
func Initialize(name string) bool {
	ran := false
	initOnce.Do(func() {
		theme = strings.TrimSpace(name)
		if theme == "" {
			theme = DefaultTheme
		}
		ran = true
	})
	return ran
}

// Theme returns the global theme, initializing it with DefaultTheme if
// Initialize was never called.
func Theme() string {
	Initialize(DefaultTheme)
	return theme
}

// diagramTypes lists the header keywords Mermaid accepts.
var diagramTypes = map[string]bool{
	"graph":              true,
	"flowchart":          true,
	"sequenceDiagram":    true,
	"classDiagram":       true,
	"classDiagram-v2":    true,
	"stateDiagram":       true,
	"stateDiagram-v2":    true,
	"erDiagram":          true,
	"gantt":              true,
	"pie":                true,
	"journey":            true,
	"gitGraph":           true,
	"timeline":           true,
	"mindmap":            true,
	"quadrantChart":      true,
	"requirementDiagram": true,
	"C4Context":          true,
	"sankey-beta":        true,
	"xychart-beta":       true,
	"block-beta":         true,
}

var flowDirections = map[string]bool{
	"TD": true, "TB": true, "BT": true, "RL": true, "LR": true,
}

// Mermaid validates diagram containers and tags them for the browser-side
// Mermaid runtime. The container's source text is never modified.
type Mermaid struct {
	// Theme overrides the global theme for this renderer.
	Theme string
}

// NewMermaid returns a renderer bound to the global theme.
func NewMermaid() *Mermaid {
	return &Mermaid{}
}

// Render checks the source held by container and marks it with its diagram
// type and theme. A non-nil error means the container must not be shown as a
// diagram.
func (m *Mermaid) Render(ctx context.Context, container *html.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if container == nil || container.Type != html.ElementNode {
		return fmt.Errorf("render diagram: %w", ErrEmpty)
	}

	kind, err := Validate(textContent(container))
	if err != nil {
		return err
	}

	t := m.Theme
	if t == "" {
		t = Theme()
	}
	setAttr(container, "data-diagram-type", kind)
	setAttr(container, "data-theme", t)
	return ctx.Err()
}

// Validate reports the diagram type declared by src, or an error describing
// why Mermaid would reject it.
func Validate(src string) (string, error) {
	lines := strings.Split(strings.TrimSpace(src), "\n")
	start := skipPreamble(lines)
	if start >= len(lines) {
		return "", ErrEmpty
	}

	header := strings.Fields(lines[start])
	kind := strings.TrimSuffix(header[0], ":")
	if !diagramTypes[kind] {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}

	if kind == "graph" || kind == "flowchart" {
		if len(header) > 1 && !flowDirections[header[1]] {
			return "", fmt.Errorf("%w: line %d: unknown direction %q", ErrSyntax, start+1, header[1])
		}
		if err := checkFlowchart(lines[start+1:], start+2); err != nil {
			return "", err
		}
	}
	return kind, nil
}

// skipPreamble returns the index of the header line, skipping blank lines,
// comments, init directives and YAML front matter.
func skipPreamble(lines []string) int {
	i := 0
	if i < len(lines) && strings.TrimSpace(lines[i]) == "---" {
		for i++; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				i++
				break
			}
		}
	}
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		break
	}
	return i
}

func checkFlowchart(lines []string, firstLine int) error {
	depth := 0
	for i, raw := range lines {
		lineNo := firstLine + i
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "subgraph ") || line == "subgraph":
			depth++
		case line == "end":
			if depth == 0 {
				return fmt.Errorf("%w: line %d: end without subgraph", ErrSyntax, lineNo)
			}
			depth--
			continue
		}
		if err := checkBrackets(line); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrSyntax, lineNo, err)
		}
	}
	if depth > 0 {
		return fmt.Errorf("%w: %d unclosed subgraph(s)", ErrSyntax, depth)
	}
	return nil
}

var closers = map[rune]rune{')': '(', ']': '[', '}': '{'}

// checkBrackets verifies that brackets outside quoted labels nest properly
// and that quotes are paired.
func checkBrackets(line string) error {
	var stack []rune
	var prev rune
	quoted := false
	for _, r := range line {
		if r == '"' {
			quoted = !quoted
			prev = r
			continue
		}
		if quoted {
			continue
		}
		switch r {
		case '(', '[', '{':
			// Nesting is only legal as shape syntax, e.g. [(db)] or ((c)).
			if len(stack) > 0 && !isOpener(prev) {
				return fmt.Errorf("unquoted %q inside label", r)
			}
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != closers[r] {
				return fmt.Errorf("unexpected %q", r)
			}
			stack = stack[:len(stack)-1]
		}
		prev = r
	}
	if quoted {
		return errors.New("unterminated quote")
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

func isOpener(r rune) bool {
	return r == '(' || r == '[' || r == '{'
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
