package diagrams

import (
	"regexp"
	"strings"
)

// SanitizeBlocks repairs common mistakes in LLM-generated flowcharts inside
// every fenced mermaid block of text. Blocks that already validate, that are
// not flowcharts, or that the repair cannot fix are left untouched.
func SanitizeBlocks(text string) string {
	return FencePattern.ReplaceAllStringFunc(text, func(block string) string {
		m := FencePattern.FindStringSubmatch(block)
		src := m[1]
		if _, err := Validate(src); err == nil {
			return block
		}
		fixed, ok := sanitizeFlowchart(src)
		if !ok {
			return block
		}
		if _, err := Validate(fixed); err != nil {
			return block
		}
		return "```mermaid\n" + fixed + "\n```"
	})
}

// sanitizeFlowchart fixes header, subgraph balance and unquoted labels. It
// reports false when src is some other kind of diagram.
func sanitizeFlowchart(src string) (string, bool) {
	var out []string
	hasHeader := false
	depth := 0
	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if len(out) == 0 {
			kind := strings.TrimSuffix(strings.Fields(line)[0], ":")
			if diagramTypes[kind] && kind != "graph" && kind != "flowchart" {
				return "", false
			}
		}
		switch {
		case strings.HasPrefix(line, "graph ") || strings.HasPrefix(line, "flowchart ") ||
			line == "graph" || line == "flowchart":
			if !hasHeader {
				out = append(out, fixHeader(line))
				hasHeader = true
			}
		case strings.HasPrefix(line, "%%"):
			out = append(out, line)
		case strings.HasPrefix(line, "subgraph "):
			out = append(out, "    "+line)
			depth++
		case line == "end" || line == "en":
			if depth > 0 {
				out = append(out, "    end")
				depth--
			}
		case strings.HasPrefix(line, "classDef ") || strings.HasPrefix(line, "class ") ||
			strings.HasPrefix(line, "style ") || strings.HasPrefix(line, "linkStyle "):
			out = append(out, "    "+line)
		case isProse(line):
			// Free text the model wrote inside the fence.
		default:
			out = append(out, "    "+quoteLabels(line))
		}
	}
	for depth > 0 {
		out = append(out, "    end")
		depth--
	}
	if !hasHeader {
		out = append([]string{"graph TD"}, out...)
	}
	return strings.Join(out, "\n"), true
}

func fixHeader(line string) string {
	f := strings.Fields(line)
	if len(f) < 2 || !flowDirections[strings.ToUpper(f[1])] {
		return f[0] + " TD"
	}
	return f[0] + " " + strings.ToUpper(f[1])
}

var edgeToken = regexp.MustCompile(`--|==|-\.|\.-|[\[\](){}|]`)

// isProse reports whether line is a sentence rather than a statement.
func isProse(line string) bool {
	return !edgeToken.MatchString(line) && strings.Count(line, " ") >= 2
}

// nodeLabel matches ID[label] where the label is unquoted and holds no
// nested brackets.
var nodeLabel = regexp.MustCompile(`([A-Za-z0-9_]+)\[([^\[\]"]+)\]`)

// quoteLabels wraps labels containing Mermaid metacharacters in quotes.
// Shape syntax such as [(db)] or [/io/] is left alone.
func quoteLabels(line string) string {
	return nodeLabel.ReplaceAllStringFunc(line, func(ref string) string {
		m := nodeLabel.FindStringSubmatch(ref)
		id, label := m[1], strings.TrimSpace(m[2])
		if label == "" || strings.ContainsAny(label[:1], `(/\`) {
			return ref
		}
		if !strings.ContainsAny(label, "(){}<>") {
			return ref
		}
		return id + `["` + escapeLabel(label) + `"]`
	})
}

func escapeLabel(s string) string {
	return strings.NewReplacer(
		`"`, "#quot;",
		"(", "#lpar;",
		")", "#rpar;",
		"[", "#lsqb;",
		"]", "#rsqb;",
		"{", "#lbrace;",
		"}", "#rbrace;",
		"<", "#lt;",
		">", "#gt;",
	).Replace(s)
}
