package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Converter turns markdown into markup.
type Converter interface {
	Convert(src string) (string, error)
}

// Markdown is a goldmark Converter. Raw HTML in the source is omitted and
// dangerous link targets are dropped, so its output is safe to materialize.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown returns a GFM converter that highlights fenced code with the
// given chroma style ("monokai" when empty).
func NewMarkdown(style string) *Markdown {
	if style == "" {
		style = "monokai"
	}
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle(style),
				),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
			),
		),
	}
}

func (m *Markdown) Convert(src string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}
