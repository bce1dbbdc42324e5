// Package render converts Markdown bodies into HTML and the derived metrics
// stored alongside each entity.
package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// WordsPerMinute is the reading speed behind ReadingMinutes.
const WordsPerMinute = 200

// Heading is one outline entry.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// Result is the rendered body plus derived metrics.
type Result struct {
	HTML           string
	PlainText      string
	WordCount      int
	ReadingMinutes int
	Outline        []Heading
}

// Options toggles renderer behaviour.
type Options struct {
	// Unsafe lets raw HTML in the body through to the output.
	Unsafe    bool
	HardWraps bool
}

// Renderer is a reusable goldmark pipeline. It holds no per-call state and
// is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a renderer with GFM, footnotes and definition lists enabled.
func New(opts Options) *Renderer {
	rendererOptions := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.DefinitionList),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	var htmlOptions []renderer.Option
	if opts.Unsafe {
		htmlOptions = append(htmlOptions, html.WithUnsafe())
	}
	if opts.HardWraps {
		htmlOptions = append(htmlOptions, html.WithHardWraps())
	}
	if len(htmlOptions) > 0 {
		rendererOptions = append(rendererOptions, goldmark.WithRendererOptions(htmlOptions...))
	}
	return &Renderer{md: goldmark.New(rendererOptions...)}
}

// Render converts body. A panic inside goldmark is reported as
// RENDER_FAILURE so only the affected document fails.
func (r *Renderer) Render(body []byte) (result Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = syncerr.Newf(syncerr.KindRender, "", "renderer panic: %v", recovered)
		}
	}()

	reader := text.NewReader(body)
	doc := r.md.Parser().Parse(reader)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, body, doc); err != nil {
		return Result{}, syncerr.New(syncerr.KindRender, "", fmt.Errorf("render html: %w", err))
	}

	plain, outline := inspect(doc, body)
	words := len(strings.Fields(plain))
	return Result{
		HTML:           buf.String(),
		PlainText:      plain,
		WordCount:      words,
		ReadingMinutes: readingMinutes(words),
		Outline:        outline,
	}, nil
}

func readingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}

// inspect walks the AST once collecting the visible text and the heading
// outline.
func inspect(doc ast.Node, source []byte) (string, []Heading) {
	var plain strings.Builder
	var outline []Heading

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock {
				plain.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := Heading{Level: n.Level, Text: strings.TrimSpace(string(n.Text(source)))}
			if id, ok := n.AttributeString("id"); ok {
				if raw, ok := id.([]byte); ok {
					heading.ID = string(raw)
				}
			}
			outline = append(outline, heading)
		case *ast.Text:
			plain.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				plain.WriteByte(' ')
			}
		case *ast.String:
			plain.Write(n.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(collapseWhitespace(plain.String())), outline
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
