package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/docrender/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings open
// nested sections; every other block is rendered to HTML in place.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))
	sections := newSectionStack()

	var buf bytes.Buffer
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			sections.heading(h.Level, string(h.Text(src)))
			continue
		}
		buf.Reset()
		if err := md.Renderer().Render(&buf, src, n); err != nil {
			return nil, fmt.Errorf("render markdown block: %w", err)
		}
		sections.addHTML(buf.String())
	}

	return &doctree.DocTree{
		Title:    baseTitle(filename, ".md", ".markdown"),
		Children: sections.sections(),
	}, nil
}
