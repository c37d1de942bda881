// Package doctree holds the heading outline importers build from
// non-markup sources and renders it as a sectioned document.
package doctree

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DocTree is the root of an imported document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Plain text; blank lines separate paragraphs
	HTML     string     // Pre-rendered markup, emitted verbatim after Text
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Markup renders the tree as a complete document. Every top-level node
// becomes a direct child of <body> so the document splits along sections.
func (t *DocTree) Markup() string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(t.Title))
	sb.WriteString("</head>\n<body>\n")
	if t.Title != "" {
		fmt.Fprintf(&sb, "<header><h1>%s</h1></header>\n", html.EscapeString(t.Title))
	}
	for _, n := range t.Children {
		writeNode(&sb, n, 2)
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func writeNode(sb *strings.Builder, n *DocNode, level int) {
	sb.WriteString("<section")
	if n.Page > 0 {
		fmt.Fprintf(sb, ` data-page="%d"`, n.Page)
	}
	sb.WriteString(">\n")
	if n.Title != "" {
		h := min(level, 6)
		fmt.Fprintf(sb, "<h%d>%s</h%d>\n", h, html.EscapeString(n.Title), h)
	}
	for _, para := range Paragraphs(n.Text) {
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>\n"))
		sb.WriteString("</p>\n")
	}
	if n.HTML != "" {
		sb.WriteString(n.HTML)
		if !strings.HasSuffix(n.HTML, "\n") {
			sb.WriteByte('\n')
		}
	}
	for _, c := range n.Children {
		writeNode(sb, c, level+1)
	}
	sb.WriteString("</section>\n")
}

// Paragraphs splits text on blank lines, dropping empty paragraphs.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
