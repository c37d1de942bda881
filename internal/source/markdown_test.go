package source

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	tree, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", tree.Title)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 top-level section (h1), got %d", len(tree.Children))
	}

	h1 := tree.Children[0]
	if h1.Title != "Title" {
		t.Errorf("expected h1 title %q, got %q", "Title", h1.Title)
	}
	if h1.HTML != "<p>Intro text.</p>\n" {
		t.Errorf("expected intro paragraph, got %q", h1.HTML)
	}
	if len(h1.Children) != 2 {
		t.Fatalf("expected 2 h2 sections, got %d", len(h1.Children))
	}

	secA := h1.Children[0]
	if secA.Title != "Section A" || secA.HTML != "<p>Section A content.</p>\n" {
		t.Errorf("unexpected section A: %q %q", secA.Title, secA.HTML)
	}
	if len(secA.Children) != 1 || secA.Children[0].Title != "Subsection A1" {
		t.Fatalf("expected Subsection A1 under Section A, got %+v", secA.Children)
	}
	if h1.Children[1].Title != "Section B" {
		t.Errorf("expected %q, got %q", "Section B", h1.Children[1].Title)
	}
}

func TestMarkdownParser_LeadingContentAndBlocks(t *testing.T) {
	input := "Preface *here*.\n\n## Endpoints\n\n- GET /api/users\n- POST /api/users\n\n```\nx < y\n```\n"
	tree, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "api.markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "api" {
		t.Errorf("expected title %q, got %q", "api", tree.Title)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected preface plus one section, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "" || tree.Children[0].HTML != "<p>Preface <em>here</em>.</p>\n" {
		t.Errorf("unexpected preface: %+v", tree.Children[0])
	}
	ep := tree.Children[1].HTML
	if !strings.Contains(ep, "<li>GET /api/users</li>") {
		t.Errorf("expected rendered list, got %q", ep)
	}
	if !strings.Contains(ep, "<pre><code>x &lt; y\n</code></pre>") {
		t.Errorf("expected escaped code block, got %q", ep)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	tree, err := (&MarkdownParser{}).Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected 0 sections for empty input, got %d", len(tree.Children))
	}
}
