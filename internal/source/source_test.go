package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrender/internal/markup"
)

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.html", "B.HTM", "c.md", "d.markdown", "e.txt", "f.csv", "g.pdf", "h.docx"} {
		imp, err := ForFile(name)
		require.NoError(t, err, name)
		assert.NotNil(t, imp)
		assert.True(t, IsSupportedExtension(name), name)
	}
	_, err := ForFile("x.exe")
	assert.ErrorContains(t, err, "unsupported file extension: .exe")
	assert.False(t, IsSupportedExtension("x.exe"))
}

func TestHTMLImporter_Passthrough(t *testing.T) {
	doc := "<!DOCTYPE html><html><body><p>{{.x}}</p></body></html>"
	out, err := Import(strings.NewReader("\xef\xbb\xbf"+doc), "page.html")
	require.NoError(t, err)
	assert.Equal(t, doc, out)

	_, err = Import(strings.NewReader("<p>\xff</p>"), "bad.html")
	assert.Error(t, err)
}

func TestCSVParser_Tables(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,score\n")
	for i := range 45 {
		sb.WriteString("p")
		sb.WriteString(strings.Repeat("x", i%3))
		sb.WriteString(",<5\n")
	}
	tree, err := (&CSVParser{}).Parse(strings.NewReader(sb.String()), "scores.csv")
	require.NoError(t, err)
	assert.Equal(t, "scores", tree.Title)
	require.Len(t, tree.Children, 3)
	assert.Equal(t, "Rows 2-21", tree.Children[0].Title)
	assert.Equal(t, "Rows 42-46", tree.Children[2].Title)
	assert.Contains(t, tree.Children[0].HTML, "<thead><tr><th>name</th><th>score</th></tr></thead>")
	assert.Equal(t, 20, strings.Count(tree.Children[0].HTML, "<td>&lt;5</td>"))
	assert.Equal(t, 5, strings.Count(tree.Children[2].HTML, "<tr>")-1)
}

func TestCSVParser_Empty(t *testing.T) {
	tree, err := (&CSVParser{}).Parse(strings.NewReader(""), "empty.csv")
	require.NoError(t, err)
	assert.Empty(t, tree.Children)
}

func TestImport_SectionsAreTopLevel(t *testing.T) {
	out, err := Import(strings.NewReader("# One\n\ntext\n\n# Two\n\nmore\n"), "two.md")
	require.NoError(t, err)

	doc := markup.Parse(out)
	require.True(t, doc.HasBodyTag())
	body := doc.Body()
	assert.True(t, strings.HasPrefix(body, "\n<header><h1>two</h1></header>\n<section>\n<h2>One</h2>"))
	assert.Equal(t, 2, strings.Count(body, "<section>"))
}

func TestSectionStack(t *testing.T) {
	s := newSectionStack()
	s.addText("lead")
	s.heading(2, "a")
	s.addText("a text")
	s.heading(3, "a.1")
	s.addHTML("<hr>")
	s.heading(1, "b")
	s.addText("  ")

	got := s.sections()
	require.Len(t, got, 3)
	assert.Equal(t, "lead", got[0].Text)
	assert.Equal(t, "a", got[1].Title)
	assert.Equal(t, "a text", got[1].Text)
	require.Len(t, got[1].Children, 1)
	assert.Equal(t, "<hr>", got[1].Children[0].HTML)
	assert.Equal(t, "b", got[2].Title)
	assert.Empty(t, got[2].Text)
}
