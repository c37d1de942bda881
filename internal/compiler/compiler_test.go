package compiler

import (
	"context"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Compile(t *testing.T) {
	c := NewTemplate(nil)
	out, err := c.Compile(context.Background(),
		`<h1>{{.title | upper}}</h1><p>part {{inc .chunkIndex}} of {{.totalChunks}}</p>`,
		map[string]any{"title": "report", "chunkIndex": 0, "totalChunks": 3})
	require.NoError(t, err)
	assert.Equal(t, `<h1>REPORT</h1><p>part 1 of 3</p>`, out)
}

func TestTemplate_EscapesData(t *testing.T) {
	c := NewTemplate(nil)
	out, err := c.Compile(context.Background(), `<p>{{.v}}</p><div>{{safeHTML .raw}}</div>`,
		map[string]any{"v": "<script>x</script>", "raw": "<b>ok</b>"})
	require.NoError(t, err)
	assert.Equal(t, `<p>&lt;script&gt;x&lt;/script&gt;</p><div><b>ok</b></div>`, out)
}

func TestTemplate_MissingKeysAndDefault(t *testing.T) {
	c := NewTemplate(nil)
	out, err := c.Compile(context.Background(), `<p>{{default "n/a" .missing}}</p>`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, `<p>n/a</p>`, out)
}

func TestTemplate_ExtraFuncsOverride(t *testing.T) {
	c := NewTemplate(template.FuncMap{"upper": func(s string) string { return "X" + s }})
	out, err := c.Compile(context.Background(), `{{upper "a"}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "Xa", out)
}

func TestTemplate_Errors(t *testing.T) {
	c := NewTemplate(nil)
	_, err := c.Compile(context.Background(), `{{.a`, nil)
	assert.ErrorContains(t, err, "parse template")

	_, err = c.Compile(context.Background(), `{{call .f}}`, map[string]any{"f": func() (string, error) { return "", assert.AnError }})
	assert.ErrorContains(t, err, "execute template")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compile(ctx, `<p>x</p>`, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPassthrough(t *testing.T) {
	doc := "<!DOCTYPE html><html><body>{{.x}}<!-- kept --></body></html>"
	out, err := Passthrough{}.Compile(context.Background(), doc, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}
