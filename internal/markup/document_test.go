package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullDoc = `<!DOCTYPE html>
<html lang="en">
<head><title>T</title></head>
<body class="page">
<header>Top</header>
<main>Content</main>
</body>
</html>`

func TestParse_FullDocument(t *testing.T) {
	d := Parse(fullDoc)

	assert.Equal(t, "<!DOCTYPE html>", d.Doctype)
	assert.Equal(t, "<head><title>T</title></head>", d.Head())
	assert.True(t, d.HasBodyTag())
	assert.Equal(t, "\n<header>Top</header>\n<main>Content</main>\n", d.Body())
	assert.Equal(t, len(fullDoc), d.Len())
}

func TestParse_HeaderIsNotHead(t *testing.T) {
	d := Parse(`<html><body><header>x</header></body></html>`)
	assert.Equal(t, -1, d.HeadStart)
	assert.Equal(t, "<header>x</header>", d.Body())
}

func TestParse_CaseInsensitiveTags(t *testing.T) {
	d := Parse(`<!doctype HTML><HTML><HEAD></HEAD><BODY><p>a</p></BODY></HTML>`)
	assert.Equal(t, "<!doctype HTML>", d.Doctype)
	assert.Equal(t, "<p>a</p>", d.Body())
}

func TestParse_NoBodyTag(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		body string
	}{
		{"bare fragment", "<p>one</p><p>two</p>", "<p>one</p><p>two</p>"},
		{"html without body", "<html><p>x</p></html>", "<p>x</p>"},
		{"head without body", "<html><head></head><div>y</div></html>", "<div>y</div>"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Parse(tt.raw)
			assert.False(t, d.HasBodyTag())
			assert.Equal(t, tt.body, d.Body())
		})
	}
}

func TestWrapper_RoundTrip(t *testing.T) {
	for _, raw := range []string{fullDoc, "<p>bare</p>", "<html><head></head><div>y</div></html>"} {
		d := Parse(raw)
		w := d.Wrapper()

		standalone := w.Wrap("<section>frag</section>", Annotation(1, 3))
		assert.Contains(t, standalone, "<!-- docrender:chunk 2/3 -->")
		assert.Contains(t, strings.ToLower(standalone), "<body")

		body, err := w.Unwrap(standalone)
		require.NoError(t, err)
		assert.Equal(t, "<section>frag</section>", body)
	}
}

func TestWrapper_WholeBodyReproducesDocument(t *testing.T) {
	d := Parse(fullDoc)
	assert.Equal(t, fullDoc, d.Wrapper().Wrap(d.Body(), ""))
}

func TestWrapper_UnwrapForeignMarkup(t *testing.T) {
	w := Parse(fullDoc).Wrapper()
	_, err := w.Unwrap("<p>not wrapped</p>")
	assert.Error(t, err)
}

func TestClosedBy(t *testing.T) {
	assert.True(t, ClosedBy("li", "li"))
	assert.True(t, ClosedBy("p", "p"))
	assert.True(t, ClosedBy("p", "header"))
	assert.False(t, ClosedBy("div", "div"))
	assert.False(t, ClosedBy("li", "p"))
	assert.True(t, MayOmitEnd("td"))
	assert.False(t, MayOmitEnd("section"))
}
