package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeParser_TopLevelBoundaries(t *testing.T) {
	body := "<div><p>a</p></div>text<br><section>s</section><img src=x/>"
	bounds, err := NewTreeParser(0).Segments(body)
	require.NoError(t, err)

	want := []int{
		len("<div><p>a</p></div>"),
		len("<div><p>a</p></div>text<br>"),
		len("<div><p>a</p></div>text<br><section>s</section>"),
		len(body),
	}
	assert.Equal(t, want, bounds)
}

func TestTreeParser_ImpliedAndStrayEndTags(t *testing.T) {
	body := "<p>one<p>two</span><ul><li>a<li>b</ul>"
	bounds, err := NewTreeParser(0).Segments(body)
	require.NoError(t, err)

	assert.Equal(t, []int{len("<p>one"), len("<p>one<p>two</span>"), len(body)}, bounds)
}

func TestTreeParser_TrailingOptionalEndTag(t *testing.T) {
	body := "<div>x</div><p>last paragraph"
	bounds, err := NewTreeParser(0).Segments(body)
	require.NoError(t, err)
	assert.Equal(t, []int{len("<div>x</div>")}, bounds)
}

func TestTreeParser_RawTextElements(t *testing.T) {
	body := "<script>if (a < b) { document.write('<div>'); }</script><div>x</div>"
	bounds, err := NewTreeParser(0).Segments(body)
	require.NoError(t, err)
	assert.Equal(t, []int{strings.Index(body, "<div>x"), len(body)}, bounds)
}

func TestTreeParser_Unclosed(t *testing.T) {
	_, err := NewTreeParser(0).Segments("<div><p>a</p>")
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StrategyTree, se.Strategy)
	assert.Contains(t, se.Error(), "unclosed <div>")
}

func TestTreeParser_TooCostly(t *testing.T) {
	_, err := NewTreeParser(8).Segments("<div>too long</div>")
	assert.True(t, errors.Is(err, ErrTooCostly))
}

func TestPatternParser_NestedBlocks(t *testing.T) {
	body := "<h1>t</h1><DIV class=a><div>in</div></DIV> gap <nav/>" + "<aside>x</aside>"
	bounds, err := NewPatternParser().Segments(body)
	require.NoError(t, err)

	assert.Equal(t, []int{
		len("<h1>t</h1><DIV class=a><div>in</div></DIV>"),
		len("<h1>t</h1><DIV class=a><div>in</div></DIV> gap <nav/>"),
		len(body),
	}, bounds)
}

func TestPatternParser_Unterminated(t *testing.T) {
	_, err := NewPatternParser().Segments("<section><div></div>")
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StrategyPattern, se.Strategy)
}

func TestFixedCuts_NeverInsideTag(t *testing.T) {
	body := strings.Repeat("<span class=\"long-attribute-value\">abc</span>", 200)
	cuts := fixedCuts(body, 0, len(body), 100)

	prev := 0
	for _, c := range cuts {
		require.Greater(t, c, prev)
		piece := body[prev:c]
		assert.Equal(t, strings.Count(piece, "<"), strings.Count(piece, ">"), "piece %q splits a tag", piece)
		prev = c
	}
	assert.Equal(t, len(body), prev)
}

func TestFixedCuts_RuneAligned(t *testing.T) {
	body := strings.Repeat("日本語テキスト", 300)
	cuts := fixedCuts(body, 0, len(body), 7)

	prev := 0
	for _, c := range cuts {
		require.Greater(t, c, prev)
		assert.True(t, utf8.ValidString(body[prev:c]))
		prev = c
	}
	assert.Equal(t, len(body), prev)
}

func TestGroup_ClosesBeforeExceedingTarget(t *testing.T) {
	body := strings.Repeat("a", 100)
	frags := group(body, []int{30, 60, 90, 100}, 50, DefaultOverflowRatio)

	require.Len(t, frags, 3)
	assert.Equal(t, fragment{start: 0, end: 30}, frags[0])
	assert.Equal(t, fragment{start: 30, end: 60}, frags[1])
	assert.Equal(t, fragment{start: 60, end: 100}, frags[2])
}
