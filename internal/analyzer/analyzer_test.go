package analyzer

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/docrender/internal/markup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnalyze_HeaderCriticalFooterLow(t *testing.T) {
	// Surrounding content must not change the outcome.
	fillers := []string{
		"",
		"<p>intro</p>",
		strings.Repeat("<div><span>filler</span></div>", 50),
		"<main><article>body</article></main>",
		"<aside class=\"sidebar\">ad</aside>",
	}
	a := New(testLogger())
	for i, filler := range fillers {
		t.Run(fmt.Sprintf("filler-%d", i), func(t *testing.T) {
			doc := markup.Parse("<html><body>" + filler + "<header>Top</header>" + filler + "<footer>Bottom</footer>" + filler + "</body></html>")
			pm := a.Analyze(doc)
			assert.Equal(t, Critical, pm.TierOf("header", "", nil))
			assert.Equal(t, Low, pm.TierOf("footer", "", nil))
		})
	}
}

func TestAnalyze_Heuristics(t *testing.T) {
	doc := markup.Parse(`<body>
<div id="hero-banner">h</div>
<nav class="top">n</nav>
<div class="main-content">c</div>
<div class="sidebar">s</div>
<section class="related-posts">r</section>
<article>a</article>
<p class="lead">unmatched</p>
</body>`)
	pm := New(testLogger()).Analyze(doc)

	cases := map[string]Tier{
		"#hero-banner":   Critical,
		"nav":            Critical,
		".main-content":  High,
		".sidebar":       Low,
		".related-posts": Low,
		"article":        High,
	}
	for sel, want := range cases {
		got, ok := pm.Lookup(sel)
		require.True(t, ok, sel)
		assert.Equal(t, want, got, sel)
	}

	_, ok := pm.Lookup(".lead")
	assert.False(t, ok)
	assert.Equal(t, High, pm.TierOf("p", "", []string{"lead"}))
}

func TestAnalyze_SpecificityOrdering(t *testing.T) {
	doc := markup.Parse(`<body><header class="site-footer">odd</header><div id="masthead"></div></body>`)
	pm := New(testLogger()).Analyze(doc)

	require.NotEmpty(t, pm.Rules)
	for i := 1; i < len(pm.Rules); i++ {
		assert.GreaterOrEqual(t, pm.Rules[i-1].Specificity, pm.Rules[i].Specificity)
	}
	assert.Equal(t, "#masthead", pm.Rules[0].Selector)

	// A landmark tag keeps its tier even when a more specific word rule
	// disagrees.
	assert.Equal(t, Critical, pm.TierOf("header", "", []string{"site-footer"}))
	assert.Equal(t, Critical, pm.TierOf("div", "masthead", nil))
}

func TestTierOf_LandmarkTagBeatsWords(t *testing.T) {
	doc := markup.Parse(`<body>
<header class="sidebar-x">h</header>
<main><p>m</p></main>
<footer id="content-info" class="main-footer">f</footer>
<footer class="content">g</footer>
<div class="content">c</div>
</body>`)
	pm := New(testLogger()).Analyze(doc)

	assert.Equal(t, Low, pm.TierOf("footer", "content-info", []string{"main-footer"}))
	assert.Equal(t, Low, pm.TierOf("footer", "", []string{"content"}))
	assert.Equal(t, Critical, pm.TierOf("header", "", []string{"sidebar-x"}))
	assert.Equal(t, High, pm.TierOf("div", "", []string{"content"}))
	assert.Equal(t, Low, pm.Classify(`<footer id="content-info" class="main-footer">f</footer>`))
}

func TestAnalyze_CallerFlaggedCritical(t *testing.T) {
	doc := markup.Parse(`<body><footer id="pricing">p</footer><div class="promo">x</div></body>`)
	pm := New(testLogger(), "#pricing", ".promo").Analyze(doc)

	assert.Equal(t, Critical, pm.TierOf("footer", "pricing", nil))
	assert.Equal(t, Critical, pm.TierOf("div", "", []string{"promo"}))
	assert.Equal(t, weightFlagged, pm.Rules[0].Specificity)
}

func TestAnalyze_Deterministic(t *testing.T) {
	doc := markup.Parse(`<body><header></header><div class="nav-footer"></div><aside></aside><main></main></body>`)
	a := New(testLogger())
	first := a.Analyze(doc)
	for range 5 {
		assert.Equal(t, first, a.Analyze(doc))
	}
}

func TestAnalyze_EmptyAndGarbage(t *testing.T) {
	a := New(testLogger())
	for _, raw := range []string{"", "<<<>>>", "<div", "plain text only"} {
		pm := a.Analyze(markup.Parse(raw))
		assert.Equal(t, High, pm.TierOf("section", "", nil))
	}
}

func TestPriorityMap_Classify(t *testing.T) {
	doc := markup.Parse(`<body><header>h</header><main><p>m</p></main><footer><p>f</p></footer></body>`)
	pm := New(testLogger()).Analyze(doc)

	assert.Equal(t, Critical, pm.Classify("<header>h</header><main>x</main>"))
	assert.Equal(t, Low, pm.Classify("<footer><p>f</p></footer>"))
	assert.Equal(t, High, pm.Classify("<main><p>m</p></main><footer></footer>"))
	assert.Equal(t, High, pm.Classify("just text"))
	assert.Equal(t, High, PriorityMap{}.Classify("<footer></footer>"))
}

func TestPriorityMap_ClassifyImpliedEnds(t *testing.T) {
	doc := markup.Parse(`<body><header>h</header><footer>f</footer></body>`)
	pm := New(testLogger()).Analyze(doc)

	// Unclosed paragraphs and list items end where a browser would end them.
	assert.Equal(t, Critical, pm.Classify("<p>a<p>b<header>top</header>"))
	assert.Equal(t, Critical, pm.Classify("<ul><li>a<li>b</ul><p>x<header>top</header>"))
	// A header nested in a real container is not top level.
	assert.Equal(t, High, pm.Classify("<div><header>inner</header></div>"))
	// Stray end tags from a cut fragment are ignored.
	assert.Equal(t, Low, pm.Classify("</div></section><footer>f</footer>"))
}

func TestTier_TextRoundTrip(t *testing.T) {
	for _, tier := range []Tier{Critical, High, Low} {
		b, err := tier.MarshalText()
		require.NoError(t, err)
		var got Tier
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, tier, got)
	}
	_, err := ParseTier("urgent")
	assert.Error(t, err)
}
