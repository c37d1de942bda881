// Package analyzer assigns priority tiers to the semantically meaningful
// regions of a markup document.
package analyzer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/docrender/internal/markup"
	"golang.org/x/net/html"
)

// Tier is a coarse importance classification used for staged disclosure.
type Tier int

const (
	Critical Tier = iota
	High
	Low
)

func (t Tier) String() string {
	switch t {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Low:
		return "low"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTier parses "critical", "high" or "low".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return Critical, nil
	case "high":
		return High, nil
	case "low":
		return Low, nil
	}
	return High, fmt.Errorf("unknown priority tier %q", s)
}

// Specificity weights. Caller-flagged selectors always sort first.
const (
	weightFlagged = 1000
	weightID      = 100
	weightClass   = 10
	weightTag     = 1
)

var (
	criticalTags = map[string]bool{"header": true, "nav": true}
	highTags     = map[string]bool{"main": true, "article": true}
	lowTags      = map[string]bool{"footer": true, "aside": true}

	criticalWords = map[string]bool{"header": true, "nav": true, "navbar": true, "navigation": true, "hero": true, "banner": true, "masthead": true}
	highWords     = map[string]bool{"main": true, "content": true, "primary": true, "article": true}
	lowWords      = map[string]bool{"footer": true, "sidebar": true, "secondary": true, "aside": true, "related": true}
)

// Analyzer derives a PriorityMap from document structure.
type Analyzer struct {
	// Critical lists selectors ("tag", "#id", ".class") the caller wants
	// treated as critical regardless of heuristics.
	Critical []string

	log *slog.Logger
}

// New returns an Analyzer. critical selectors are flagged as Critical.
func New(log *slog.Logger, critical ...string) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{Critical: critical, log: log}
}

// Analyze walks the document's start tags and returns the ordered priority
// rules it found. It never fails: on any internal error the empty map is
// returned and every lookup falls back to High.
func (a *Analyzer) Analyze(doc *markup.Document) (pm PriorityMap) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("structural analysis failed, using empty priority map", "panic", r)
			pm = PriorityMap{}
		}
	}()

	flagged := make(map[string]bool, len(a.Critical))
	for _, sel := range a.Critical {
		flagged[normalizeSelector(sel)] = true
	}

	seen := make(map[string]bool)
	var rules []Rule
	add := func(sel string, tier Tier, weight int, ok bool) {
		if flagged[sel] {
			tier, weight, ok = Critical, weightFlagged, true
		}
		if !ok || seen[sel] {
			return
		}
		seen[sel] = true
		rules = append(rules, Rule{Selector: sel, Tier: tier, Specificity: weight})
	}

	z := html.NewTokenizer(strings.NewReader(doc.Raw()))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				a.log.Warn("structural analysis failed, using empty priority map", "error", err)
				return PriorityMap{}
			}
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tag, id, classes := elementOf(z)
		if id != "" {
			tier, ok := wordTier(id)
			add("#"+id, tier, weightID, ok)
		}
		for _, c := range classes {
			tier, ok := wordTier(c)
			add("."+c, tier, weightClass, ok)
		}
		tier, ok := tagTier(tag)
		add(tag, tier, weightTag, ok)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Specificity > rules[j].Specificity
	})
	return PriorityMap{Rules: rules}
}

func elementOf(z *html.Tokenizer) (tag, id string, classes []string) {
	name, hasAttr := z.TagName()
	tag = strings.ToLower(string(name))
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		switch string(key) {
		case "id":
			id = strings.TrimSpace(string(val))
		case "class":
			classes = strings.Fields(string(val))
		}
	}
	return tag, id, classes
}

func tagTier(tag string) (Tier, bool) {
	switch {
	case criticalTags[tag]:
		return Critical, true
	case lowTags[tag]:
		return Low, true
	case highTags[tag]:
		return High, true
	}
	return High, false
}

// wordTier classifies an id or class by its hyphen/underscore separated words.
// Critical beats low beats high when words disagree.
func wordTier(name string) (Tier, bool) {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.' || r == ':'
	})
	found := map[Tier]bool{}
	for _, w := range words {
		switch {
		case criticalWords[w]:
			found[Critical] = true
		case lowWords[w]:
			found[Low] = true
		case highWords[w]:
			found[High] = true
		}
	}
	for _, t := range []Tier{Critical, Low, High} {
		if found[t] {
			return t, true
		}
	}
	return High, false
}

func normalizeSelector(sel string) string {
	sel = strings.TrimSpace(sel)
	if strings.HasPrefix(sel, "#") || strings.HasPrefix(sel, ".") {
		return sel
	}
	return strings.ToLower(sel)
}
