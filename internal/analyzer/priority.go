package analyzer

import (
	"slices"
	"strings"

	"github.com/dgallion1/docrender/internal/markup"
	"golang.org/x/net/html"
)

// Rule maps a selector ("tag", "#id" or ".class") to a tier.
type Rule struct {
	Selector    string `json:"selector"`
	Tier        Tier   `json:"tier"`
	Specificity int    `json:"specificity"`
}

// PriorityMap is an ordered rule list, most specific first. It is read-only
// once returned by Analyze.
type PriorityMap struct {
	Rules []Rule `json:"rules"`
}

// Lookup returns the tier recorded for an exact selector.
func (m PriorityMap) Lookup(selector string) (Tier, bool) {
	selector = normalizeSelector(selector)
	for _, r := range m.Rules {
		if r.Selector == selector {
			return r.Tier, true
		}
	}
	return High, false
}

// TierOf classifies one element. A caller-flagged rule wins outright, then a
// rule for the element's landmark tag, then the most specific id or class
// rule. A footer therefore stays Low whatever its class says. Unmatched
// elements are High.
func (m PriorityMap) TierOf(tag, id string, classes []string) Tier {
	tag = strings.ToLower(tag)
	var byTag, byWord *Rule
	for i := range m.Rules {
		r := &m.Rules[i]
		if !r.matches(tag, id, classes) {
			continue
		}
		switch {
		case r.Specificity >= weightFlagged:
			return r.Tier
		case !isWordSelector(r.Selector):
			if byTag == nil {
				byTag = r
			}
		case byWord == nil:
			byWord = r
		}
	}
	switch {
	case byTag != nil:
		return byTag.Tier
	case byWord != nil:
		return byWord.Tier
	}
	return High
}

func (r Rule) matches(tag, id string, classes []string) bool {
	switch {
	case strings.HasPrefix(r.Selector, "#"):
		return id != "" && r.Selector[1:] == id
	case strings.HasPrefix(r.Selector, "."):
		return slices.Contains(classes, r.Selector[1:])
	}
	return r.Selector == tag
}

func isWordSelector(sel string) bool {
	return strings.HasPrefix(sel, "#") || strings.HasPrefix(sel, ".")
}

// Classify returns the most important tier among the top-level elements of a
// body fragment. Elements whose end tag may be omitted are closed the way a
// browser would, so <p>a<p>b<header> still sees the header at top level.
// Fragments without top-level elements are High.
func (m PriorityMap) Classify(fragment string) Tier {
	if len(m.Rules) == 0 {
		return High
	}
	best := Low + 1
	consider := func(tag, id string, classes []string) {
		if t := m.TierOf(tag, id, classes); t < best {
			best = t
		}
	}
	var stack []string
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if best > Low {
				return High
			}
			return best
		case html.StartTagToken:
			tag, id, classes := elementOf(z)
			if n := len(stack); n > 0 && markup.ClosedBy(stack[n-1], tag) {
				stack = stack[:n-1]
			}
			if len(stack) == 0 {
				consider(tag, id, classes)
			}
			if !markup.IsVoid(tag) {
				stack = append(stack, tag)
			}
		case html.SelfClosingTagToken:
			if len(stack) == 0 {
				consider(elementOf(z))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			// Stray end tags from a fragment cut mid-element are ignored.
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == tag {
					stack = stack[:i]
					break
				}
			}
		}
	}
}

// Selectors returns selector → tier name, for passing into render contexts.
func (m PriorityMap) Selectors() map[string]string {
	out := make(map[string]string, len(m.Rules))
	for _, r := range m.Rules {
		out[r.Selector] = r.Tier.String()
	}
	return out
}
