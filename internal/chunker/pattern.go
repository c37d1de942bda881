package chunker

import (
	"regexp"
	"strings"
)

var (
	semanticOpen = regexp.MustCompile(`(?i)<(section|article|div|header|footer|nav|aside|main)\b[^>]*>`)
	semanticTags = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{"section", "article", "div", "header", "footer", "nav", "aside", "main"} {
		semanticTags[tag] = regexp.MustCompile(`(?i)<(/?)` + tag + `\b[^>]*>`)
	}
}

// PatternParser finds top-level semantic blocks by tag pattern matching. It
// needs no tree and works on inputs the tree parser declines.
type PatternParser struct{}

// NewPatternParser returns a semantic-tag parser.
func NewPatternParser() *PatternParser { return &PatternParser{} }

func (p *PatternParser) Name() Strategy { return StrategyPattern }

// Segments returns the end offset of every top-level semantic block. Content
// between blocks travels with the block that follows it.
func (p *PatternParser) Segments(body string) ([]int, error) {
	var bounds []int
	pos := 0
	for pos < len(body) {
		loc := semanticOpen.FindStringSubmatchIndex(body[pos:])
		if loc == nil {
			break
		}
		openEnd := pos + loc[1]
		tag := strings.ToLower(body[pos+loc[2] : pos+loc[3]])
		if strings.HasSuffix(body[pos+loc[0]:openEnd], "/>") {
			bounds = append(bounds, openEnd)
			pos = openEnd
			continue
		}
		end, err := matchClose(body, openEnd, tag)
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, end)
		pos = end
	}
	return bounds, nil
}

// matchClose returns the offset just past the end tag that balances an open
// tag ending at from.
func matchClose(body string, from int, tag string) (int, error) {
	re := semanticTags[tag]
	depth := 1
	pos := from
	for {
		loc := re.FindStringSubmatchIndex(body[pos:])
		if loc == nil {
			return 0, &StructuralError{Strategy: StrategyPattern, Offset: from, Reason: "unterminated <" + tag + ">"}
		}
		end := pos + loc[1]
		switch {
		case loc[3] > loc[2]:
			depth--
		case !strings.HasSuffix(body[pos+loc[0]:end], "/>"):
			depth++
		}
		if depth == 0 {
			return end, nil
		}
		pos = end
	}
}
