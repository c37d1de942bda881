package chunker

import (
	"errors"
	"io"
	"strings"

	"github.com/dgallion1/docrender/internal/markup"
	"golang.org/x/net/html"
)

// DefaultMaxTreeBytes is the largest body the tree parser accepts.
const DefaultMaxTreeBytes = 8 << 20

// TreeParser rebuilds the element tree of a body with the x/net/html
// tokenizer and breaks after each direct child of the body.
type TreeParser struct {
	MaxBytes int
}

// NewTreeParser returns a parser that declines bodies over maxBytes.
func NewTreeParser(maxBytes int) *TreeParser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTreeBytes
	}
	return &TreeParser{MaxBytes: maxBytes}
}

func (p *TreeParser) Name() Strategy { return StrategyTree }

// Segments returns the end offset of every top-level node group. Text and
// comments between elements travel with the element that follows them.
func (p *TreeParser) Segments(body string) ([]int, error) {
	if len(body) > p.MaxBytes {
		return nil, ErrTooCostly
	}

	z := html.NewTokenizer(strings.NewReader(body))
	var (
		stack  []string
		bounds []int
		offset int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, &StructuralError{Strategy: StrategyTree, Offset: offset, Reason: err.Error()}
			}
			break
		}
		tokenStart := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			n := len(stack)
			if n > 0 && markup.ClosedBy(stack[n-1], tag) {
				stack = stack[:n-1]
				if len(stack) == 0 {
					bounds = append(bounds, tokenStart)
				}
			}
			if markup.IsVoid(tag) {
				if len(stack) == 0 {
					bounds = append(bounds, offset)
				}
				continue
			}
			stack = append(stack, tag)
		case html.SelfClosingTagToken:
			if len(stack) == 0 {
				bounds = append(bounds, offset)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			// Close up to the matching open element; stray end tags are ignored.
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == tag {
					stack = stack[:i]
					if i == 0 {
						bounds = append(bounds, offset)
					}
					break
				}
			}
		}
	}

	if offset != len(body) {
		return nil, &StructuralError{Strategy: StrategyTree, Offset: offset, Reason: "tokenizer lost input bytes"}
	}
	for _, open := range stack {
		if markup.MayOmitEnd(open) {
			continue
		}
		return nil, &StructuralError{Strategy: StrategyTree, Offset: offset, Reason: "unclosed <" + open + ">"}
	}
	return bounds, nil
}
