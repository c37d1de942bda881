// Package chunker splits oversized markup documents into ordered,
// independently renderable chunks using a cascade of strategies.
package chunker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docrender/internal/analyzer"
	"github.com/dgallion1/docrender/internal/markup"
)

// DefaultTargetBytes is the target chunk size when none is given.
const DefaultTargetBytes = 1 << 20

// DefaultOverflowRatio bounds how far past the target a single structural
// segment may run before it is sliced with the fixed-size splitter.
const DefaultOverflowRatio = 1.5

// Strategy names the method that produced a chunk.
type Strategy string

const (
	StrategyWhole   Strategy = "whole"
	StrategyTree    Strategy = "tree"
	StrategyPattern Strategy = "pattern"
	StrategyFixed   Strategy = "fixed"
)

// ErrTooCostly is returned by a parser that declines an input because
// parsing it would be too expensive.
var ErrTooCostly = errors.New("input too large for this parser")

// StructuralError reports markup a parser could not make sense of.
type StructuralError struct {
	Strategy Strategy
	Offset   int
	Reason   string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s split: %s at offset %d", e.Strategy, e.Reason, e.Offset)
}

// StructuralParser finds safe break points in a document body. Segments
// returns ascending end offsets of consecutive segments; the last offset is
// len(body).
type StructuralParser interface {
	Name() Strategy
	Segments(body string) ([]int, error)
}

// Chunk is an ordered fragment of a document plus the standalone markup
// needed to render it on its own.
type Chunk struct {
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Size     int           `json:"size"`
	IsFirst  bool          `json:"is_first"`
	IsLast   bool          `json:"is_last"`
	Offset   int           `json:"offset"`
	Body     string        `json:"body"`
	Markup   string        `json:"markup"`
	Strategy Strategy      `json:"strategy"`
	Priority analyzer.Tier `json:"priority"`
}

// Options tune a single Split call.
type Options struct {
	// OverflowRatio defaults to DefaultOverflowRatio.
	OverflowRatio float64
	// AnnotateBoundaries writes a chunk i/n comment at the start of each body.
	AnnotateBoundaries bool
	// Priorities is reused when set; otherwise the engine analyzes the document.
	Priorities *analyzer.PriorityMap
}

// Engine runs the strategy cascade.
type Engine struct {
	parsers  []StructuralParser
	analyzer *analyzer.Analyzer
	log      *slog.Logger
}

// NewEngine returns an engine that tries parsers in order before falling back
// to fixed-size slicing. With no parsers it uses the tree then pattern parsers.
func NewEngine(log *slog.Logger, an *analyzer.Analyzer, parsers ...StructuralParser) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if an == nil {
		an = analyzer.New(log)
	}
	if len(parsers) == 0 {
		parsers = []StructuralParser{NewTreeParser(DefaultMaxTreeBytes), NewPatternParser()}
	}
	return &Engine{parsers: parsers, analyzer: an, log: log}
}

// Split divides doc into chunks of roughly target bytes. Documents smaller
// than target come back as a single chunk carrying the original markup. Split
// never fails: a failing strategy hands over to the next, and fixed-size
// slicing always succeeds.
func (e *Engine) Split(doc *markup.Document, target int, opts Options) []Chunk {
	return e.Layout(doc, target, opts).Chunks()
}

// Layout runs the same cascade as Split but keeps only the fragment ranges.
// Standalone markup is built per chunk by Layout.Chunk.
func (e *Engine) Layout(doc *markup.Document, target int, opts Options) *Layout {
	if target <= 0 {
		target = DefaultTargetBytes
	}
	if opts.OverflowRatio < 1 {
		opts.OverflowRatio = DefaultOverflowRatio
	}

	var pm analyzer.PriorityMap
	if opts.Priorities != nil {
		pm = *opts.Priorities
	} else {
		pm = e.analyzer.Analyze(doc)
	}

	body := doc.Body()
	if doc.Len() < target || len(body) <= target {
		return Whole(doc, pm)
	}

	for _, p := range e.parsers {
		bounds, err := segments(p, body)
		if err != nil {
			e.log.Warn("chunking strategy failed, falling back", "strategy", p.Name(), "error", err)
			continue
		}
		frags := group(body, bounds, target, opts.OverflowRatio)
		if len(frags) < 2 {
			e.log.Debug("chunking strategy yielded too few fragments", "strategy", p.Name(), "fragments", len(frags))
			continue
		}
		e.log.Debug("split document", "strategy", p.Name(), "chunks", len(frags), "body_bytes", len(body))
		return newLayout(doc, frags, p.Name(), pm, opts.AnnotateBoundaries)
	}

	frags := toFragments(fixedCuts(body, 0, len(body), target), 0, true)
	e.log.Debug("split document", "strategy", StrategyFixed, "chunks", len(frags), "body_bytes", len(body))
	return newLayout(doc, frags, StrategyFixed, pm, opts.AnnotateBoundaries)
}

// Layout is a planned split: byte ranges of the body plus what is needed to
// turn any one of them into a standalone chunk.
type Layout struct {
	doc      *markup.Document
	wrapper  markup.Wrapper
	frags    []fragment
	strategy Strategy
	pm       analyzer.PriorityMap
	annotate bool
	whole    bool
}

// Whole is the single-chunk layout: the document rendered as it is.
func Whole(doc *markup.Document, pm analyzer.PriorityMap) *Layout {
	return &Layout{
		doc:      doc,
		frags:    []fragment{{start: 0, end: len(doc.Body())}},
		strategy: StrategyWhole,
		pm:       pm,
		whole:    true,
	}
}

func newLayout(doc *markup.Document, frags []fragment, strategy Strategy, pm analyzer.PriorityMap, annotate bool) *Layout {
	return &Layout{
		doc:      doc,
		wrapper:  doc.Wrapper(),
		frags:    frags,
		strategy: strategy,
		pm:       pm,
		annotate: annotate,
	}
}

// Len returns the number of chunks.
func (l *Layout) Len() int { return len(l.frags) }

// Strategy names the cascade step that produced the layout. Individual
// oversized segments may still report StrategyFixed; a layout made only of
// them is StrategyFixed.
func (l *Layout) Strategy() Strategy {
	if l.whole {
		return l.strategy
	}
	for _, f := range l.frags {
		if !f.fixed {
			return l.strategy
		}
	}
	return StrategyFixed
}

// Chunk builds chunk i, wrapping its body into standalone markup.
func (l *Layout) Chunk(i int) Chunk {
	body := l.doc.Body()
	f := l.frags[i]
	part := body[f.start:f.end]
	total := len(l.frags)
	c := Chunk{
		Index:    i,
		Total:    total,
		Size:     len(part),
		IsFirst:  i == 0,
		IsLast:   i == total-1,
		Offset:   f.start,
		Body:     part,
		Strategy: l.strategy,
		Priority: l.pm.Classify(part),
	}
	if l.whole {
		c.Markup = l.doc.Raw()
		return c
	}
	if f.fixed {
		c.Strategy = StrategyFixed
	}
	annotation := ""
	if l.annotate {
		annotation = markup.Annotation(i, total)
	}
	c.Markup = l.wrapper.Wrap(part, annotation)
	return c
}

// Chunks builds every chunk.
func (l *Layout) Chunks() []Chunk {
	chunks := make([]Chunk, len(l.frags))
	for i := range chunks {
		chunks[i] = l.Chunk(i)
	}
	return chunks
}

// segments runs a parser, turning panics into structural errors and
// normalizing the returned offsets.
func segments(p StructuralParser, body string) (bounds []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StructuralError{Strategy: p.Name(), Reason: fmt.Sprint(r)}
		}
	}()
	raw, err := p.Segments(body)
	if err != nil {
		return nil, err
	}
	prev := 0
	for _, b := range raw {
		if b <= prev || b > len(body) {
			continue
		}
		bounds = append(bounds, b)
		prev = b
	}
	if prev != len(body) {
		bounds = append(bounds, len(body))
	}
	return bounds, nil
}
