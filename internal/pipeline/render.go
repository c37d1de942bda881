// Package pipeline drives documents through the template compiler, chunk
// by chunk, with retries, caching, disk staging and ordered delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docrender/internal/analyzer"
	"github.com/dgallion1/docrender/internal/cache"
	"github.com/dgallion1/docrender/internal/chunker"
	"github.com/dgallion1/docrender/internal/markup"
	"github.com/dgallion1/docrender/internal/scheduler"
)

// Compiler renders markup against a data context. It may fail on any call.
type Compiler interface {
	Compile(ctx context.Context, fragment string, data map[string]any) (string, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, fragment string, data map[string]any) (string, error)

func (f CompilerFunc) Compile(ctx context.Context, fragment string, data map[string]any) (string, error) {
	return f(ctx, fragment, data)
}

// Progress is reported after every chunk.
type Progress struct {
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Percent     float64 `json:"percent"`
	ElapsedMs   int64   `json:"elapsed_ms"`
}

// Delivery is one rendered chunk handed to a Sink.
type Delivery struct {
	Index    int           `json:"index"`
	Output   string        `json:"output"`
	Failed   bool          `json:"failed"`
	Priority analyzer.Tier `json:"priority"`
	Progress Progress      `json:"progress"`
}

// Sink receives deliveries in chunk order. Returning an error stops the
// render.
type Sink func(Delivery) error

// Request is a document plus the data it is rendered with.
type Request struct {
	Document string
	Data     map[string]any
	// Options replaces the renderer's defaults when set.
	Options *Options
}

// Result is a finished render. Output is empty when a sink was used.
type Result struct {
	RenderID string `json:"render_id"`
	Output   string `json:"output,omitempty"`
	CacheHit bool   `json:"cache_hit"`
	Stats    Stats  `json:"stats"`
}

// Renderer runs renders. It is safe for concurrent use; the cache is the
// only state renders share.
type Renderer struct {
	compiler Compiler
	cache    *cache.TemplateCache
	parsers  []chunker.StructuralParser
	opts     Options
	log      *slog.Logger

	renderLatency *LatencyWindow
	chunkLatency  *LatencyWindow
	renders       atomic.Int64
	failures      atomic.Int64
	chunks        atomic.Int64
	chunkFailures atomic.Int64
}

// NewRenderer returns a renderer using compiler. tc may be nil to disable
// caching regardless of Options.CacheEnabled.
func NewRenderer(compiler Compiler, tc *cache.TemplateCache, opts Options, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		compiler:      compiler,
		cache:         tc,
		opts:          opts,
		log:           log,
		renderLatency: NewLatencyWindow(time.Hour),
		chunkLatency:  NewLatencyWindow(time.Hour),
	}
}

// UseParsers replaces the structural parsers tried before fixed-size
// splitting.
func (r *Renderer) UseParsers(parsers ...chunker.StructuralParser) {
	r.parsers = parsers
}

// Options returns the renderer's default options.
func (r *Renderer) Options() Options { return r.opts }

// Cache returns the renderer's cache, which may be nil.
func (r *Renderer) Cache() *cache.TemplateCache { return r.cache }

// Plan analyzes and splits document the way a chunked render would,
// without compiling anything. opts replaces the defaults when set.
func (r *Renderer) Plan(document string, opts *Options) (analyzer.PriorityMap, []chunker.Chunk) {
	o := r.opts
	if opts != nil {
		o = *opts
	}
	o = o.withDefaults()
	doc := markup.Parse(document)
	an := analyzer.New(r.log, o.CriticalSelectors...)
	pm := an.Analyze(doc)
	chunks := chunker.NewEngine(r.log, an, r.parsers...).Split(doc, o.TargetChunkBytes, chunker.Options{
		OverflowRatio:      o.OverflowRatio,
		AnnotateBoundaries: o.AnnotateBoundaries,
		Priorities:         &pm,
	})
	return pm, chunks
}

// Render renders req. In full mode the chunks are concatenated into
// Result.Output, or handed to sink in a single delivery when one is given.
// In streaming mode each chunk goes to sink in index order and Result.Output
// stays empty. Chunk failures never stop a render. Timeouts, cancellation,
// sink errors and unusable disk staging return a *RenderError carrying
// partial output.
func (r *Renderer) Render(ctx context.Context, req Request, sink Sink) (*Result, error) {
	opts := r.opts
	if req.Options != nil {
		opts = *req.Options
	}
	opts = opts.withDefaults()

	mode := opts.Mode
	if mode == "" {
		mode = ModeFull
		if sink != nil {
			mode = ModeStreaming
		}
	}
	if mode == ModeStreaming && sink == nil {
		return nil, &RenderError{Message: "cannot render", Err: ErrNoSink}
	}

	id := uuid.NewString()
	start := time.Now()
	rn := &render{
		Renderer: r,
		opts:     opts,
		log:      r.log.With("render_id", id),
		req:      req,
		doc:      markup.Parse(req.Document),
		start:    start,
	}
	if mode == ModeStreaming {
		rn.sink = sink
	}
	rn.rec.s.RenderID = id
	rn.rec.s.Mode = mode

	sampler := scheduler.NewSampler(opts.SampleInterval)
	sampler.Start()
	defer sampler.Stop()

	var cancel context.CancelFunc
	rn.ctx, cancel = context.WithTimeoutCause(ctx, opts.RenderTimeout, ErrRenderTimeout)
	defer cancel()

	out, hit, err := rn.execute()

	peak := sampler.Stop()
	elapsed := time.Since(start)
	rn.rec.update(func(s *Stats) {
		s.PeakHeapBytes = peak
		s.ElapsedMs = elapsed.Milliseconds()
	})
	stats := rn.rec.snapshot()
	r.renders.Add(1)
	r.chunks.Add(int64(stats.ChunksProcessed))
	r.chunkFailures.Add(int64(stats.ChunksFailed))
	r.renderLatency.Record(elapsed)

	if err != nil {
		r.failures.Add(1)
		var re *RenderError
		if !errors.As(err, &re) {
			re = &RenderError{Message: "render failed", Err: err}
		}
		re.Partial = rn.out.String()
		re.Stats = stats
		rn.log.Warn("render stopped early", "error", err,
			"chunks_processed", stats.ChunksProcessed, "chunks_total", stats.ChunksTotal)
		return nil, re
	}

	if rn.cacheOn() && rn.sink == nil && !hit && stats.ChunksFailed == 0 {
		r.cache.Set(context.WithoutCancel(ctx), req.Document, req.Data, out)
	}
	if rn.sink == nil && sink != nil {
		d := Delivery{
			Output:   out,
			Failed:   stats.ChunksFailed > 0,
			Priority: rn.pm.Classify(rn.doc.Body()),
			Progress: Progress{TotalChunks: 1, Percent: 100, ElapsedMs: stats.ElapsedMs},
		}
		if err := sink(d); err != nil {
			r.failures.Add(1)
			return nil, &RenderError{Message: "delivery of full output failed", Partial: out, Stats: stats, Err: err}
		}
		out = ""
	}
	rn.log.Info("render complete",
		"decision", stats.Decision,
		"strategy", stats.Strategy,
		"chunks", stats.ChunksTotal,
		"failed", stats.ChunksFailed,
		"cache_hit", hit,
		"elapsed_ms", stats.ElapsedMs)
	return &Result{RenderID: id, Output: out, CacheHit: hit, Stats: stats}, nil
}

// render is the state of one Render call.
type render struct {
	*Renderer
	ctx   context.Context
	opts  Options
	log   *slog.Logger
	req   Request
	doc   *markup.Document
	sink  Sink
	start time.Time
	pm    analyzer.PriorityMap
	rec   recorder
	out   strings.Builder
}

func (rn *render) cacheOn() bool { return rn.cache != nil && rn.opts.CacheEnabled }

func (rn *render) execute() (string, bool, error) {
	th := rn.opts.thresholds()
	decision := scheduler.Decide(rn.doc.Len(), scheduler.HeapUsage(), th)
	rn.rec.update(func(s *Stats) { s.Decision = decision })
	rn.pm = analyzer.New(rn.log, rn.opts.CriticalSelectors...).Analyze(rn.doc)

	if rn.cacheOn() && rn.sink == nil {
		if out, ok := rn.cache.Get(rn.ctx, rn.doc.Raw(), rn.req.Data); ok {
			rn.rec.update(func(s *Stats) { s.CacheHits++ })
			return out, true, nil
		}
		rn.rec.update(func(s *Stats) { s.CacheMisses++ })
	}

	src, err := rn.plan(decision)
	if err != nil {
		return "", false, err
	}
	defer func() { src.Close() }()

	window := 1
	if rn.opts.IndependentChunks && rn.opts.Concurrency > 1 {
		window = rn.opts.Concurrency
	}
	total := src.Len()
	for base := 0; base < total; base += window {
		if err := rn.ctx.Err(); err != nil {
			return "", false, rn.stopped()
		}
		n := min(window, total-base)
		batch := make([]chunker.Chunk, n)
		for j := range n {
			c, err := rn.chunk(&src, base+j)
			if err != nil {
				return "", false, err
			}
			batch[j] = c
		}

		units := make([]unit, n)
		if n == 1 {
			units[0] = rn.renderChunk(batch[0])
		} else {
			var g errgroup.Group
			g.SetLimit(window)
			for j := range batch {
				g.Go(func() error {
					units[j] = rn.renderChunk(batch[j])
					return nil
				})
			}
			_ = g.Wait()
		}

		for j := range units {
			if err := rn.deliver(batch[j], units[j]); err != nil {
				return "", false, err
			}
		}
	}
	return rn.out.String(), false, nil
}

// stopped converts the render context's end into a RenderError.
func (rn *render) stopped() error {
	cause := context.Cause(rn.ctx)
	if errors.Is(cause, ErrRenderTimeout) {
		return &RenderError{Message: fmt.Sprintf("render exceeded %s", rn.opts.RenderTimeout), Err: ErrRenderTimeout}
	}
	return &RenderError{Message: "render canceled", Err: cause}
}

// plan produces the chunk source for decision. A direct render uses the
// same whole-document layout a single-chunk split would, so the compiler
// sees the same context either way.
func (rn *render) plan(decision scheduler.Decision) (chunkSource, error) {
	var layout *chunker.Layout
	if decision == scheduler.Direct {
		layout = chunker.Whole(rn.doc, rn.pm)
	} else {
		layout = rn.layout()
	}
	rn.rec.update(func(s *Stats) {
		s.Strategy = layout.Strategy()
		s.ChunksTotal = layout.Len()
	})
	rn.log.Debug("planned render", "decision", decision, "chunks", layout.Len(), "doc_bytes", rn.doc.Len())

	if decision == scheduler.ChunkedOnDisk {
		src, err := rn.stage(layout)
		if err == nil {
			return src, nil
		}
		if !rn.opts.thresholds().CanFallBack(rn.doc.Len()) {
			return nil, &RenderError{Message: "cannot stage chunks", Err: fmt.Errorf("%w: %v", ErrDiskStaging, err)}
		}
		rn.log.Warn("disk staging failed, rendering in memory", "error", err)
		rn.rec.update(func(s *Stats) { s.FellBack = true })
	}
	return &layoutSource{layout: layout}, nil
}

func (rn *render) layout() *chunker.Layout {
	an := analyzer.New(rn.log, rn.opts.CriticalSelectors...)
	eng := chunker.NewEngine(rn.log, an, rn.parsers...)
	return eng.Layout(rn.doc, rn.opts.TargetChunkBytes, chunker.Options{
		OverflowRatio:      rn.opts.OverflowRatio,
		AnnotateBoundaries: rn.opts.AnnotateBoundaries,
		Priorities:         &rn.pm,
	})
}

// stage writes the layout's chunks to disk one at a time.
func (rn *render) stage(layout *chunker.Layout) (chunkSource, error) {
	st, err := scheduler.NewStage(rn.opts.TempDir)
	if err != nil {
		return nil, err
	}
	if err := st.PutFrom(layout.Len(), layout.Chunk); err != nil {
		st.Close()
		return nil, err
	}
	rn.rec.update(func(s *Stats) { s.StagedOnDisk = true })
	rn.log.Debug("staged chunks on disk", "dir", st.Dir(), "chunks", layout.Len())
	return &diskSource{stage: st, total: layout.Len()}, nil
}

// chunk reads chunk i from *src. A staged chunk that cannot be read makes
// the render plan the split again in memory, which yields the same chunks.
func (rn *render) chunk(src *chunkSource, i int) (chunker.Chunk, error) {
	c, err := (*src).Chunk(i)
	if err == nil {
		return c, nil
	}
	if !rn.opts.thresholds().CanFallBack(rn.doc.Len()) {
		return c, &RenderError{Message: "cannot read staged chunk", Err: fmt.Errorf("%w: %v", ErrDiskStaging, err)}
	}
	rn.log.Warn("staged chunk unreadable, re-splitting in memory", "chunk", i, "error", err)
	(*src).Close()
	*src = &layoutSource{layout: rn.layout()}
	rn.rec.update(func(s *Stats) { s.FellBack = true })
	return (*src).Chunk(i)
}

type unit struct {
	out    string
	failed bool
	hit    bool
	// abandoned is set when the render ended while the chunk waited to retry.
	abandoned bool
	took      time.Duration
}

func (rn *render) renderChunk(c chunker.Chunk) unit {
	start := time.Now()
	data := MergeContext(rn.req.Data, c, rn.pm)
	useCache := rn.cacheOn() && c.Total > 1
	if useCache {
		if out, ok := rn.cache.Get(rn.ctx, c.Markup, data); ok {
			return unit{out: out, hit: true, took: time.Since(start)}
		}
		rn.rec.update(func(s *Stats) { s.CacheMisses++ })
	}

	out, err := rn.compileWithRetry(rn.ctx, c.Markup, data, rn.opts, func(attempt int, err error) {
		rn.rec.update(func(s *Stats) { s.Retries++ })
		rn.log.Warn("chunk render failed, retrying", "chunk", c.Index, "attempt", attempt, "error", err)
	})
	took := time.Since(start)
	if errors.Is(err, errRetryAbandoned) {
		rn.log.Debug("chunk retry abandoned, render is ending", "chunk", c.Index, "error", err)
		return unit{abandoned: true, took: took}
	}
	rn.chunkLatency.Record(took)
	if err != nil {
		rn.log.Error("chunk render failed", "chunk", c.Index, "total", c.Total, "error", err)
		return unit{out: Placeholder(c.Index, c.Total), failed: true, took: took}
	}
	if useCache {
		rn.cache.Set(rn.ctx, c.Markup, data, out)
	}
	return unit{out: out, took: took}
}

func (rn *render) deliver(c chunker.Chunk, u unit) error {
	if u.abandoned {
		return rn.stopped()
	}
	rn.rec.update(func(s *Stats) {
		s.ChunksProcessed++
		if u.failed {
			s.ChunksFailed++
		}
		if u.hit {
			s.CacheHits++
		}
		s.ChunkTimings = append(s.ChunkTimings, u.took)
	})
	p := Progress{
		ChunkIndex:  c.Index,
		TotalChunks: c.Total,
		Percent:     float64(c.Index+1) * 100 / float64(c.Total),
		ElapsedMs:   time.Since(rn.start).Milliseconds(),
	}
	if rn.sink == nil {
		rn.out.WriteString(u.out)
	} else if err := rn.sink(Delivery{Index: c.Index, Output: u.out, Failed: u.failed, Priority: c.Priority, Progress: p}); err != nil {
		return &RenderError{Message: fmt.Sprintf("delivery of chunk %d failed", c.Index), Err: err}
	}
	if rn.opts.OnProgress != nil {
		rn.opts.OnProgress(p)
	}
	return nil
}

// Totals aggregates every render this renderer has run.
type Totals struct {
	Renders       int64         `json:"renders"`
	Failures      int64         `json:"failures"`
	Chunks        int64         `json:"chunks"`
	ChunkFailures int64         `json:"chunk_failures"`
	RenderLatency TimingSummary `json:"render_latency"`
	ChunkLatency  TimingSummary `json:"chunk_latency"`
	Cache         *cache.Stats  `json:"cache,omitempty"`
}

func (r *Renderer) Totals(ctx context.Context) Totals {
	t := Totals{
		Renders:       r.renders.Load(),
		Failures:      r.failures.Load(),
		Chunks:        r.chunks.Load(),
		ChunkFailures: r.chunkFailures.Load(),
		RenderLatency: r.renderLatency.Snapshot(),
		ChunkLatency:  r.chunkLatency.Snapshot(),
	}
	if r.cache != nil {
		cs := r.cache.Stats(ctx)
		t.Cache = &cs
	}
	return t
}
