package pipeline

import (
	"fmt"
	"time"

	"github.com/dgallion1/docrender/internal/chunker"
	"github.com/dgallion1/docrender/internal/config"
	"github.com/dgallion1/docrender/internal/scheduler"
)

// Mode selects how output is delivered. Full collects the whole output and
// hands it over once; streaming delivers every chunk as soon as it is
// rendered. An empty Mode follows the sink: none means full.
type Mode string

const (
	ModeFull      Mode = "full"
	ModeStreaming Mode = "streaming"
)

// ParseMode accepts "full" or "streaming"; the empty string is full.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeStreaming:
		return ModeStreaming, nil
	}
	return "", fmt.Errorf("unknown render mode %q", s)
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Defaults for Options fields left at zero.
const (
	DefaultChunkTimeout   = 30 * time.Second
	DefaultRenderTimeout  = 60 * time.Second
	DefaultSampleInterval = scheduler.DefaultSampleInterval
)

// Options control a render. Zero values take the documented defaults.
type Options struct {
	TargetChunkBytes int
	// SmallDocumentThreshold defaults to TargetChunkBytes.
	SmallDocumentThreshold int
	DiskStagingCeiling     int
	MaxInMemoryBytes       int
	HeapSoftLimit          uint64

	MaxRetries int
	// RetryDelay defaults to DefaultRetryDelay; a negative value disables it.
	RetryDelay    time.Duration
	ChunkTimeout  time.Duration
	RenderTimeout time.Duration

	CacheEnabled bool
	// Mode requires a sink when streaming. A full render with a sink gets
	// one delivery holding the whole output.
	Mode Mode

	// Concurrency > 1 renders that many chunks at once, but only when
	// IndependentChunks is set. Delivery order is unchanged.
	Concurrency       int
	IndependentChunks bool

	CriticalSelectors  []string
	AnnotateBoundaries bool
	OverflowRatio      float64

	// TempDir is the parent of per-render staging directories.
	TempDir        string
	SampleInterval time.Duration

	// MemoryRelief runs between failed attempts. Nil is a no-op.
	MemoryRelief func()
	// OnProgress is called after every chunk.
	OnProgress func(Progress)
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.TargetChunkBytes <= 0 {
		o.TargetChunkBytes = chunker.DefaultTargetBytes
	}
	if o.SmallDocumentThreshold <= 0 {
		o.SmallDocumentThreshold = o.TargetChunkBytes
	}
	if o.DiskStagingCeiling <= 0 {
		o.DiskStagingCeiling = scheduler.DefaultDiskStagingCeiling
	}
	if o.MaxInMemoryBytes <= 0 {
		o.MaxInMemoryBytes = scheduler.DefaultMaxInMemoryBytes
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	switch {
	case o.RetryDelay == 0:
		o.RetryDelay = DefaultRetryDelay
	case o.RetryDelay < 0:
		o.RetryDelay = 0
	}
	if o.ChunkTimeout <= 0 {
		o.ChunkTimeout = DefaultChunkTimeout
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = DefaultRenderTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = DefaultSampleInterval
	}
	return o
}

func (o Options) thresholds() scheduler.Thresholds {
	return scheduler.Thresholds{
		SmallDocument:      o.SmallDocumentThreshold,
		DiskStagingCeiling: o.DiskStagingCeiling,
		HeapSoftLimit:      o.HeapSoftLimit,
		MaxInMemoryBytes:   o.MaxInMemoryBytes,
	}
}

// OptionsFromConfig maps service configuration onto render options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		TargetChunkBytes:       cfg.TargetChunkBytes,
		SmallDocumentThreshold: cfg.SmallDocumentThreshold,
		DiskStagingCeiling:     cfg.DiskStagingCeiling,
		MaxInMemoryBytes:       cfg.MaxInMemoryBytes,
		HeapSoftLimit:          cfg.HeapSoftLimit,
		MaxRetries:             cfg.MaxRetries,
		RetryDelay:             cfg.RetryDelay,
		ChunkTimeout:           cfg.ChunkTimeout,
		RenderTimeout:          cfg.RenderTimeout,
		CacheEnabled:           cfg.CacheEnabled,
		Mode:                   Mode(cfg.RenderMode),
		Concurrency:            cfg.RenderConcurrency,
		IndependentChunks:      cfg.IndependentChunks,
		CriticalSelectors:      cfg.CriticalSelectors,
		AnnotateBoundaries:     cfg.AnnotateBoundaries,
		TempDir:                cfg.TempDir,
		SampleInterval:         cfg.SampleInterval,
	}
}
