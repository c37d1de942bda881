// Package scheduler picks a rendering strategy from document size and
// memory pressure, and provides disk staging for chunks that should not be
// held in memory.
package scheduler

import "fmt"

// Decision is the rendering strategy chosen for one render.
type Decision int

const (
	Direct Decision = iota
	ChunkedInMemory
	ChunkedOnDisk
)

func (d Decision) String() string {
	switch d {
	case Direct:
		return "direct"
	case ChunkedInMemory:
		return "chunked_in_memory"
	case ChunkedOnDisk:
		return "chunked_on_disk"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// MarshalText encodes the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a decision name.
func (d *Decision) UnmarshalText(b []byte) error {
	for _, c := range []Decision{Direct, ChunkedInMemory, ChunkedOnDisk} {
		if c.String() == string(b) {
			*d = c
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", b)
}

// Chunked reports whether the decision requires splitting the document.
func (d Decision) Chunked() bool { return d != Direct }

// Default thresholds.
const (
	DefaultSmallDocument      = 1 << 20
	DefaultDiskStagingCeiling = 5 << 20
	DefaultMaxInMemoryBytes   = 64 << 20
)

// Thresholds are the byte limits Decide compares against.
type Thresholds struct {
	// SmallDocument: documents shorter than this render directly.
	SmallDocument int
	// DiskStagingCeiling: documents longer than this stage chunks on disk.
	DiskStagingCeiling int
	// HeapSoftLimit escalates in-memory chunking to disk when the live heap
	// plus the document would exceed it. Zero disables the check.
	HeapSoftLimit uint64
	// MaxInMemoryBytes is the largest document that may fall back to
	// in-memory chunks when disk staging fails.
	MaxInMemoryBytes int
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SmallDocument:      DefaultSmallDocument,
		DiskStagingCeiling: DefaultDiskStagingCeiling,
		MaxInMemoryBytes:   DefaultMaxInMemoryBytes,
	}
}

// Decide chooses a strategy for a document of docLen bytes given the
// currently live heap.
func Decide(docLen int, liveHeap uint64, t Thresholds) Decision {
	switch {
	case docLen < t.SmallDocument:
		return Direct
	case docLen <= t.DiskStagingCeiling:
		if t.HeapSoftLimit > 0 && liveHeap+uint64(docLen) > t.HeapSoftLimit {
			return ChunkedOnDisk
		}
		return ChunkedInMemory
	default:
		return ChunkedOnDisk
	}
}

// CanFallBack reports whether a document may be chunked in memory after
// disk staging failed.
func (t Thresholds) CanFallBack(docLen int) bool {
	return t.MaxInMemoryBytes <= 0 || docLen <= t.MaxInMemoryBytes
}
