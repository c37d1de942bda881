package pipeline

import (
	"github.com/dgallion1/docrender/internal/chunker"
	"github.com/dgallion1/docrender/internal/scheduler"
)

// chunkSource yields a render's chunks by index, each at most once.
type chunkSource interface {
	Len() int
	Chunk(i int) (chunker.Chunk, error)
	Close() error
}

// layoutSource builds each chunk from the in-memory layout when asked.
type layoutSource struct {
	layout *chunker.Layout
}

func (s *layoutSource) Len() int { return s.layout.Len() }

func (s *layoutSource) Chunk(i int) (chunker.Chunk, error) { return s.layout.Chunk(i), nil }

func (s *layoutSource) Close() error { return nil }

type diskSource struct {
	stage *scheduler.Stage
	total int
}

func (s *diskSource) Len() int { return s.total }

func (s *diskSource) Chunk(i int) (chunker.Chunk, error) { return s.stage.Take(i) }

func (s *diskSource) Close() error { return s.stage.Close() }
