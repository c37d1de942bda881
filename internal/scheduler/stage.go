package scheduler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/dgallion1/docrender/internal/chunker"
)

// ErrStageClosed is returned by a stage used after Close.
var ErrStageClosed = errors.New("staging directory closed")

// Stage holds one render's chunks on disk. Each chunk is read back at most
// once; Take removes the file it reads.
type Stage struct {
	mu     sync.Mutex
	dir    string
	count  int
	closed bool
}

// NewStage creates a unique staging directory under base (the system temp
// directory when base is empty).
func NewStage(base string) (*Stage, error) {
	dir, err := os.MkdirTemp(base, "docrender-"+uuid.NewString()+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stage{dir: dir}, nil
}

// Dir returns the staging directory path.
func (s *Stage) Dir() string { return s.dir }

// Len returns the number of chunks written.
func (s *Stage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Put writes a chunk to disk under its index.
func (s *Stage) Put(c chunker.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStageClosed
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode chunk %d: %w", c.Index, err)
	}
	if err := atomic.WriteFile(s.path(c.Index), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("stage chunk %d: %w", c.Index, err)
	}
	s.count++
	return nil
}

// PutFrom writes chunks 0..n-1, asking next for each one only after the
// previous chunk is on disk, so a single chunk is held in memory at a time.
// It stops at the first failure.
func (s *Stage) PutFrom(n int, next func(i int) chunker.Chunk) error {
	for i := range n {
		if err := s.Put(next(i)); err != nil {
			return err
		}
	}
	return nil
}

// Take reads chunk i back and deletes its file.
func (s *Stage) Take(i int) (chunker.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c chunker.Chunk
	if s.closed {
		return c, ErrStageClosed
	}
	p := s.path(i)
	data, err := os.ReadFile(p)
	if err != nil {
		return c, fmt.Errorf("read staged chunk %d: %w", i, err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode staged chunk %d: %w", i, err)
	}
	if err := os.Remove(p); err != nil {
		return c, fmt.Errorf("remove staged chunk %d: %w", i, err)
	}
	return c, nil
}

// Close removes the staging directory and everything left in it.
func (s *Stage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove staging dir: %w", err)
	}
	return nil
}

func (s *Stage) path(i int) string {
	return filepath.Join(s.dir, fmt.Sprintf("chunk-%06d.json", i))
}
