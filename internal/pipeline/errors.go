package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrRenderTimeout marks a render that ran past its whole-document timeout.
	ErrRenderTimeout = errors.New("render timed out")
	// ErrDiskStaging marks a render whose chunks could neither be staged on
	// disk nor held in memory.
	ErrDiskStaging = errors.New("disk staging unavailable")
	// ErrNoSink marks a streaming render started without a sink.
	ErrNoSink = errors.New("streaming mode needs a sink")
)

// RenderError is returned when a render stops early. Partial holds whatever
// output was collected before it stopped.
type RenderError struct {
	Message string
	Partial string
	Stats   Stats
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Placeholder is the marker emitted in place of a chunk whose every render
// attempt failed.
func Placeholder(index, total int) string {
	return fmt.Sprintf("<!-- docrender:chunk-failed index=%d total=%d -->", index, total)
}

// PlaceholderPrefix starts every Placeholder.
const PlaceholderPrefix = "<!-- docrender:chunk-failed "
