package pipeline

import (
	"maps"

	"github.com/dgallion1/docrender/internal/analyzer"
	"github.com/dgallion1/docrender/internal/chunker"
)

// Keys MergeContext adds to the caller's data.
const (
	KeyChunkIndex   = "chunkIndex"
	KeyTotalChunks  = "totalChunks"
	KeyIsFirstChunk = "isFirstChunk"
	KeyIsLastChunk  = "isLastChunk"
	KeyPriority     = "priority"
	KeyPriorityMap  = "priorityMap"
)

// MergeContext returns a copy of data extended with the chunk's position and
// priority. data itself is left untouched.
func MergeContext(data map[string]any, c chunker.Chunk, pm analyzer.PriorityMap) map[string]any {
	out := make(map[string]any, len(data)+6)
	maps.Copy(out, data)
	out[KeyChunkIndex] = c.Index
	out[KeyTotalChunks] = c.Total
	out[KeyIsFirstChunk] = c.IsFirst
	out[KeyIsLastChunk] = c.IsLast
	out[KeyPriority] = c.Priority.String()
	out[KeyPriorityMap] = pm.Selectors()
	return out
}
