package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenStore returns the store for backend ("memory" or "sqlite") and a
// function that releases it. path is only used by sqlite; its directory is
// created if missing.
func OpenStore(backend, path string) (Store, func() error, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		st, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", backend)
}
