package grpm

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

//go:embed data/default_index.json
var defaultFS embed.FS

const defaultIndexFile = "data/default_index.json"

// IndexLoadError reports a missing or malformed index resource.
type IndexLoadError struct {
	Path string
	Err  error
}

func (e *IndexLoadError) Error() string {
	return fmt.Sprintf("load GRPM index %s: %v", e.Path, e.Err)
}

func (e *IndexLoadError) Unwrap() error {
	return e.Err
}

// LoadFile reads and parses an index file. An empty path loads the built-in index.
func LoadFile(path string) (*Index, error) {
	var (
		data []byte
		err  error
	)
	name := path
	if path == "" {
		name = "embedded:" + defaultIndexFile
		data, err = defaultFS.ReadFile(defaultIndexFile)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, &IndexLoadError{Path: name, Err: err}
	}

	idx, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &IndexLoadError{Path: name, Err: err}
	}
	return idx, nil
}

// Loader loads the index at most once per process.
type Loader struct {
	path   string
	logger *slog.Logger

	once sync.Once
	idx  *Index
	err  error
}

// NewLoader creates a loader for the given path ("" for the built-in index).
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: path, logger: logger}
}

// Load returns the cached index, loading it on first use. Concurrent first
// callers wait for the single load. On failure the error is cached as well.
func (l *Loader) Load() (*Index, error) {
	l.once.Do(func() {
		l.idx, l.err = LoadFile(l.path)
		if l.err != nil {
			l.logger.Error("GRPM index load failed", "error", l.err)
			return
		}
		l.logger.Info("GRPM index loaded", "entries", l.idx.Len(), "version", l.idx.Version())
	})
	return l.idx, l.err
}

// LoadOrEmpty returns the loaded index, or the degraded empty index and the
// load error when loading failed.
func (l *Loader) LoadOrEmpty() (*Index, error) {
	idx, err := l.Load()
	if err != nil {
		return Empty(), err
	}
	return idx, nil
}
