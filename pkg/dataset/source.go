package dataset

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Source holds the live dataset and swaps it atomically on reload. Readers
// never see a partially loaded catalog; a failed reload keeps the old one.
type Source struct {
	path    string
	current atomic.Pointer[Dataset]

	mu        sync.Mutex
	listeners []func(*Dataset)
}

// NewSource loads path. An empty path serves the built-in sample.
func NewSource(path string) (*Source, error) {
	s := &Source{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticSource serves ds and never reloads from disk.
func NewStaticSource(ds *Dataset) *Source {
	s := &Source{}
	s.current.Store(ds)
	return s
}

// Path reports the backing file, empty for static or sample sources.
func (s *Source) Path() string {
	return s.path
}

// Current returns the live dataset.
func (s *Source) Current() *Dataset {
	return s.current.Load()
}

// Reload re-reads the backing file. Static sources reload to themselves.
func (s *Source) Reload() error {
	var (
		ds  *Dataset
		err error
	)
	switch {
	case s.path != "":
		ds, err = Load(s.path)
	case s.current.Load() == nil:
		ds = Sample()
	default:
		ds = s.current.Load()
	}
	if err != nil {
		return fmt.Errorf("dataset: reload: %w", err)
	}
	s.current.Store(ds)

	s.mu.Lock()
	listeners := append([]func(*Dataset){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ds)
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (s *Source) OnReload(fn func(*Dataset)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
