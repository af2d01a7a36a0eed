package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the live settings. Controllers read it once per tick; the API
// and the file watcher replace it. Reads are lock-free.
type Store struct {
	current atomic.Pointer[Settings]

	mu       sync.Mutex
	path     string
	onChange []func(Settings)
}

// NewStore returns a store seeded with s. When path is non-empty, Update
// persists every change to that file.
func NewStore(s Settings, path string) *Store {
	st := &Store{path: path}
	n := s.Normalize()
	st.current.Store(&n)
	return st
}

// Settings returns the current settings.
func (st *Store) Settings() Settings {
	return *st.current.Load()
}

// Tranquil returns the current threat-driven controller settings.
func (st *Store) Tranquil() TranquilSettings {
	return st.current.Load().Tranquil
}

// Khanda returns the current cast-intercept controller settings.
func (st *Store) Khanda() KhandaSettings {
	return st.current.Load().Khanda
}

// OnChange registers a callback invoked after every replacement.
func (st *Store) OnChange(fn func(Settings)) {
	st.mu.Lock()
	st.onChange = append(st.onChange, fn)
	st.mu.Unlock()
}

// Update replaces the settings and persists them when a path is configured.
func (st *Store) Update(s Settings) (Settings, error) {
	n := s.Normalize()

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.path != "" {
		if err := WriteSettingsFile(st.path, n); err != nil {
			return st.Settings(), err
		}
	}
	st.replaceLocked(n)
	return n, nil
}

// Reload re-reads the backing file.
func (st *Store) Reload() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.path == "" {
		return st.Settings(), nil
	}
	s, err := ReadSettingsFile(st.path)
	if err != nil {
		return st.Settings(), err
	}
	st.replaceLocked(s)
	return s, nil
}

// Path returns the backing file, if any.
func (st *Store) Path() string {
	return st.path
}

func (st *Store) replaceLocked(s Settings) {
	st.current.Store(&s)
	for _, fn := range st.onChange {
		fn(s)
	}
}
