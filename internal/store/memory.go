package store

import (
	"strings"
	"sync"
	"time"

	"github.com/sweeney/peak-switch/internal/logic"
)

// MemoryStore is an in-memory Classifications and Settings for tests.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[logic.Date]logic.Code
	settings map[string]string

	// PutError, if set, will be returned by Put.
	PutError error

	// GetError, if set, will be returned by Get.
	GetError error

	// Puts counts successful Put calls.
	Puts int
}

var (
	_ Classifications = (*MemoryStore)(nil)
	_ Settings        = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[logic.Date]logic.Code),
		settings: make(map[string]string),
	}
}

// Get returns the stored code for date.
func (m *MemoryStore) Get(date logic.Date) (logic.Code, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return logic.CodeUnknown, false, m.GetError
	}
	c, ok := m.entries[date]
	return c, ok, nil
}

// Put stores entries, overwriting by date.
func (m *MemoryStore) Put(entries []logic.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return m.PutError
	}
	for _, e := range entries {
		m.entries[e.Date] = e.Code
	}
	m.Puts++
	return nil
}

// Prune deletes entries dated before date.
func (m *MemoryStore) Prune(before logic.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for d := range m.entries {
		if d < before {
			delete(m.entries, d)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// LastFetch returns the time of the last successful fetch.
func (m *MemoryStore) LastFetch() (time.Time, bool, error) {
	v, ok, _ := m.GetSetting(KeyLastFetch)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// SetLastFetch records the time of a successful fetch.
func (m *MemoryStore) SetLastFetch(t time.Time) error {
	return m.PutSetting(KeyLastFetch, t.Format(time.RFC3339))
}

// GetSetting returns the value stored under key.
func (m *MemoryStore) GetSetting(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

// PutSetting stores value under key.
func (m *MemoryStore) PutSetting(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// ListSettings returns all settings whose key starts with prefix.
func (m *MemoryStore) ListSettings(prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for k, v := range m.settings {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}
