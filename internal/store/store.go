// Package store persists daily classifications and key/value settings so the
// switch survives restarts with one remote lookup per day.
package store

import (
	"time"

	"github.com/sweeney/peak-switch/internal/logic"
)

// KeyLastFetch is the settings key holding the last successful fetch time.
const KeyLastFetch = "state.last_fetch"

// Classifications is the date-keyed classification cache.
type Classifications interface {
	// Get returns the stored code for date. ok is false when no entry exists.
	Get(date logic.Date) (code logic.Code, ok bool, err error)

	// Put stores entries, overwriting any existing entry for the same date.
	Put(entries []logic.Entry) error

	// LastFetch returns the time of the last successful fetch.
	LastFetch() (t time.Time, ok bool, err error)

	// SetLastFetch records the time of a successful fetch.
	SetLastFetch(t time.Time) error

	// Prune deletes entries dated before date.
	Prune(before logic.Date) (int, error)
}

// Settings is a durable key/value store.
type Settings interface {
	GetSetting(key string) (value string, ok bool, err error)
	PutSetting(key, value string) error
	ListSettings(prefix string) (map[string]string, error)
}
