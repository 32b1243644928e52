package fetch

import (
	"context"
	"errors"

	"github.com/sweeney/peak-switch/internal/logic"
)

// FakeResult is one scripted Fetch outcome.
type FakeResult struct {
	Entries []logic.Entry
	Err     error
}

// FakeFetcher is a test double that returns scripted results.
type FakeFetcher struct {
	// Results are consumed one per call; the last one repeats.
	Results []FakeResult

	// Calls records the requested dates.
	Calls []logic.Date

	index int
}

var _ Fetcher = (*FakeFetcher)(nil)

// NewFakeFetcher creates a FakeFetcher with the given results.
func NewFakeFetcher(results ...FakeResult) *FakeFetcher {
	return &FakeFetcher{Results: results}
}

// Fetch returns the next scripted result.
func (f *FakeFetcher) Fetch(_ context.Context, date logic.Date) ([]logic.Entry, error) {
	f.Calls = append(f.Calls, date)
	if len(f.Results) == 0 {
		return nil, errors.New("no results configured")
	}

	r := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return r.Entries, r.Err
}
