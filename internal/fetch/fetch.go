// Package fetch performs the remote classification lookup and sorts its outcome
// into success, transport failure or semantic failure.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/peak-switch/internal/logic"
)

// Fetcher looks up classifications covering date.
type Fetcher interface {
	// Fetch returns entries including a known code for date, or an *Error.
	Fetch(ctx context.Context, date logic.Date) ([]logic.Entry, error)
}

// Kind classifies a failed lookup.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindSemantic
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindSemantic:
		return "semantic"
	default:
		return "none"
	}
}

var (
	// ErrEmpty means the source answered with no entries.
	ErrEmpty = errors.New("empty result set")

	// ErrUndecided means the requested date is missing or still Unknown.
	ErrUndecided = errors.New("classification still unknown")
)

// Error is a failed lookup.
type Error struct {
	Kind       Kind
	StatusCode int // transport only; 0 when no response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindTransport && e.StatusCode != 0:
		return fmt.Sprintf("transport failure (%d): %s", e.StatusCode, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s failure: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s failure: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport builds a transport failure. code is the HTTP status, or 0.
func Transport(code int, message string) *Error {
	return &Error{Kind: KindTransport, StatusCode: code, Message: message}
}

// Semantic builds a semantic failure wrapping err.
func Semantic(message string, err error) *Error {
	return &Error{Kind: KindSemantic, Message: message, Err: err}
}

// KindOf returns the failure kind of err. Errors that are not an *Error
// count as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransport
}

// Validate checks that entries answer the lookup for date. Entries are
// de-duplicated by date, last one wins.
func Validate(date logic.Date, entries []logic.Entry) ([]logic.Entry, error) {
	if len(entries) == 0 {
		return nil, Semantic("", ErrEmpty)
	}

	seen := make(map[logic.Date]int, len(entries))
	out := make([]logic.Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := seen[e.Date]; ok {
			out[i] = e
			continue
		}
		seen[e.Date] = len(out)
		out = append(out, e)
	}

	i, ok := seen[date]
	if !ok || !out[i].Code.Known() {
		return nil, Semantic(string(date), ErrUndecided)
	}
	return out, nil
}
