package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sweeney/peak-switch/internal/logic"
)

const (
	// DatePlaceholder in the source URL is replaced with the requested date.
	DatePlaceholder = "{date}"

	FormatDay      = "day"
	FormatCalendar = "calendar"

	maxBody     = 1 << 20
	maxErrorMsg = 200
)

// HTTPFetcher fetches classifications from a JSON endpoint.
type HTTPFetcher struct {
	url    string
	format string
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option configures the HTTP fetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewHTTPFetcher creates a fetcher for url. timeout bounds every request.
func NewHTTPFetcher(url, format string, timeout time.Duration, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		url:    url,
		format: format,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// dayResponse is the single-value payload: {"date": "...", "code": 3}.
type dayResponse struct {
	Date  string `json:"date"`
	Code  *int   `json:"code"`
	Error string `json:"error"`
}

// calendarResponse is the multi-day payload: {"entries": [...]}.
type calendarResponse struct {
	Entries []dayResponse `json:"entries"`
	Error   string        `json:"error"`
}

// Fetch requests classifications covering date.
func (f *HTTPFetcher) Fetch(ctx context.Context, date logic.Date) ([]logic.Entry, error) {
	if f.url == "" {
		return nil, Transport(0, "no source url configured")
	}
	target := strings.ReplaceAll(f.url, DatePlaceholder, string(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, Transport(0, fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Transport(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, Transport(resp.StatusCode, fmt.Sprintf("reading body: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Transport(resp.StatusCode, truncate(strings.TrimSpace(string(body))))
	}

	entries, err := f.decode(body, date)
	if err != nil {
		return nil, err
	}
	return Validate(date, entries)
}

func (f *HTTPFetcher) decode(body []byte, date logic.Date) ([]logic.Entry, error) {
	var days []dayResponse

	switch f.format {
	case FormatCalendar:
		var cr calendarResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			return nil, Semantic("malformed payload", err)
		}
		if cr.Error != "" {
			return nil, Semantic("source error: "+cr.Error, nil)
		}
		days = cr.Entries
	default:
		var dr dayResponse
		if err := json.Unmarshal(body, &dr); err != nil {
			return nil, Semantic("malformed payload", err)
		}
		if dr.Error != "" {
			return nil, Semantic("source error: "+dr.Error, nil)
		}
		if dr.Date == "" && dr.Code == nil {
			return nil, nil
		}
		if dr.Date == "" {
			dr.Date = string(date)
		}
		days = []dayResponse{dr}
	}

	entries := make([]logic.Entry, 0, len(days))
	for _, d := range days {
		day, err := logic.ParseDate(d.Date)
		if err != nil {
			return nil, Semantic("malformed payload", err)
		}
		code := logic.CodeUnknown
		if d.Code != nil {
			code = logic.CodeOf(*d.Code)
		}
		entries = append(entries, logic.Entry{Date: day, Code: code})
	}
	return entries, nil
}

// truncate shortens s to at most maxErrorMsg bytes without splitting a rune.
func truncate(s string) string {
	if len(s) > maxErrorMsg {
		cut := maxErrorMsg
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	if s == "" {
		return "empty response"
	}
	return s
}
