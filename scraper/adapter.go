package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"lotpulse/config"
	"lotpulse/models"
)

// Adapter extracts raw vehicle listings from one dealer site layout. The
// returned slice is finite, capped at max, and ordered as the site presents
// it (best photo first is the adapter's contract).
type Adapter interface {
	Name() string
	FetchListings(ctx context.Context, dealerURL string, max int) ([]models.RawListing, error)
}

// TransientError marks a failure worth retrying: network errors, timeouts,
// throttling responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure retrying cannot fix: structural parse
// failures, missing browser binary, 4xx responses.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether the dealer fetch should be retried.
// Unclassified errors default to permanent.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// NewAdapter builds the adapter for one configured site layout.
func NewAdapter(cfg *config.AdapterConfig, client *http.Client) Adapter {
	switch cfg.Handler {
	case "browser":
		return NewBrowserAdapter(cfg)
	default:
		return NewHTMLAdapter(cfg, client)
	}
}

// matchesHost checks a dealer host against an adapter's host patterns.
// A leading "*." matches any subdomain; a bare "*" matches everything.
func matchesHost(patterns []string, host string) bool {
	host = strings.ToLower(host)
	for _, p := range patterns {
		p = strings.ToLower(p)
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "*."):
			if host == p[2:] || strings.HasSuffix(host, p[1:]) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
