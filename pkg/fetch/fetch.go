// Package fetch implements warpq.Transport for URL keys. Each URL scheme is
// served by a Fetcher registered on a Router.
package fetch

import (
	"context"
	"errors"
	"net/url"

	"github.com/warpdl/warpq/pkg/warpq"
)

// DefaultUserAgent is sent by the http fetcher when settings carry none.
const DefaultUserAgent = "warpq"

var (
	// ErrUnsupportedScheme is returned for URLs whose scheme has no Fetcher.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrInvalidKey is returned when a key cannot be parsed as a URL.
	ErrInvalidKey = errors.New("key is not a valid URL")
	// ErrMissingPath is returned for URLs without a file path.
	ErrMissingPath = errors.New("URL has no file path")
)

// Fetcher retrieves the payload behind one URL.
//
// Implementations honour ctx cancellation, return a *warpq.StatusError when
// the server answered with a failure status and a *warpq.FetchError for
// anything else.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error) {
	return f(ctx, u, settings)
}

// StripCredentials removes userinfo from a URL so it can be logged or stored.
func StripCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}

// canceled replaces err by ctx's error once ctx is done. Protocol clients
// torn down by a cancellation report closed connections instead.
func canceled(ctx context.Context, scheme, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return warpq.NewFetchError(scheme, op, ctxErr)
	}
	return err
}
