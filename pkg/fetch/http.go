package fetch

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/warpdl/warpq/pkg/warpq"
)

// HTTPFetcher retrieves http and https URLs with a GET request. Any status
// outside 2xx is reported as a *warpq.StatusError.
type HTTPFetcher struct {
	client *http.Client

	// clients caches one client per proxy URL.
	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client is replaced by one
// honouring the proxy environment variables.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client, _ = NewHTTPClientWithProxy("")
	}
	return &HTTPFetcher{
		client:  client,
		clients: make(map[string]*http.Client),
	}
}

func (f *HTTPFetcher) clientFor(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return f.client, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[proxyURL]; ok {
		return c, nil
	}
	c, err := NewHTTPClientWithProxy(proxyURL)
	if err != nil {
		return nil, err
	}
	f.clients[proxyURL] = c
	return c, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error) {
	scheme := strings.ToLower(u.Scheme)
	client, err := f.clientFor(settings.Proxy)
	if err != nil {
		return nil, warpq.NewFetchError(scheme, "proxy", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, warpq.NewFetchError(scheme, "request", err)
	}
	for k, v := range settings.Headers {
		req.Header.Set(k, v)
	}
	ua := settings.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
	if err != nil {
		return nil, warpq.NewFetchError(scheme, "get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &warpq.StatusError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	}
	payload, err := readAll(ctx, resp.Body, settings.SpeedLimit)
	if err != nil {
		return nil, warpq.NewFetchError(scheme, "read", err)
	}
	return payload, nil
}
