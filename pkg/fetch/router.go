package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
)

// RouterOptions configures the fetchers registered by NewRouter.
type RouterOptions struct {
	// HTTPClient is used for http and https when settings carry no proxy.
	HTTPClient *http.Client
	// Fs backs the file scheme. Defaults to the OS filesystem.
	Fs afero.Fs
	// KnownHostsPath is the TOFU known_hosts file used by sftp.
	KnownHostsPath string
	// Logger defaults to a NopLogger.
	Logger logger.Logger
}

// Router maps URL schemes to Fetchers and implements warpq.Transport.
// The zero value is not usable; use NewRouter to create one.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Fetcher
	log    logger.Logger
}

var _ warpq.Transport = (*Router)(nil)

// NewRouter creates a Router with http, https, ftp, ftps, sftp and file
// fetchers registered.
func NewRouter(opts *RouterOptions) *Router {
	if opts == nil {
		opts = &RouterOptions{}
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	r := &Router{
		routes: make(map[string]Fetcher),
		log:    l,
	}
	hf := NewHTTPFetcher(opts.HTTPClient)
	r.routes["http"] = hf
	r.routes["https"] = hf

	ff := &FTPFetcher{}
	r.routes["ftp"] = ff
	r.routes["ftps"] = ff

	r.routes["sftp"] = &SFTPFetcher{KnownHostsPath: opts.KnownHostsPath, Logger: l}
	r.routes["file"] = &FileFetcher{Fs: fs}
	return r
}

// Register adds or replaces the Fetcher for scheme.
func (r *Router) Register(scheme string, f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[strings.ToLower(scheme)] = f
}

// Schemes returns the registered schemes, sorted.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.routes))
	for s := range r.routes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Resolve parses key and returns the Fetcher for its scheme.
func (r *Router) Resolve(key string) (*url.URL, Fetcher, error) {
	if key == "" {
		return nil, nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	u, err := url.Parse(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return nil, nil, fmt.Errorf("%w: no scheme in %q", ErrUnsupportedScheme, StripCredentials(key))
	}
	r.mu.RLock()
	f, ok := r.routes[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w %q, supported: %s",
			ErrUnsupportedScheme, scheme, strings.Join(r.Schemes(), ", "))
	}
	return u, f, nil
}

// Fetch implements warpq.Transport.
func (r *Router) Fetch(ctx context.Context, key string, settings *warpq.TransportSettings) (*warpq.Result, error) {
	u, f, err := r.Resolve(key)
	if err != nil {
		return nil, warpq.NewFetchError("router", "resolve", err)
	}
	if settings == nil {
		settings = &warpq.TransportSettings{}
	}
	start := time.Now()
	payload, err := f.Fetch(ctx, u, settings)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	r.log.Debug("fetched %d bytes from %s in %s", len(payload), StripCredentials(key), elapsed)
	return &warpq.Result{Payload: payload, Elapsed: elapsed}, nil
}
