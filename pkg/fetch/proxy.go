package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

const (
	// DefaultMaxRedirects is the maximum number of redirect hops allowed.
	DefaultMaxRedirects = 10
)

var (
	ErrEmptyProxyURL       = errors.New("proxy URL cannot be empty")
	ErrUnsupportedProxy    = errors.New("unsupported proxy scheme")
	ErrInvalidProxyURL     = errors.New("invalid proxy URL")
	ErrTooManyRedirects    = errors.New("redirect loop detected")
	ErrCrossSchemeRedirect = errors.New("cross-protocol redirect not supported")
)

var proxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// ProxyConfig holds a parsed proxy URL.
type ProxyConfig struct {
	Scheme   string
	Host     string
	Username string
	Password string
}

// URL returns the proxy URL as a string.
func (p *ProxyConfig) URL() string {
	var sb strings.Builder
	sb.WriteString(p.Scheme)
	sb.WriteString("://")
	if p.Username != "" {
		sb.WriteString(p.Username)
		if p.Password != "" {
			sb.WriteString(":")
			sb.WriteString(p.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(p.Host)
	return sb.String()
}

// ParseProxyURL parses and validates a proxy URL string.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, ErrEmptyProxyURL
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !proxySchemes[parsed.Scheme] {
		return nil, ErrUnsupportedProxy
	}
	cfg := &ProxyConfig{Scheme: parsed.Scheme, Host: parsed.Host}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// NewHTTPClientWithProxy creates an HTTP client that goes through proxyURL.
// An empty proxyURL honours the proxy environment variables instead.
// The returned client always enforces RedirectPolicy.
func NewHTTPClientWithProxy(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return &http.Client{
			Transport:     &http.Transport{Proxy: http.ProxyFromEnvironment},
			CheckRedirect: RedirectPolicy(DefaultMaxRedirects),
		}, nil
	}
	cfg, err := ParseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{}
	if cfg.Scheme == "socks5" {
		var auth *proxy.Auth
		if cfg.Username != "" {
			auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
		}
		dialer, err := proxy.SOCKS5("tcp", cfg.Host, auth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: socks5 dialer lacks context support", ErrUnsupportedProxy)
		}
		transport.DialContext = cd.DialContext
	} else {
		parsed, _ := url.Parse(cfg.URL())
		transport.Proxy = http.ProxyURL(parsed)
	}
	return &http.Client{
		Transport:     transport,
		CheckRedirect: RedirectPolicy(DefaultMaxRedirects),
	}, nil
}

// RedirectPolicy returns a CheckRedirect function that caps the number of
// hops, rejects redirects leaving http(s) and strips custom headers when the
// redirect crosses origins.
func RedirectPolicy(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: exceeded %d hops (last URL: %s)",
				ErrTooManyRedirects, maxRedirects, StripCredentials(via[len(via)-1].URL.String()))
		}
		if len(via) == 0 {
			return nil
		}
		prev := via[len(via)-1]
		if isHTTPScheme(prev.URL.Scheme) && !isHTTPScheme(req.URL.Scheme) {
			return fmt.Errorf("%w: %s -> %s", ErrCrossSchemeRedirect, prev.URL.Scheme, req.URL.Scheme)
		}
		if prev.URL.Host != req.URL.Host {
			stripUnsafeHeaders(req)
		}
		return nil
	}
}

func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// safeHeaders survive cross-origin redirects.
var safeHeaders = map[string]bool{
	"User-Agent":      true,
	"Accept":          true,
	"Accept-Language": true,
	"Accept-Encoding": true,
}

func stripUnsafeHeaders(req *http.Request) {
	for key := range req.Header {
		if !safeHeaders[http.CanonicalHeaderKey(key)] {
			req.Header.Del(key)
		}
	}
}
