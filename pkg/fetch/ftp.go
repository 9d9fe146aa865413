package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/warpdl/warpq/pkg/warpq"
)

// DefaultFTPDialTimeout bounds connection setup for ftp and ftps.
const DefaultFTPDialTimeout = 30 * time.Second

// FTPFetcher retrieves ftp and ftps URLs. Credentials come from the URL
// userinfo and default to anonymous. ftps uses explicit TLS.
type FTPFetcher struct {
	// DialTimeout defaults to DefaultFTPDialTimeout.
	DialTimeout time.Duration
	// TLSConfig overrides the TLS settings used for ftps.
	TLSConfig *tls.Config
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
	useTLS   bool
}

func parseFTPURL(u *url.URL) (*ftpTarget, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "ftp" && scheme != "ftps" {
		return nil, fmt.Errorf("%w %q, expected ftp or ftps", ErrUnsupportedScheme, scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return nil, ErrMissingPath
	}
	t := &ftpTarget{
		host:     u.Host,
		path:     u.Path,
		user:     "anonymous",
		password: "anonymous",
		useTLS:   scheme == "ftps",
	}
	if u.User != nil {
		t.user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			t.password = p
		}
	}
	if u.Port() == "" {
		t.host = net.JoinHostPort(u.Hostname(), "21")
	}
	return t, nil
}

func (f *FTPFetcher) connect(ctx context.Context, t *ftpTarget) (*ftp.ServerConn, error) {
	timeout := f.DialTimeout
	if timeout <= 0 {
		timeout = DefaultFTPDialTimeout
	}
	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(timeout),
		ftp.DialWithContext(ctx),
	}
	if t.useTLS {
		cfg := f.TLSConfig
		if cfg == nil {
			hostname := t.host
			if h, _, err := net.SplitHostPort(t.host); err == nil {
				hostname = h
			}
			cfg = &tls.Config{ServerName: hostname, MinVersion: tls.VersionTLS12}
		}
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(cfg))
	}
	conn, err := ftp.Dial(t.host, dialOpts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Login(t.user, t.password); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

// Fetch implements Fetcher.
func (f *FTPFetcher) Fetch(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error) {
	scheme := strings.ToLower(u.Scheme)
	t, err := parseFTPURL(u)
	if err != nil {
		return nil, warpq.NewFetchError(scheme, "parse", err)
	}
	conn, err := f.connect(ctx, t)
	if err != nil {
		return nil, canceled(ctx, scheme, "connect", classifyFTPError(scheme, "connect", err))
	}
	// the control connection is torn down on cancellation to unblock reads
	stop := context.AfterFunc(ctx, func() { conn.Quit() })
	defer func() {
		if stop() {
			conn.Quit()
		}
	}()

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		return nil, canceled(ctx, scheme, "type", classifyFTPError(scheme, "type", err))
	}
	resp, err := conn.Retr(t.path)
	if err != nil {
		return nil, canceled(ctx, scheme, "retr", classifyFTPError(scheme, "retr", err))
	}
	payload, err := readAll(ctx, resp, settings.SpeedLimit)
	resp.Close()
	if err != nil {
		return nil, canceled(ctx, scheme, "read", classifyFTPError(scheme, "read", err))
	}
	return payload, nil
}

// classifyFTPError turns FTP reply codes (RFC 959 4xx and 5xx) into a
// *warpq.StatusError and anything else into a *warpq.FetchError.
func classifyFTPError(scheme, op string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &warpq.StatusError{Status: tpErr.Code, Detail: tpErr.Msg}
	}
	return warpq.NewFetchError(scheme, op, err)
}
