package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
	"golang.org/x/crypto/ssh"
)

// DefaultSSHDialTimeout bounds the TCP connect and SSH handshake.
const DefaultSSHDialTimeout = 30 * time.Second

// SFTPFetcher retrieves sftp URLs. A password in the URL wins over key
// auth; otherwise settings.SSHKeyPath or the default keys in ~/.ssh are
// tried. Host keys are checked against KnownHostsPath with a TOFU policy.
type SFTPFetcher struct {
	KnownHostsPath string
	DialTimeout    time.Duration
	Logger         logger.Logger
}

type sftpTarget struct {
	host     string
	path     string
	user     string
	password string
}

func parseSFTPURL(u *url.URL) (*sftpTarget, error) {
	if !strings.EqualFold(u.Scheme, "sftp") {
		return nil, fmt.Errorf("%w %q, expected sftp", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return nil, ErrMissingPath
	}
	t := &sftpTarget{host: u.Host, path: u.Path}
	if u.User != nil {
		t.user = u.User.Username()
		t.password, _ = u.User.Password()
	}
	if u.Port() == "" {
		t.host = net.JoinHostPort(u.Hostname(), "22")
	}
	return t, nil
}

func (f *SFTPFetcher) knownHostsPath() string {
	if f.KnownHostsPath != "" {
		return f.KnownHostsPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "known_hosts"
	}
	return filepath.Join(home, ".config", "warpq", "known_hosts")
}

func (f *SFTPFetcher) connect(ctx context.Context, t *sftpTarget, keyPath string) (*ssh.Client, *sftp.Client, error) {
	auth, err := buildAuthMethods(t.password, keyPath)
	if err != nil {
		return nil, nil, err
	}
	timeout := f.DialTimeout
	if timeout <= 0 {
		timeout = DefaultSSHDialTimeout
	}
	config := &ssh.ClientConfig{
		User:            t.user,
		Auth:            auth,
		HostKeyCallback: NewTOFUHostKeyCallback(f.knownHostsPath(), f.Logger),
		Timeout:         timeout,
	}
	d := &net.Dialer{Timeout: timeout}
	netConn, err := d.DialContext(ctx, "tcp", t.host)
	if err != nil {
		return nil, nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(netConn, t.host, config)
	if err != nil {
		netConn.Close()
		return nil, nil, err
	}
	sshConn := ssh.NewClient(c, chans, reqs)
	sftpClient, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, nil, err
	}
	return sshConn, sftpClient, nil
}

// Fetch implements Fetcher.
func (f *SFTPFetcher) Fetch(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error) {
	t, err := parseSFTPURL(u)
	if err != nil {
		return nil, warpq.NewFetchError("sftp", "parse", err)
	}
	sshConn, client, err := f.connect(ctx, t, settings.SSHKeyPath)
	if err != nil {
		return nil, canceled(ctx, "sftp", "connect", classifySFTPError("connect", err))
	}
	defer sshConn.Close()
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { sshConn.Close() })
	defer stop()

	remote, err := client.Open(t.path)
	if err != nil {
		return nil, canceled(ctx, "sftp", "open", classifySFTPError("open", err))
	}
	defer remote.Close()

	payload, err := readAll(ctx, remote, settings.SpeedLimit)
	if err != nil {
		return nil, canceled(ctx, "sftp", "read", classifySFTPError("read", err))
	}
	return payload, nil
}

// buildAuthMethods prefers password auth, then an explicit key, then the
// default keys.
func buildAuthMethods(password, sshKeyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	keyPaths := resolveSSHKeyPaths(sshKeyPath)
	for _, kp := range keyPaths {
		pemBytes, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("sftp: SSH key %q is passphrase-protected, which is not supported", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("sftp: no authentication method available, provide a password in the URL or an SSH key at %s",
		strings.Join(keyPaths, ", "))
}

func resolveSSHKeyPaths(explicitPath string) []string {
	if explicitPath != "" {
		return []string{explicitPath}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// classifySFTPError reports SFTP status replies as *warpq.StatusError and
// everything else as a *warpq.FetchError.
func classifySFTPError(op string, err error) error {
	var se *sftp.StatusError
	if errors.As(err, &se) {
		return &warpq.StatusError{Status: int(se.Code), Detail: se.Error()}
	}
	if errors.Is(err, os.ErrNotExist) {
		return &warpq.StatusError{Status: int(sftp.ErrSSHFxNoSuchFile), Detail: err.Error()}
	}
	return warpq.NewFetchError("sftp", op, err)
}
