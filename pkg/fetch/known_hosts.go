package fetch

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/warpdl/warpq/pkg/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHostsMu serializes appends to known_hosts files.
var knownHostsMu sync.Mutex

// ErrHostKeyChanged is returned when a known host presents a different key.
var ErrHostKeyChanged = errors.New("host key changed")

// NewTOFUHostKeyCallback returns an ssh.HostKeyCallback with a
// trust-on-first-use policy backed by knownHostsFile:
//   - known host with matching key: accepted
//   - known host with another key: rejected
//   - unknown host: accepted and appended to the file
//
// The file is re-read on each call so keys appended by concurrent
// connections are seen.
func NewTOFUHostKeyCallback(knownHostsFile string, l logger.Logger) ssh.HostKeyCallback {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := os.MkdirAll(filepath.Dir(knownHostsFile), 0700); err != nil {
			return fmt.Errorf("sftp: create known_hosts directory: %w", err)
		}
		if _, err := os.Stat(knownHostsFile); err == nil {
			cb, loadErr := knownhosts.New(knownHostsFile)
			if loadErr != nil {
				return fmt.Errorf("sftp: load known_hosts: %w", loadErr)
			}
			err := cb(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) {
				return err
			}
			if len(keyErr.Want) > 0 {
				return fmt.Errorf("sftp: %w for %s (got %s), remove the old entry from %s",
					ErrHostKeyChanged, hostname, ssh.FingerprintSHA256(key), knownHostsFile)
			}
		}
		l.Info("sftp: trusting new host %s (%s)", hostname, ssh.FingerprintSHA256(key))
		return appendKnownHost(knownHostsFile, hostname, key)
	}
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("sftp: write known_hosts: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
