// Package sink writes fetched payloads to the output directory.
package sink

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
)

// Sink stores the payload of every success event as a file in Dir.
// Existing files are never overwritten; a numeric suffix is added instead.
type Sink struct {
	fs  afero.Fs
	dir string
	log logger.Logger
	mu  sync.Mutex
}

// New creates a Sink writing into dir on fs.
func New(fs afero.Fs, dir string, l logger.Logger) *Sink {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Sink{fs: fs, dir: dir, log: l}
}

// Attach subscribes the sink to success events of n.
func (s *Sink) Attach(n warpq.Notifier) {
	n.On(warpq.EventSuccess, func(ev warpq.Event) {
		if _, err := s.Write(ev.Key, ev.Payload); err != nil {
			s.log.Error("Failed to save %s: %v", ev.Key, err)
		}
	})
}

// Write stores payload under a name derived from key and returns the path.
func (s *Sink) Write(key string, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("sink: create %s: %w", s.dir, err)
	}
	dst, err := s.freePath(FileName(key))
	if err != nil {
		return "", err
	}
	tmp := dst + ".part"
	if err := afero.WriteFile(s.fs, tmp, payload, 0644); err != nil {
		return "", fmt.Errorf("sink: write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, dst); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("sink: rename %s: %w", dst, err)
	}
	s.log.Info("Saved %s (%d bytes) to %s", key, len(payload), dst)
	return dst, nil
}

func (s *Sink) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		p := filepath.Join(s.dir, candidate)
		ok, err := afero.Exists(s.fs, p)
		if err != nil {
			return "", fmt.Errorf("sink: stat %s: %w", p, err)
		}
		if !ok {
			return p, nil
		}
	}
}

// FileName derives a file name from a key. URLs use the last path element;
// keys without a usable name fall back to a hash of the key.
func FileName(key string) string {
	var name string
	if u, err := url.Parse(key); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	} else if err != nil {
		name = path.Base(key)
	}
	if name == "/" || name == "." {
		name = ""
	}
	name = Sanitize(name)
	if name == "" {
		sum := sha256.Sum256([]byte(key))
		name = "download-" + hex.EncodeToString(sum[:6])
	}
	return name
}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize makes name safe on both Windows and Unix filesystems. It may
// return an empty string.
func Sanitize(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 32:
			return -1
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, name)

	base, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		base, ext = name[:i], name[i:]
	}
	if reservedNames[strings.ToUpper(base)] {
		base = "_" + base
	}
	return strings.Trim(base+ext, " .")
}
