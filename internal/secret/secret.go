// Package secret manages the bearer token shared by the daemon and its
// clients. The token lives in the OS keyring, with a 0600 file fallback
// when no keyring is available.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/zalando/go-keyring"
)

const (
	service   = "warpq"
	user      = "rpc-token"
	tokenSize = 32
	fileMode  = 0600
)

var ErrEmptyToken = errors.New("secret: empty token")

var (
	keyringGet = keyring.Get
	keyringSet = keyring.Set
	keyringDel = keyring.Delete
	randRead   = rand.Read
)

// Store resolves the RPC token.
type Store struct {
	path string
	log  logger.Logger
}

// NewStore creates a Store whose file fallback is path.
func NewStore(path string, l logger.Logger) *Store {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Store{path: path, log: l}
}

// Token returns the current token, creating one on first use. WARPQ_TOKEN
// takes precedence over any stored value.
func (s *Store) Token() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(common.TokenEnv)); tok != "" {
		return tok, nil
	}
	tok, err := keyringGet(service, user)
	if err == nil && tok != "" {
		return tok, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.log.Warning("Keyring unavailable, using token file: %v", err)
		return s.fileToken()
	}
	// the file may predate a working keyring
	if tok, ferr := s.readFile(); ferr == nil {
		return tok, nil
	}
	tok, err = generate()
	if err != nil {
		return "", err
	}
	if err := keyringSet(service, user, tok); err != nil {
		s.log.Warning("Keyring write failed, using token file: %v", err)
		return tok, s.writeFile(tok)
	}
	return tok, nil
}

// Rotate replaces the stored token with a fresh one.
func (s *Store) Rotate() (string, error) {
	tok, err := generate()
	if err != nil {
		return "", err
	}
	if err := keyringSet(service, user, tok); err != nil {
		s.log.Warning("Keyring write failed, using token file: %v", err)
		return tok, s.writeFile(tok)
	}
	return tok, nil
}

// Delete removes the token from the keyring and the file.
func (s *Store) Delete() error {
	var result *multierror.Error
	if err := keyringDel(service, user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		result = multierror.Append(result, err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *Store) fileToken() (string, error) {
	tok, err := s.readFile()
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	tok, err = generate()
	if err != nil {
		return "", err
	}
	return tok, s.writeFile(tok)
}

func (s *Store) readFile() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrEmptyToken
	}
	return tok, nil
}

// writeFile stores tok atomically with owner-only permissions.
func (s *Store) writeFile(tok string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("secret: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rpc.token.tmp.*")
	if err != nil {
		return fmt.Errorf("secret: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(tok); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("secret: write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("secret: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("secret: set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("secret: rename token file: %w", err)
	}
	return nil
}

func generate() (string, error) {
	b := make([]byte, tokenSize)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("secret: generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
