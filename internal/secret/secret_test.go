package secret

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/zalando/go-keyring"
)

func newTestStore(t *testing.T) (*Store, *logger.MockLogger) {
	t.Helper()
	keyring.MockInit()
	t.Setenv(common.TokenEnv, "")
	l := logger.NewMockLogger()
	return NewStore(filepath.Join(t.TempDir(), "rpc.token"), l), l
}

func stubKeyringError(t *testing.T, err error) {
	t.Helper()
	origGet, origSet := keyringGet, keyringSet
	keyringGet = func(string, string) (string, error) { return "", err }
	keyringSet = func(string, string, string) error { return err }
	t.Cleanup(func() { keyringGet, keyringSet = origGet, origSet })
}

func TestToken_CreatedOnceInKeyring(t *testing.T) {
	s, _ := newTestStore(t)
	first, err := s.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if len(first) != 2*tokenSize {
		t.Fatalf("token length %d, want %d", len(first), 2*tokenSize)
	}
	second, err := s.Token()
	if err != nil || second != first {
		t.Fatalf("second Token() = %q, %v; want %q", second, err, first)
	}
	if _, err := os.Stat(s.path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("token file written although the keyring works")
	}
}

func TestToken_EnvOverride(t *testing.T) {
	s, _ := newTestStore(t)
	t.Setenv(common.TokenEnv, " from-env ")
	tok, err := s.Token()
	if err != nil || tok != "from-env" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}
}

func TestToken_FileFallback(t *testing.T) {
	s, l := newTestStore(t)
	stubKeyringError(t, errors.New("no dbus"))

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	info, err := os.Stat(s.path)
	if err != nil {
		t.Fatalf("token file not created: %v", err)
	}
	if info.Mode().Perm() != fileMode {
		t.Fatalf("permissions %o, want %o", info.Mode().Perm(), fileMode)
	}
	again, err := s.Token()
	if err != nil || again != tok {
		t.Fatalf("file token not reused: %q vs %q (%v)", again, tok, err)
	}
	if len(l.WarningCalls) == 0 {
		t.Fatal("expected a warning about the keyring")
	}
}

func TestToken_ExistingFilePreferredOverNewKeyringEntry(t *testing.T) {
	s, _ := newTestStore(t)
	if err := os.WriteFile(s.path, []byte("legacy\n"), fileMode); err != nil {
		t.Fatal(err)
	}
	tok, err := s.Token()
	if err != nil || tok != "legacy" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}
}

func TestToken_RandomFailure(t *testing.T) {
	s, _ := newTestStore(t)
	orig := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("entropy") }
	t.Cleanup(func() { randRead = orig })
	if _, err := s.Token(); err == nil {
		t.Fatal("expected error")
	}
}

func TestRotateAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	first, _ := s.Token()
	rotated, err := s.Rotate()
	if err != nil || rotated == first {
		t.Fatalf("Rotate() = %q, %v", rotated, err)
	}
	if tok, _ := s.Token(); tok != rotated {
		t.Fatalf("Token() after Rotate = %q", tok)
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if tok, _ := s.Token(); tok == rotated {
		t.Fatal("deleted token came back")
	}
}
