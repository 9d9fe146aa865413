package sink

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"http://example.com/files/report.pdf", "report.pdf"},
		{"https://example.com/a%20b.txt?x=1", "a b.txt"},
		{"sftp://host/home/u/con.txt", "_con.txt"},
		{"file:///tmp/data.bin", "data.bin"},
		{"plain-key", "plain-key"},
	}
	for _, tt := range tests {
		if got := FileName(tt.key); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestFileName_HashFallback(t *testing.T) {
	a := FileName("http://example.com/")
	b := FileName("http://example.org")
	if !strings.HasPrefix(a, "download-") || !strings.HasPrefix(b, "download-") {
		t.Fatalf("expected hashed names, got %q and %q", a, b)
	}
	if a == b {
		t.Fatal("different keys produced the same hashed name")
	}
	if a != FileName("http://example.com/") {
		t.Fatal("hashed name is not stable")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a<b>c", "a_b_c"},
		{"what?.txt", "what_.txt"},
		{"tab\there", "tabhere"},
		{" .hidden. ", "hidden"},
		{"NUL", "_NUL"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSink_WriteNeverOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/out", nil)

	p1, err := s.Write("http://example.com/a.txt", []byte("one"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	p2, err := s.Write("http://mirror.example.com/a.txt", []byte("two"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if p1 != filepath.Join("/out", "a.txt") || p2 != filepath.Join("/out", "a (1).txt") {
		t.Fatalf("unexpected paths %q, %q", p1, p2)
	}
	data, _ := afero.ReadFile(fs, p1)
	if string(data) != "one" {
		t.Fatalf("first file overwritten: %q", data)
	}
	if ok, _ := afero.Exists(fs, p2+".part"); ok {
		t.Fatal("temporary file left behind")
	}
}

func TestSink_AttachWritesOnSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := logger.NewMockLogger()
	s := New(fs, "/out", l)
	em := warpq.NewEmitter()
	s.Attach(em)

	em.Emit(warpq.Event{Type: warpq.EventFailed, Key: "http://example.com/bad.bin"})
	em.Emit(warpq.Event{Type: warpq.EventSuccess, Key: "http://example.com/good.bin", Payload: []byte("ok")})

	if ok, _ := afero.Exists(fs, filepath.Join("/out", "bad.bin")); ok {
		t.Fatal("failed event must not be written")
	}
	data, err := afero.ReadFile(fs, filepath.Join("/out", "good.bin"))
	if err != nil || string(data) != "ok" {
		t.Fatalf("payload not written: %q, %v", data, err)
	}
	if len(l.InfoCalls) != 1 {
		t.Fatalf("expected one info log, got %v", l.InfoCalls)
	}
}

func TestSink_WriteErrorIsLogged(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	l := logger.NewMockLogger()
	s := New(fs, "/out", l)
	em := warpq.NewEmitter()
	s.Attach(em)

	em.Emit(warpq.Event{Type: warpq.EventSuccess, Key: "http://example.com/x", Payload: []byte("x")})
	if len(l.Errors()) != 1 {
		t.Fatalf("expected one error log, got %v", l.Errors())
	}
}
