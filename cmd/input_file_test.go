package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func createTempInputFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}
	return path
}

func TestParseInputFile_BasicURLs(t *testing.T) {
	path := createTempInputFile(t, `https://example.com/file1.zip
https://example.com/file2.tar.gz
ftp://example.com/file3.iso`)

	result, err := ParseInputFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"https://example.com/file1.zip",
		"https://example.com/file2.tar.gz",
		"ftp://example.com/file3.iso",
	}
	if got := result.URLs(); !reflect.DeepEqual(got, want) {
		t.Errorf("URLs() = %v, want %v", got, want)
	}
	for _, e := range result.Entries {
		if e.Priority != -1 {
			t.Errorf("entry %s has priority %d, want -1", e.URL, e.Priority)
		}
	}
}

func TestParseInputFile_CommentsAndWhitespace(t *testing.T) {
	path := createTempInputFile(t, "# header\n\n   https://example.com/a   \n  # indented\r\nhttps://example.com/b\n\n")

	result, err := ParseInputFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.URLs(); !reflect.DeepEqual(got, []string{"https://example.com/a", "https://example.com/b"}) {
		t.Errorf("URLs() = %v", got)
	}
	if result.SkippedLines != 2 {
		t.Errorf("SkippedLines = %d, want 2", result.SkippedLines)
	}
	if result.TotalLines != 7 {
		t.Errorf("TotalLines = %d, want 7", result.TotalLines)
	}
}

func TestParseInputFile_Priorities(t *testing.T) {
	path := createTempInputFile(t, `https://example.com/urgent 0
https://example.com/later	2
https://example.com/bad -1
https://example.com/worse x
https://example.com/extra 1 2`)

	result, err := ParseInputFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []InputEntry{
		{URL: "https://example.com/urgent", Priority: 0},
		{URL: "https://example.com/later", Priority: 2},
	}
	if !reflect.DeepEqual(result.Entries, want) {
		t.Errorf("Entries = %+v, want %+v", result.Entries, want)
	}
	reasons := []string{"invalid priority", "invalid priority", "too many fields"}
	if len(result.InvalidLines) != len(reasons) {
		t.Fatalf("InvalidLines = %+v", result.InvalidLines)
	}
	for i, inv := range result.InvalidLines {
		if inv.LineNumber != i+3 || inv.Reason != reasons[i] {
			t.Errorf("invalid line %d = %+v", i, inv)
		}
	}
}

func TestParseInputFile_UnsupportedSchemes(t *testing.T) {
	path := createTempInputFile(t, `https://example.com/ok
magnet:?xt=urn:btih:abc123
example.com/no-scheme
sftp://host/ok`)

	result, err := ParseInputFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("Entries = %+v, want 2", result.Entries)
	}
	if len(result.InvalidLines) != 2 || result.InvalidLines[0].LineNumber != 2 || result.InvalidLines[1].LineNumber != 3 {
		t.Errorf("InvalidLines = %+v", result.InvalidLines)
	}
}

func TestParseInputFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.txt") },
			wantErr: ErrInputFileNotFound,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return createTempInputFile(t, "") },
			wantErr: ErrInputFileEmpty,
		},
		{
			name:    "only comments",
			path:    func(t *testing.T) string { return createTempInputFile(t, "# a\n\n# b\n") },
			wantErr: ErrInputFileEmpty,
		},
		{
			name:    "only invalid",
			path:    func(t *testing.T) string { return createTempInputFile(t, "magnet:?x\n/local/file\n") },
			wantErr: ErrInputFileEmpty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path(t)
			_, err := ParseInputFile(path)
			var ife *InputFileError
			if !errors.As(err, &ife) {
				t.Fatalf("error = %v, want *InputFileError", err)
			}
			if !errors.Is(err, tt.wantErr) || ife.Path != path {
				t.Errorf("error = %v, want %v for %s", err, tt.wantErr, path)
			}
		})
	}
}

func TestParseInputFile_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	path := createTempInputFile(t, "https://example.com/a")
	if err := os.Chmod(path, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseInputFile(path); !errors.Is(err, ErrInputFilePermission) {
		t.Fatalf("error = %v, want ErrInputFilePermission", err)
	}
}

func TestInputFileError_Format(t *testing.T) {
	err := NewInputFileError("/tmp/list.txt", ErrInputFileEmpty)
	if got, want := err.Error(), "input file contains no valid URLs: /tmp/list.txt"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInputFileEmpty) {
		t.Error("Unwrap() does not expose the cause")
	}
}
