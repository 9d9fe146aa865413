package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Sentinel errors for input file parsing.
var (
	// ErrInputFileNotFound is returned when the input file does not exist.
	ErrInputFileNotFound = errors.New("input file not found")
	// ErrInputFilePermission is returned when the input file cannot be read due to permissions.
	ErrInputFilePermission = errors.New("permission denied reading input file")
	// ErrInputFileEmpty is returned when the input file contains no valid URLs.
	ErrInputFileEmpty = errors.New("input file contains no valid URLs")
)

// supportedSchemes are the URL schemes the fetch router can serve.
var supportedSchemes = map[string]bool{
	"http": true, "https": true, "ftp": true, "ftps": true, "sftp": true, "file": true,
}

// InputFileError wraps input file errors with additional context.
type InputFileError struct {
	Path string
	Err  error
}

func (e *InputFileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Path)
}

func (e *InputFileError) Unwrap() error {
	return e.Err
}

// NewInputFileError creates a new InputFileError with the given path and error.
func NewInputFileError(path string, err error) *InputFileError {
	return &InputFileError{Path: path, Err: err}
}

// InputEntry is one key read from an input file. Priority is -1 when the
// line did not set one.
type InputEntry struct {
	URL      string
	Priority int
}

// InvalidLine is a line that could not be used.
type InvalidLine struct {
	LineNumber int
	Content    string
	Reason     string
}

// ParseResult holds the result of parsing an input file.
type ParseResult struct {
	Entries      []InputEntry
	InvalidLines []InvalidLine
	// SkippedLines counts comment lines.
	SkippedLines int
	TotalLines   int
}

// URLs returns the keys of every entry in file order.
func (r *ParseResult) URLs() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.URL
	}
	return out
}

// ParseInputFile reads one key per line, optionally followed by a priority
// level: "https://example.com/a.iso 0". Empty lines and lines starting with
// # are skipped.
func ParseInputFile(filePath string) (*ParseResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, wrapInputFileError(filePath, err)
	}

	lines := strings.Split(string(data), "\n")
	result := &ParseResult{TotalLines: len(lines)}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			result.SkippedLines++
			continue
		}
		entry, reason := parseInputLine(trimmed)
		if reason != "" {
			result.InvalidLines = append(result.InvalidLines, InvalidLine{LineNumber: i + 1, Content: trimmed, Reason: reason})
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	if len(result.Entries) == 0 {
		return result, NewInputFileError(filePath, ErrInputFileEmpty)
	}
	return result, nil
}

func parseInputLine(line string) (InputEntry, string) {
	fields := strings.Fields(line)
	entry := InputEntry{URL: fields[0], Priority: -1}
	if len(fields) > 2 {
		return entry, "too many fields"
	}
	u, err := url.Parse(entry.URL)
	if err != nil || !supportedSchemes[strings.ToLower(u.Scheme)] {
		return entry, "unsupported URL"
	}
	if len(fields) == 2 {
		p, err := strconv.Atoi(fields[1])
		if err != nil || p < 0 {
			return entry, "invalid priority"
		}
		entry.Priority = p
	}
	return entry, ""
}

// wrapInputFileError converts OS-level errors to domain-specific errors.
func wrapInputFileError(path string, err error) error {
	if os.IsNotExist(err) {
		return NewInputFileError(path, ErrInputFileNotFound)
	}
	if os.IsPermission(err) {
		return NewInputFileError(path, ErrInputFilePermission)
	}
	return NewInputFileError(path, err)
}
