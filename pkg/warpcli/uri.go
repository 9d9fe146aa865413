package warpcli

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"github.com/warpdl/warpq/common"
)

// DaemonURI is one way of reaching the daemon.
type DaemonURI struct {
	Scheme  string // "unix", "tcp", or "pipe"
	Address string // Full address for dial
}

// Supported URI schemes
const (
	SchemeUnix = "unix"
	SchemeTCP  = "tcp"
	SchemePipe = "pipe"
)

var (
	ErrEmptyURI          = errors.New("daemon URI cannot be empty")
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	ErrInvalidPath       = errors.New("invalid path in URI")
	ErrPipeNotSupported  = errors.New("pipe:// scheme only supported on Windows")
	ErrUnixNotSupported  = errors.New("unix:// scheme not supported on Windows")
)

func (u DaemonURI) String() string {
	return u.Scheme + "://" + u.Address
}

// ParseDaemonURI parses unix:///path, tcp://host[:port] and pipe://name.
// A tcp URI without a port gets common.DefaultTCPPort.
func ParseDaemonURI(rawURI string) (*DaemonURI, error) {
	rawURI = strings.TrimSpace(rawURI)
	if rawURI == "" {
		return nil, ErrEmptyURI
	}
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case SchemeUnix:
		return parseUnixURI(parsed)
	case SchemeTCP:
		return parseTCPURI(parsed)
	case SchemePipe:
		return parsePipeURI(parsed)
	default:
		return nil, ErrUnsupportedScheme
	}
}

func parseUnixURI(parsed *url.URL) (*DaemonURI, error) {
	if runtime.GOOS == "windows" {
		return nil, ErrUnixNotSupported
	}
	// unix://relative/path puts "relative" in Host
	if parsed.Host != "" || !strings.HasPrefix(parsed.Path, "/") {
		return nil, ErrInvalidPath
	}
	return &DaemonURI{Scheme: SchemeUnix, Address: parsed.Path}, nil
}

func parseTCPURI(parsed *url.URL) (*DaemonURI, error) {
	if parsed.Host == "" {
		return nil, ErrInvalidPath
	}
	host, port := parsed.Hostname(), parsed.Port()
	if host == "" {
		return nil, ErrInvalidPath
	}
	if port == "" {
		if strings.HasSuffix(parsed.Host, ":") {
			return nil, fmt.Errorf("%w: empty port", ErrInvalidPath)
		}
		return &DaemonURI{Scheme: SchemeTCP, Address: net.JoinHostPort(host, strconv.Itoa(common.DefaultTCPPort))}, nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("%w: port out of range", ErrInvalidPath)
	}
	return &DaemonURI{Scheme: SchemeTCP, Address: net.JoinHostPort(host, port)}, nil
}

func parsePipeURI(parsed *url.URL) (*DaemonURI, error) {
	if runtime.GOOS != "windows" {
		return nil, ErrPipeNotSupported
	}
	name := parsed.Host
	if name == "" {
		return nil, ErrInvalidPath
	}
	if strings.HasPrefix(name, `\\.\pipe\`) {
		return &DaemonURI{Scheme: SchemePipe, Address: name}, nil
	}
	return &DaemonURI{Scheme: SchemePipe, Address: `\\.\pipe\` + name}, nil
}
