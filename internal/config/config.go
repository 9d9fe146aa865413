// Package config loads the daemon configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file looked up in the configuration directory.
	FileName = "config.yaml"

	defaultShutdownTimeout = 30 * time.Second
)

var (
	ErrInvalidLevels      = errors.New("priority_levels must be positive")
	ErrInvalidConcurrency = errors.New("concurrent_downloads must be positive")
	ErrInvalidPort        = errors.New("tcp_port must be between 1 and 65535")
)

// Config is the daemon configuration. Paths left empty resolve inside Dir.
type Config struct {
	// Dir is the configuration directory. It is never read from the file.
	Dir string `yaml:"-"`

	PriorityLevels      int           `yaml:"priority_levels"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads"`
	TickInterval        time.Duration `yaml:"tick_interval"`
	// SpeedLimit is a human readable rate per transfer such as "512KB"
	// or "2 MiB". Empty means unlimited.
	SpeedLimit string `yaml:"speed_limit,omitempty"`
	OutputDir  string `yaml:"output_dir"`

	SocketPath string `yaml:"socket_path,omitempty"`
	TCPPort    int    `yaml:"tcp_port"`
	ForceTCP   bool   `yaml:"force_tcp,omitempty"`

	JournalPath    string `yaml:"journal_path,omitempty"`
	KnownHostsPath string `yaml:"known_hosts_path,omitempty"`
	LogFile        string `yaml:"log_file,omitempty"`
	Debug          bool   `yaml:"debug,omitempty"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Transport warpq.TransportSettings `yaml:"transport,omitempty"`
}

// DefaultDir returns $WARPQ_CONFIG_DIR or the warpq directory inside the
// user configuration directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv(common.ConfigDirEnv); dir != "" {
		return dir, nil
	}
	cdr, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(cdr, "warpq"), nil
}

// Default returns the configuration used when no file exists.
func Default(dir string) *Config {
	out := "."
	if home, err := os.UserHomeDir(); err == nil {
		out = filepath.Join(home, "Downloads")
	}
	return &Config{
		Dir:                 dir,
		PriorityLevels:      warpq.DefaultPriorityLevels,
		ConcurrentDownloads: warpq.DefaultConcurrentDownloads,
		TickInterval:        warpq.DefaultTickInterval,
		OutputDir:           out,
		TCPPort:             common.DefaultTCPPort,
		ShutdownTimeout:     defaultShutdownTimeout,
	}
}

// Path returns the config file path: $WARPQ_CONFIG or config.yaml in dir.
func Path(dir string) string {
	if p := os.Getenv(common.ConfigFileEnv); p != "" {
		return p
	}
	return filepath.Join(dir, FileName)
}

// Load reads the config file for dir, applies the environment overrides
// and validates the result. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	cfg, err := LoadFile(Path(dir), dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes path on top of the defaults for dir.
func LoadFile(path, dir string) (*Config, error) {
	cfg := Default(dir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Dir = dir
	return cfg, nil
}

// ApplyEnv overrides fields from the WARPQ_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	intVar := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*dst = n
		return nil
	}
	if err := intVar(common.LevelsEnv, &c.PriorityLevels); err != nil {
		return err
	}
	if err := intVar(common.ConcurrencyEnv, &c.ConcurrentDownloads); err != nil {
		return err
	}
	if err := intVar(common.TCPPortEnv, &c.TCPPort); err != nil {
		return err
	}
	if v, ok := lookup(common.SocketPathEnv); ok && v != "" {
		c.SocketPath = v
	}
	if v, ok := lookup(common.OutputDirEnv); ok && v != "" {
		c.OutputDir = v
	}
	if v, ok := lookup(common.ForceTCPEnv); ok {
		c.ForceTCP = v == "1"
	}
	if v, ok := lookup(common.DebugEnv); ok {
		c.Debug = v == "1"
	}
	return nil
}

// Validate checks the fields the scheduler cannot default on its own.
func (c *Config) Validate() error {
	if c.PriorityLevels <= 0 {
		return ErrInvalidLevels
	}
	if c.ConcurrentDownloads <= 0 {
		return ErrInvalidConcurrency
	}
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		return ErrInvalidPort
	}
	if _, err := ParseSpeedLimit(c.SpeedLimit); err != nil {
		return err
	}
	return nil
}

// ParseSpeedLimit converts a human readable size to bytes per second.
// Empty and "0" mean unlimited.
func ParseSpeedLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("config: speed_limit %q: %w", s, err)
	}
	return int64(n), nil
}

// TransportSettings returns the settings handed to every fetch, with the
// speed limit resolved.
func (c *Config) TransportSettings() *warpq.TransportSettings {
	ts := c.Transport
	if len(c.Transport.Headers) > 0 {
		ts.Headers = make(map[string]string, len(c.Transport.Headers))
		for k, v := range c.Transport.Headers {
			ts.Headers[k] = v
		}
	}
	ts.SpeedLimit, _ = ParseSpeedLimit(c.SpeedLimit)
	return &ts
}

// SchedulerOptions maps the queue settings onto warpq.Options.
func (c *Config) SchedulerOptions(l logger.Logger) *warpq.Options {
	return &warpq.Options{
		PriorityLevels:      c.PriorityLevels,
		ConcurrentDownloads: c.ConcurrentDownloads,
		TransportSettings:   c.TransportSettings(),
		TickInterval:        c.TickInterval,
		Logger:              l,
	}
}

// ResolvedSocketPath is the unix socket the daemon listens on.
func (c *Config) ResolvedSocketPath() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return filepath.Join(os.TempDir(), common.SocketName)
}

// ResolvedJournalPath is the SQLite outcome journal.
func (c *Config) ResolvedJournalPath() string {
	return c.inDir(c.JournalPath, "journal.db")
}

// ResolvedKnownHostsPath is the known_hosts file used for sftp.
func (c *Config) ResolvedKnownHostsPath() string {
	return c.inDir(c.KnownHostsPath, "known_hosts")
}

// PIDPath is the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Dir, "daemon.pid")
}

// TokenPath is the file fallback of the RPC token.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, "rpc.token")
}

// TCPAddress is the loopback address of the TCP fallback listener.
func (c *Config) TCPAddress() string {
	return fmt.Sprintf("%s:%d", common.TCPHost, c.TCPPort)
}

func (c *Config) inDir(p, name string) string {
	if p != "" {
		return p
	}
	return filepath.Join(c.Dir, name)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
