// Package common provides constants and wire types shared by the warpq
// daemon and its clients.
package common

// Environment variable names for configuration.
const (
	// SocketPathEnv is the environment variable for custom socket path.
	SocketPathEnv = "WARPQ_SOCKET_PATH"

	// TCPPortEnv is the environment variable for custom TCP port.
	TCPPortEnv = "WARPQ_TCP_PORT"

	// ForceTCPEnv is the environment variable to force TCP connections.
	ForceTCPEnv = "WARPQ_FORCE_TCP"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "WARPQ_DEBUG"

	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "WARPQ_CONFIG_DIR"

	// ConfigFileEnv points at a config file outside the configuration directory.
	ConfigFileEnv = "WARPQ_CONFIG"

	// LevelsEnv overrides the number of priority levels.
	LevelsEnv = "WARPQ_LEVELS"

	// ConcurrencyEnv overrides the number of concurrent downloads.
	ConcurrencyEnv = "WARPQ_CONCURRENCY"

	// OutputDirEnv overrides the directory payloads are written to.
	OutputDirEnv = "WARPQ_OUTPUT_DIR"

	// TokenEnv supplies the RPC token directly, bypassing the keyring.
	TokenEnv = "WARPQ_TOKEN"

	// PipeNameEnv overrides the Windows named pipe name.
	PipeNameEnv = "WARPQ_PIPE_NAME"
)
