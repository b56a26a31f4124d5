package core

import (
	"fmt"
	"strings"
)

// RemoteError indicates that a version metadata endpoint was unreachable or
// returned a payload that did not parse into the expected fields. There is
// no retry at this layer; the caller treats it as fatal.
type RemoteError struct {
	Endpoint string
	Err      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote metadata unavailable (%s): %v", e.Endpoint, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// PlatformError indicates that the local machine has no recognized package
// manager or package installer, or an unsupported CPU architecture.
type PlatformError struct {
	Reason string
}

func (e *PlatformError) Error() string {
	return "unsupported platform: " + e.Reason
}

// DownloadError indicates that a transfer failed after the primary URL and
// every mirror were exhausted. URL is the last source attempted.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed (last attempted %s): %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// CommandError reports a subprocess that could not be started or exited
// non-zero. ExitCode is -1 when the process never started. The caller
// decides whether the failure is fatal.
type CommandError struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d", strings.Join(e.Argv, " "), e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ConfigError indicates that a manifest or configuration file did not parse
// as structured data.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("malformed config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
