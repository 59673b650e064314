package pfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFetched means the project's working clone does not exist yet.
	ErrNotFetched = errors.New("filesystem not fetched")

	// ErrUnknownTransport means the project names an fs_type with no
	// registered transport.
	ErrUnknownTransport = errors.New("unknown transport type")

	// ErrFileVanished means a file disappeared between scan and sync.
	ErrFileVanished = errors.New("file vanished")
)

// ConfigError reports invalid project or application configuration.
// It is returned before any state is touched.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StateError reports an unmet precondition for an operation on a project.
type StateError struct {
	Project string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("project %s: %v", e.Project, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// TransportError wraps a failure of a remote fetch or push.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ItemError is attached to failed action log entries.
type ItemError struct {
	PootlePath string
	Op         string
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.PootlePath, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
