package dbconn

import "fmt"

// ConfigError marks a connection profile that is unusable before any network
// attempt. It is never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("connection config: %s %s", e.Field, e.Reason)
}

// ConnectError marks a handshake or timeout failure against the backend.
// Target carries the redacted connection target only.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
