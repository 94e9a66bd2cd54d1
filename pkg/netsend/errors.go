package netsend

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the bridge and its event loop.
var (
	// ErrNotConnected is returned when an operation needs an open channel.
	ErrNotConnected = errors.New("netsend: bridge not connected")

	// ErrLoopStopped is returned by [EventLoop.Do] once the loop has left the
	// running state.
	ErrLoopStopped = errors.New("netsend: event loop stopped")

	// ErrTornDown is returned by Connect after Teardown.
	ErrTornDown = errors.New("netsend: bridge torn down")
)

// ConfigError reports a configuration value that was rejected. Configuration
// errors are recovered locally by falling back to a default; they are surfaced
// for logging and inspection, never as a failure of the configure call.
type ConfigError struct {
	// Field names the rejected setting (e.g. "channels").
	Field string

	// Value is the rejected input in printable form. Empty means "missing".
	Value string

	// Fallback is the value used instead.
	Fallback string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("netsend: %s missing, using %s", e.Field, e.Fallback)
	}
	return fmt.Sprintf("netsend: %s %q rejected, using %s", e.Field, e.Value, e.Fallback)
}

// ConnectError reports a failure to resolve the destination or open the
// socket. The bridge stays disconnected and Connect may be retried.
type ConnectError struct {
	// Op is the failing step: "resolve", "open" or "start".
	Op string

	// Address and Port are the configured destination strings.
	Address string
	Port    string

	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("netsend: connect %s [%s]:%s: %v", e.Op, e.Address, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a datagram that could not be transmitted. It is delivered
// to the completion handler on the event loop goroutine and never reaches the
// render path.
type SendError struct {
	// Bytes is the length of the datagram that failed.
	Bytes int

	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("netsend: send %d bytes: %v", e.Bytes, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
