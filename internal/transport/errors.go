package transport

import (
	"errors"
	"fmt"
)

// ────────────────────────────────────────────────────────────────────────
// Lifecycle errors
// ────────────────────────────────────────────────────────────────────────

var (
	// ErrClosed is returned by Command/AddrInfo once the transport has
	// terminated.
	ErrClosed = errors.New("transport closed")

	// ErrInvalid is returned by AddrInfo when called against an argument
	// that is not a live transport.
	ErrInvalid = errors.New("transport: invalid instance")

	// ErrMissingHandler is returned by start() when opts omits the
	// required handler module reference.
	ErrMissingHandler = errors.New("transport: opts missing handler module")

	// ErrMissingEndpoint is returned by start() when opts supplies neither
	// a socket (listener path) nor an addr (dialer path).
	ErrMissingEndpoint = errors.New("transport: opts missing socket or addr")

	// ErrInvalidConfig is returned by Config.Validate for an unusable config.
	ErrInvalidConfig = errors.New("transport: invalid config")
)

// ────────────────────────────────────────────────────────────────────────
// Exit reasons
// ────────────────────────────────────────────────────────────────────────

var (
	ErrNormal           = errors.New("normal")
	ErrHandshakeTimeout = errors.New("handshake_timeout")
	ErrNegotiateTimeout = errors.New("negotiate_timeout")
	ErrNoHandlers       = errors.New("no_handlers")
	ErrMissingHandlers  = errors.New("missing_handlers")
)

// HandshakeMismatchError wraps the unexpected line a multistream peer sent
// in place of the "/multistream/1.0.0" header.
type HandshakeMismatchError struct {
	Line string
}

func (e *HandshakeMismatchError) Error() string {
	return fmt.Sprintf("handshake_mismatch: %q", e.Line)
}

// UnexpectedServerResponseError wraps a negotiate-phase client response
// that matched neither "na" nor the expected protocol prefix.
type UnexpectedServerResponseError struct {
	Line string
}

func (e *UnexpectedServerResponseError) Error() string {
	return fmt.Sprintf("unexpected_server_response: %q", e.Line)
}

// ────────────────────────────────────────────────────────────────────────
// Dialer errors
// ────────────────────────────────────────────────────────────────────────

// DialError reports why a dialer-path start() failed, wrapping the
// underlying cause so callers can errors.Is/As against it; the shape
// follows the example corpus's swarm.DialError's (Peer, []error) pair.
type DialError struct {
	Addr   string
	Reason error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial %s: %v", e.Addr, e.Reason)
}

func (e *DialError) Unwrap() error {
	return e.Reason
}

var (
	// ErrConnRefused classifies a dial failure as connection-refused.
	ErrConnRefused = errors.New("econnrefused")
	// ErrDialTimeout classifies a dial failure as a timeout.
	ErrDialTimeout = errors.New("timeout")
)
