package streams

import "github.com/helium/libp2p-streams/internal/transport"

// Common errors, re-exported so callers of the facade don't need to reach
// into internal/transport to compare against them.
var (
	// ────────────────────────────────────────────────────────────────────
	// Lifecycle errors
	// ────────────────────────────────────────────────────────────────────

	ErrClosed          = transport.ErrClosed
	ErrInvalid         = transport.ErrInvalid
	ErrMissingHandler  = transport.ErrMissingHandler
	ErrMissingEndpoint = transport.ErrMissingEndpoint

	// ────────────────────────────────────────────────────────────────────
	// Exit reasons
	// ────────────────────────────────────────────────────────────────────

	ErrNormal           = transport.ErrNormal
	ErrHandshakeTimeout = transport.ErrHandshakeTimeout
	ErrNegotiateTimeout = transport.ErrNegotiateTimeout
	ErrNoHandlers       = transport.ErrNoHandlers
	ErrMissingHandlers  = transport.ErrMissingHandlers

	// ────────────────────────────────────────────────────────────────────
	// Dialer errors
	// ────────────────────────────────────────────────────────────────────

	ErrConnRefused = transport.ErrConnRefused
	ErrDialTimeout = transport.ErrDialTimeout
)
