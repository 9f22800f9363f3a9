package streams

import (
	"context"

	"github.com/helium/libp2p-streams/internal/transport"
)

// Instance is a running stream transport, as returned by StartClient or
// StartServer.
type Instance = *transport.Transport

// Opts is re-exported so callers configuring a transport instance never
// need to import internal/transport directly.
type Opts = transport.Opts

// StartClient starts a new client-role instance: it dials opts.Addr (or
// adopts opts.Socket, if already connected) and drives opts.Handler
// through the lifecycle described in internal/transport.
func StartClient(opts Opts) (Instance, error) {
	return transport.Start(transport.KindClient, opts)
}

// StartServer starts a new server-role instance over an already-accepted
// connection. opts.Socket is required; opts.Addr is a client-only concept.
func StartServer(opts Opts) (Instance, error) {
	if opts.Socket == nil {
		return nil, transport.ErrMissingEndpoint
	}
	return transport.Start(transport.KindServer, opts)
}

// Command performs a synchronous call into inst's active handler, blocking
// until it replies, inst terminates, or ctx is done.
func Command(ctx context.Context, inst Instance, cmd any) (any, error) {
	if inst == nil {
		return nil, transport.ErrInvalid
	}
	return inst.Command(ctx, cmd)
}

// AddrInfo returns inst's recorded (local, peer) address pair.
func AddrInfo(inst Instance) (*transport.AddrInfo, error) {
	if inst == nil {
		return nil, transport.ErrInvalid
	}
	return inst.AddrInfo()
}

// Kill terminates inst from outside its own goroutine.
func Kill(inst Instance, reason error) {
	if inst == nil {
		return
	}
	inst.Kill(reason)
}

// MetricsSnapshot is re-exported so callers never need to import
// internal/transport directly.
type MetricsSnapshot = transport.MetricsSnapshot

// Metrics returns a point-in-time snapshot of the process-wide instance
// counters: active transports, swaps applied, and timers that have
// actually fired.
func Metrics() MetricsSnapshot {
	return transport.GlobalMetrics().Snapshot()
}
