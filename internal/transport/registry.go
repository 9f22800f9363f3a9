package transport

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/helium/libp2p-streams/internal/addr"
)

// StackEntry records one (module, kind) pair in an instance's protocol
// stack, appended on every swap and amended in place on swap_kind.
type StackEntry struct {
	ModuleID string
	Kind     Kind
}

// AddrInfo is the (local, peer) address pair recorded once on connect/adopt.
type AddrInfo struct {
	Local *addr.Addr
	Peer  *addr.Addr
}

// snapshot is the immutable value behind each instance's atomic.Value.
// Every write copies, mutates, and swaps in a fresh snapshot, the same
// copy-on-write atomic.Value technique the example corpus uses for
// streamWrapper's protocol field, so reads never block on the owning
// transport goroutine's writes.
type snapshot struct {
	stack    []StackEntry
	addrInfo *AddrInfo
}

// Registry is the process-local key/value store backing introspection: an
// instance_id-keyed map read by third parties (protocol stack, peer
// address), written only by the owning transport goroutine.
type Registry struct {
	entries sync.Map // uuid.UUID -> *atomic.Value holding *snapshot
}

// globalRegistry is the process-wide registry every Transport registers
// itself into by default.
var globalRegistry = NewRegistry()

// NewRegistry constructs an empty registry. Exported for tests that want an
// isolated registry rather than the process-wide default.
func NewRegistry() *Registry {
	return &Registry{}
}

// Global returns the process-wide metadata registry.
func Global() *Registry {
	return globalRegistry
}

func (r *Registry) valueFor(id uuid.UUID) *atomic.Value {
	v, ok := r.entries.Load(id)
	if !ok {
		fresh := &atomic.Value{}
		fresh.Store(&snapshot{})
		actual, _ := r.entries.LoadOrStore(id, fresh)
		return actual.(*atomic.Value)
	}
	return v.(*atomic.Value)
}

func (r *Registry) load(id uuid.UUID) *snapshot {
	v, ok := r.entries.Load(id)
	if !ok {
		return &snapshot{}
	}
	return v.(*atomic.Value).Load().(*snapshot)
}

// AppendStack appends one (module, kind) entry to id's protocol stack.
func (r *Registry) AppendStack(id uuid.UUID, moduleID string, kind Kind) {
	av := r.valueFor(id)
	cur := av.Load().(*snapshot)
	next := &snapshot{
		stack:    append(append([]StackEntry{}, cur.stack...), StackEntry{ModuleID: moduleID, Kind: kind}),
		addrInfo: cur.addrInfo,
	}
	av.Store(next)
}

// SwapKind rewrites the Kind of every stack entry recorded so far, matching
// swap_kind's "update metadata stack" effect.
func (r *Registry) SwapKind(id uuid.UUID, newKind Kind) {
	av := r.valueFor(id)
	cur := av.Load().(*snapshot)
	rewritten := make([]StackEntry, len(cur.stack))
	for i, e := range cur.stack {
		rewritten[i] = StackEntry{ModuleID: e.ModuleID, Kind: newKind}
	}
	av.Store(&snapshot{stack: rewritten, addrInfo: cur.addrInfo})
}

// SetAddrInfo records the (local, peer) address pair, set once on
// connect/adopt.
func (r *Registry) SetAddrInfo(id uuid.UUID, info *AddrInfo) {
	av := r.valueFor(id)
	cur := av.Load().(*snapshot)
	av.Store(&snapshot{stack: cur.stack, addrInfo: info})
}

// Stack returns a copy of id's recorded protocol stack.
func (r *Registry) Stack(id uuid.UUID) []StackEntry {
	s := r.load(id)
	out := make([]StackEntry, len(s.stack))
	copy(out, s.stack)
	return out
}

// AddrInfoFor returns id's recorded address pair, or nil if unset.
func (r *Registry) AddrInfoFor(id uuid.UUID) *AddrInfo {
	return r.load(id).addrInfo
}

// Forget removes id's entry entirely, called once the owning transport
// terminates.
func (r *Registry) Forget(id uuid.UUID) {
	r.entries.Delete(id)
}
