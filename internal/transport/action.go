package transport

import "github.com/helium/libp2p-streams/internal/codec"

// Action is a closed sum type: a declarative instruction returned by a
// handler callback and interpreted by the transport's action interpreter.
// The Go type system closes the set at compile time for this module's own
// handlers; runActions still keeps a default branch (see transport.go) in
// case a handler built against a future action set reaches the
// interpreter through a loosely-typed integration point.
type Action interface {
	actionMarker()
}

// SendAction enqueues data to the async sender. If no sender is installed
// the bytes are dropped with a warning rather than silently lost.
type SendAction struct {
	Data []byte
}

// SwapAction replaces the running handler in place. The new handler's
// Init(kind, opts) runs immediately as part of applying this action; its
// own actions are then applied (possibly chaining further swaps) before
// control returns to whatever action follows Swap in the original batch.
type SwapAction struct {
	Module Handler
	Opts   map[string]any
}

// PacketSpecAction installs a new framing spec. If it differs from the
// current one, the transport re-attempts decoding the existing buffer
// under the new spec before accepting further socket bytes.
type PacketSpecAction struct {
	Spec codec.PacketSpec
}

// ActiveAction changes the active-mode flow control setting.
type ActiveAction struct {
	Mode ActiveMode
}

// ReplyAction releases a caller parked by a noreply CommandHandler result.
type ReplyAction struct {
	Token CommandToken
	Value any
}

// TimerAction (re)schedules a keyed timer. Re-issuing an existing key
// cancels the prior timer and replaces it.
type TimerAction struct {
	Key    string
	Millis int64
}

// CancelTimerAction cancels a keyed timer; a no-op if the key is unknown.
type CancelTimerAction struct {
	Key string
}

// SendFnAction replaces the async sender. Any existing sender is drained
// and stopped before the replacement, spawned over SendFn, takes over.
type SendFnAction struct {
	SendFn func([]byte) error
}

// SwapKindAction toggles the transport's Kind between client and server
// and updates the metadata registry's recorded stack accordingly.
type SwapKindAction struct{}

func (SendAction) actionMarker()       {}
func (SwapAction) actionMarker()       {}
func (PacketSpecAction) actionMarker() {}
func (ActiveAction) actionMarker()     {}
func (ReplyAction) actionMarker()      {}
func (TimerAction) actionMarker()      {}
func (CancelTimerAction) actionMarker() {}
func (SendFnAction) actionMarker()     {}
func (SwapKindAction) actionMarker()   {}
