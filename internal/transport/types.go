// Package transport implements the stream runtime's per-connection actor,
// its paired async sender, and the metadata registry. A Transport owns a
// single net.Conn (a TCP connection or muxed sub-stream), frames it per a
// configurable PacketSpec, and drives a pluggable Handler through an
// action/callback contract.
package transport

import "fmt"

// Kind tracks a transport instance's connection role. Mutable only through
// the SwapKindAction.
type Kind int

const (
	KindClient Kind = iota
	KindServer
)

func (k Kind) String() string {
	if k == KindServer {
		return "server"
	}
	return "client"
}

// Other returns the opposite role, used by SwapKindAction.
func (k Kind) Other() Kind {
	if k == KindClient {
		return KindServer
	}
	return KindClient
}

// ActiveMode is the tri-valued flow-control setting: true pulls bytes
// continuously, false is quiescent, once arms exactly one delivery before
// reverting to false.
type ActiveMode int

const (
	ActiveFalse ActiveMode = iota
	ActiveTrue
	ActiveOnce
)

func (m ActiveMode) String() string {
	switch m {
	case ActiveTrue:
		return "true"
	case ActiveOnce:
		return "once"
	default:
		return "false"
	}
}

// CommandToken is the opaque caller handle a handler's ReplyAction
// consumes to release a command() call parked with a noreply result. Its
// fields are unexported: handlers pass it through unmodified between
// HandleCommand and a later ReplyAction.
type CommandToken struct {
	id      uint64
	replyCh chan commandOutcome
}

type commandOutcome struct {
	value any
	err   error
}

// InitResult is a Handler's Init return value: {ok, state} | {ok, state,
// actions} | {stop, reason} | {stop, reason, state, actions}.
type InitResult struct {
	State   any
	Actions []Action
	Stop    bool
	Reason  error
}

// Ok builds a non-stopping InitResult.
func Ok(state any, actions ...Action) InitResult {
	return InitResult{State: state, Actions: actions}
}

// InitStop builds a stopping InitResult.
func InitStop(reason error, state any, actions ...Action) InitResult {
	return InitResult{State: state, Actions: actions, Stop: true, Reason: reason}
}

// CallbackResult is the return shape shared by HandlePacket, HandleInfo,
// and HandleCommand: {noreply, state} | {noreply, state, actions} |
// {stop, reason, state} | {stop, reason, state, actions}, with
// HandleCommand additionally permitting {reply, value, state[, actions]}.
type CallbackResult struct {
	State    any
	Actions  []Action
	Stop     bool
	Reason   error
	HasReply bool
	Reply    any
}

// NoReply builds a non-stopping, non-replying CallbackResult.
func NoReply(state any, actions ...Action) CallbackResult {
	return CallbackResult{State: state, Actions: actions}
}

// Stop builds a stopping CallbackResult.
func Stop(reason error, state any, actions ...Action) CallbackResult {
	return CallbackResult{State: state, Actions: actions, Stop: true, Reason: reason}
}

// Reply builds a command-only CallbackResult that releases the caller
// immediately with value.
func Reply(value any, state any, actions ...Action) CallbackResult {
	return CallbackResult{State: state, Actions: actions, HasReply: true, Reply: value}
}

// Handler is the pluggable upper-layer protocol module a Transport drives.
// Init and HandlePacket are required; HandleInfo, HandleCommand, and
// Terminate are optional and detected via the narrow interfaces below.
// Their absence is harmless: an info message for a handler without
// HandleInfo is dropped with a warning, a command() call against a handler
// without HandleCommand fails with ErrNoCommandHandler, and an
// unimplemented Terminate is a silent no-op.
type Handler interface {
	Init(kind Kind, opts map[string]any) InitResult
	HandlePacket(kind Kind, header []uint64, payload []byte, state any) CallbackResult
}

// InfoHandler is implemented by handlers that react to handle_info
// messages (timer fires, owner-injected info).
type InfoHandler interface {
	HandleInfo(kind Kind, msg any, state any) CallbackResult
}

// CommandHandler is implemented by handlers that answer command() calls.
type CommandHandler interface {
	HandleCommand(kind Kind, cmd any, token CommandToken, state any) CallbackResult
}

// Terminator is implemented by handlers with cleanup to run once the
// transport has begun shutting down, after the async sender has stopped
// (or the grace period elapsed) and before the socket is closed.
type Terminator interface {
	Terminate(kind Kind, reason error, state any)
}

// TimeoutMsg is the handle_info payload delivered when a timer scheduled
// by TimerAction fires and has not been cancelled in the interim.
type TimeoutMsg struct {
	Key string
}

func (t TimeoutMsg) String() string {
	return fmt.Sprintf("timeout(%s)", t.Key)
}
