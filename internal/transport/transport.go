package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/helium/libp2p-streams/internal/addr"
	"github.com/helium/libp2p-streams/internal/codec"
	"github.com/helium/libp2p-streams/internal/logging"
)

// defaultDialTimeout is used when Opts.DialTimeout is zero.
const defaultDialTimeout = 15 * time.Second

// StreamHandlerFunc is the caller-supplied dialer failure callback,
// collapsed into a single closure rather than an addressable recipient.
type StreamHandlerFunc func(tag string, err error)

// Opts configures Start. Handler is always required; exactly one of
// Socket (listener path) or Addr (dialer path) must be set.
type Opts struct {
	Handler     Handler
	HandlerOpts map[string]any

	// Socket adopts an already-connected connection (listener path).
	Socket net.Conn

	// Addr resolves and dials a "/ip4/.../tcp/..." multiaddr (dialer path).
	Addr        string
	DialTimeout time.Duration

	// StreamHandler/Tag receive {stream_error, tag, {error, reason}} on a
	// dialer-path failure.
	StreamHandler StreamHandlerFunc
	Tag           string

	Clock    clock.Clock
	Config   *Config
	Registry *Registry
	Metrics  *Metrics
}

// SendErrorMsg is the HandleInfo payload delivered when the async sender
// reports a failed write.
type SendErrorMsg struct {
	Err error
}

func (m SendErrorMsg) String() string {
	return fmt.Sprintf("send_error(%v)", m.Err)
}

// TransportError wraps the underlying cause of a socket-level failure that
// terminated the instance.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ErrNoCommandHandler is returned to a command() caller when the active
// handler does not implement CommandHandler.
var ErrNoCommandHandler = errors.New("transport: handler does not implement HandleCommand")

type readResult struct {
	data []byte
	err  error
}

type commandCall struct {
	cmd   any
	reply chan commandOutcome
}

type timerFire struct {
	key string
	gen uint64
}

// Transport is a per-connection, single-threaded cooperative actor: all
// state mutation happens on one goroutine (run), selecting over socket
// reads, commands, timer fires, injected info messages, and sender
// errors.
type Transport struct {
	id   uuid.UUID
	kind Kind

	mod         Handler
	modState    any
	initOpts    map[string]any
	packetSpec  codec.PacketSpec
	packetSpecSet bool
	active      ActiveMode
	buffer      []byte

	conn net.Conn
	snd  *sender

	timers   map[string]*clock.Timer
	timerGen map[string]uint64

	nextTokenID   uint64
	pendingTokens map[uint64]chan commandOutcome

	clock    clock.Clock
	cfg      *Config
	registry *Registry
	metrics  *Metrics
	logger   *logging.Component

	readInFlight bool
	readReqCh    chan struct{}
	readResultCh chan readResult

	cmdCh       chan commandCall
	infoCh      chan any
	timerFireCh chan timerFire
	senderErrCh chan sendError
	killCh      chan error

	stopOnce   sync.Once
	stopCh     chan struct{}
	stopReason error
	doneCh     chan struct{}
	group      errgroup.Group
}

// Start spawns a new Transport instance. opts.Handler and exactly one of
// opts.Socket/opts.Addr are required.
func Start(kind Kind, opts Opts) (*Transport, error) {
	if opts.Handler == nil {
		return nil, ErrMissingHandler
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	reg := opts.Registry
	if reg == nil {
		reg = Global()
	}
	met := opts.Metrics
	if met == nil {
		met = GlobalMetrics()
	}

	conn, addrInfo, err := resolveEndpoint(kind, opts)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		id:            uuid.New(),
		kind:          kind,
		mod:           opts.Handler,
		initOpts:      opts.HandlerOpts,
		conn:          conn,
		clock:         clk,
		cfg:           cfg,
		registry:      reg,
		metrics:       met,
		logger:        logging.Logger("transport"),
		timers:        make(map[string]*clock.Timer),
		timerGen:      make(map[string]uint64),
		pendingTokens: make(map[uint64]chan commandOutcome),
		cmdCh:         make(chan commandCall),
		infoCh:        make(chan any, 16),
		timerFireCh:   make(chan timerFire, 16),
		senderErrCh:   make(chan sendError, 16),
		killCh:        make(chan error, 1),
		readReqCh:     make(chan struct{}, 1),
		readResultCh:  make(chan readResult, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	if addrInfo != nil {
		t.registry.SetAddrInfo(t.id, addrInfo)
	}

	t.snd = newSender(writeFunc(conn), t.senderErrCh)
	t.snd.start()
	t.metrics.incActiveTransports()

	// The reader and actor goroutines are joined through an errgroup
	// rather than two bare `go` statements so Done() only fires once both
	// have actually returned, not just once the actor has decided to stop.
	t.group.Go(func() error { t.readerLoop(); return nil })
	t.group.Go(func() error { t.run(); return nil })
	go func() {
		_ = t.group.Wait()
		close(t.doneCh)
	}()

	return t, nil
}

// resolveEndpoint implements the listener-path/dialer-path branch of
// Start, including the dialer's error classification.
func resolveEndpoint(kind Kind, opts Opts) (net.Conn, *AddrInfo, error) {
	switch {
	case opts.Socket != nil:
		info := addrInfoFromConn(opts.Socket)
		return opts.Socket, info, nil

	case opts.Addr != "":
		parsed, err := addr.Parse(opts.Addr)
		if err != nil {
			notifyDialFailure(opts, err)
			return nil, nil, err
		}

		timeout := opts.DialTimeout
		if timeout == 0 {
			timeout = defaultDialTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		dialer := &net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", parsed.NetAddr().String())
		if err != nil {
			wrapped := &DialError{Addr: opts.Addr, Reason: classifyDialErr(err)}
			notifyDialFailure(opts, wrapped)
			return nil, nil, wrapped
		}

		return conn, addrInfoFromConn(conn), nil

	default:
		return nil, nil, ErrMissingEndpoint
	}
}

// writeFunc adapts net.Conn's (n int, err error) Write to the sender's
// func([]byte) error shape.
func writeFunc(conn net.Conn) func([]byte) error {
	return func(data []byte) error {
		_, err := conn.Write(data)
		return err
	}
}

func addrInfoFromConn(conn net.Conn) *AddrInfo {
	info := &AddrInfo{}
	if local, err := addr.FromNetAddr(conn.LocalAddr()); err == nil {
		info.Local = local
	}
	if peer, err := addr.FromNetAddr(conn.RemoteAddr()); err == nil {
		info.Peer = peer
	}
	return info
}

func notifyDialFailure(opts Opts, err error) {
	if opts.StreamHandler != nil {
		opts.StreamHandler(opts.Tag, err)
	}
}

// classifyDialErr maps a net.Dialer error onto the recognized dialer
// failure set: econnrefused, timeout, or a generic error.
func classifyDialErr(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return ErrConnRefused
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrDialTimeout
	}
	return err
}

func moduleID(h Handler) string {
	rt := reflect.TypeOf(h)
	if rt == nil {
		return "<nil>"
	}
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.String()
}

// ════════════════════════════════════════════════════════════════════════
//                              reader goroutine
// ════════════════════════════════════════════════════════════════════════

func (t *Transport) readerLoop() {
	buf := make([]byte, t.cfg.ReadBufferSize)
	for {
		select {
		case <-t.readReqCh:
		case <-t.stopCh:
			return
		}

		n, err := t.conn.Read(buf)
		var data []byte
		if n > 0 {
			data = make([]byte, n)
			copy(data, buf[:n])
		}

		select {
		case t.readResultCh <- readResult{data: data, err: err}:
		case <-t.stopCh:
			return
		}
		if err != nil {
			return
		}
	}
}

func (t *Transport) maybeRequestRead() {
	if t.readInFlight || t.active == ActiveFalse {
		return
	}
	t.readInFlight = true
	select {
	case t.readReqCh <- struct{}{}:
	default:
	}
}

// ════════════════════════════════════════════════════════════════════════
//                              main actor loop
// ════════════════════════════════════════════════════════════════════════

func (t *Transport) run() {
	defer t.finish()

	ir := t.mod.Init(t.kind, t.initOpts)
	t.modState = ir.State
	t.registry.AppendStack(t.id, moduleID(t.mod), t.kind)
	if !t.runActions(ir.Actions) {
		return
	}
	if ir.Stop {
		t.initiateStop(ir.Reason)
		return
	}

	t.maybeRequestRead()

	for {
		select {
		case <-t.stopCh:
			return

		case reason := <-t.killCh:
			if reason == nil {
				reason = ErrNormal
			}
			t.initiateStop(reason)
			return

		case rr := <-t.readResultCh:
			t.readInFlight = false
			if rr.err != nil {
				t.initiateStop(&TransportError{Err: rr.err})
				return
			}
			t.buffer = append(t.buffer, rr.data...)

		case call := <-t.cmdCh:
			if !t.handleCommand(call) {
				return
			}

		case tf := <-t.timerFireCh:
			if !t.handleTimerFire(tf) {
				return
			}

		case im := <-t.infoCh:
			if !t.deliverInfo(im) {
				return
			}

		case se := <-t.senderErrCh:
			if !t.deliverInfo(SendErrorMsg{Err: se.err}) {
				return
			}
		}

		if !t.dispatchLoop() {
			return
		}
		t.maybeRequestRead()
	}
}

// dispatchLoop repeatedly decodes and dispatches complete frames from the
// buffer while a packet spec is installed and active mode permits it.
func (t *Transport) dispatchLoop() bool {
	for t.packetSpecSet && t.active != ActiveFalse {
		res, more, err := codec.Decode(t.packetSpec, t.buffer)
		if err != nil {
			t.initiateStop(fmt.Errorf("protocol error: %w", err))
			return false
		}
		if more != nil {
			return true
		}

		t.buffer = res.Tail
		if t.active == ActiveOnce {
			t.active = ActiveFalse
		}

		cr := t.mod.HandlePacket(t.kind, res.HeaderLengths, res.Payload, t.modState)
		if !t.applyCallback(cr) {
			return false
		}
	}
	return true
}

func (t *Transport) deliverInfo(msg any) bool {
	ih, ok := t.mod.(InfoHandler)
	if !ok {
		t.logger.Warn("handle_info unimplemented, dropping message", "msg", fmt.Sprintf("%v", msg))
		return true
	}
	cr := ih.HandleInfo(t.kind, msg, t.modState)
	return t.applyCallback(cr)
}

func (t *Transport) handleCommand(call commandCall) bool {
	ch, ok := t.mod.(CommandHandler)
	if !ok {
		call.reply <- commandOutcome{err: ErrNoCommandHandler}
		return true
	}

	token := t.parkToken(call.reply)
	cr := ch.HandleCommand(t.kind, call.cmd, token, t.modState)
	t.modState = cr.State

	if cr.HasReply {
		t.resolveToken(token.id, commandOutcome{value: cr.Reply})
	}

	if !t.runActions(cr.Actions) {
		return false
	}
	if cr.Stop {
		t.initiateStop(cr.Reason)
		return false
	}
	return true
}

func (t *Transport) handleTimerFire(tf timerFire) bool {
	if gen, ok := t.timerGen[tf.key]; !ok || gen != tf.gen {
		return true // late/cancelled firing: suppressed
	}
	delete(t.timers, tf.key)
	delete(t.timerGen, tf.key)
	t.metrics.incTimerFires()
	return t.deliverInfo(TimeoutMsg{Key: tf.key})
}

// applyCallback implements the common {noreply|stop, state[, actions]}
// handling shared by HandlePacket/HandleInfo results.
func (t *Transport) applyCallback(cr CallbackResult) bool {
	t.modState = cr.State
	if !t.runActions(cr.Actions) {
		return false
	}
	if cr.Stop {
		t.initiateStop(cr.Reason)
		return false
	}
	return true
}

// ════════════════════════════════════════════════════════════════════════
//                              action interpreter
// ════════════════════════════════════════════════════════════════════════

// runActions applies actions in order, returning false if a swap's Init
// call requested termination (in which case initiateStop has already been
// called and the caller must stop processing and return from run()).
func (t *Transport) runActions(actions []Action) bool {
	for _, a := range actions {
		switch act := a.(type) {
		case SendAction:
			t.doSend(act.Data)
		case PacketSpecAction:
			t.doPacketSpec(act.Spec)
		case ActiveAction:
			t.doActive(act.Mode)
		case ReplyAction:
			t.resolveToken(act.Token.id, commandOutcome{value: act.Value})
		case TimerAction:
			t.doTimer(act.Key, act.Millis)
		case CancelTimerAction:
			t.doCancelTimer(act.Key)
		case SendFnAction:
			t.doSendFn(act.SendFn)
		case SwapAction:
			if !t.doSwap(act) {
				return false
			}
		case SwapKindAction:
			t.doSwapKind()
		default:
			t.logger.Warn("unknown action, ignoring", "type", fmt.Sprintf("%T", a))
		}
	}
	return true
}

func (t *Transport) doSend(data []byte) {
	if t.snd == nil {
		t.logger.Warn("send with no async sender installed, dropping bytes", "n", len(data))
		return
	}
	t.snd.enqueue(data)
}

func (t *Transport) doPacketSpec(spec codec.PacketSpec) {
	if t.packetSpecSet && t.packetSpec.Equal(spec) {
		return
	}
	t.packetSpec = spec
	t.packetSpecSet = true
}

func (t *Transport) doActive(mode ActiveMode) {
	if t.active == mode {
		return
	}
	t.active = mode
}

func (t *Transport) doTimer(key string, millis int64) {
	if existing, ok := t.timers[key]; ok {
		existing.Stop()
	}
	t.timerGen[key]++
	gen := t.timerGen[key]

	d := time.Duration(millis) * time.Millisecond
	timer := t.clock.AfterFunc(d, func() {
		select {
		case t.timerFireCh <- timerFire{key: key, gen: gen}:
		case <-t.stopCh:
		}
	})
	t.timers[key] = timer
}

func (t *Transport) doCancelTimer(key string) {
	if tm, ok := t.timers[key]; ok {
		tm.Stop()
		delete(t.timers, key)
	}
	delete(t.timerGen, key)
}

func (t *Transport) doSendFn(fn func([]byte) error) {
	old := t.snd
	next := newSender(fn, t.senderErrCh)

	if old != nil {
		ack := old.stop()
		select {
		case <-ack:
		case <-t.clock.After(t.cfg.ShutdownGrace):
			t.logger.Warn("replaced sender did not ack stop within grace period")
		}
	}

	t.snd = next
	next.start()
}

func (t *Transport) doSwap(act SwapAction) bool {
	t.mod = act.Module
	t.registry.AppendStack(t.id, moduleID(act.Module), t.kind)
	t.metrics.incSwaps()

	ir := act.Module.Init(t.kind, act.Opts)
	t.modState = ir.State

	if !t.runActions(ir.Actions) {
		return false
	}
	if ir.Stop {
		t.initiateStop(ir.Reason)
		return false
	}
	return true
}

func (t *Transport) doSwapKind() {
	t.kind = t.kind.Other()
	t.registry.SwapKind(t.id, t.kind)
}

// ════════════════════════════════════════════════════════════════════════
//                              command tokens
// ════════════════════════════════════════════════════════════════════════

func (t *Transport) parkToken(replyCh chan commandOutcome) CommandToken {
	t.nextTokenID++
	id := t.nextTokenID
	t.pendingTokens[id] = replyCh
	return CommandToken{id: id, replyCh: replyCh}
}

func (t *Transport) resolveToken(id uint64, outcome commandOutcome) {
	ch, ok := t.pendingTokens[id]
	if !ok {
		return // already resolved, or a token from a prior instance: idempotent no-op
	}
	delete(t.pendingTokens, id)
	ch <- outcome
}

// ════════════════════════════════════════════════════════════════════════
//                              shutdown
// ════════════════════════════════════════════════════════════════════════

func (t *Transport) initiateStop(reason error) {
	if t.stopReason == nil {
		t.stopReason = reason
	}
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *Transport) finish() {
	if t.snd != nil {
		ack := t.snd.stop()
		select {
		case <-ack:
		case <-t.clock.After(t.cfg.ShutdownGrace):
			t.logger.Warn("async sender did not ack stop within grace period")
		}
	}

	if term, ok := t.mod.(Terminator); ok {
		term.Terminate(t.kind, t.stopReason, t.modState)
	}

	if t.conn != nil {
		_ = t.conn.Close()
	}

	for id, ch := range t.pendingTokens {
		ch <- commandOutcome{err: ErrClosed}
		delete(t.pendingTokens, id)
	}

	for key, tm := range t.timers {
		tm.Stop()
		delete(t.timers, key)
	}

	t.registry.Forget(t.id)
	t.metrics.decActiveTransports()
}

// ════════════════════════════════════════════════════════════════════════
//                              exported API
// ════════════════════════════════════════════════════════════════════════

// ID returns the instance's metadata registry key.
func (t *Transport) ID() uuid.UUID { return t.id }

// Command performs a synchronous call into the active handler's
// HandleCommand, blocking until a reply is produced (immediately, or
// later via a ReplyAction against the parked token), the instance
// terminates, or ctx is done. Pass context.Background() for an
// infinite wait; callers needing a deadline set one on ctx themselves.
func (t *Transport) Command(ctx context.Context, cmd any) (any, error) {
	replyCh := make(chan commandOutcome, 1)

	select {
	case t.cmdCh <- commandCall{cmd: cmd, reply: replyCh}:
	case <-t.doneCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-replyCh:
		return out.value, out.err
	case <-t.doneCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendInfo injects an arbitrary message into the instance's handle_info
// path, for owner-driven events outside the packet/timer/command paths.
func (t *Transport) SendInfo(msg any) error {
	select {
	case t.infoCh <- msg:
		return nil
	case <-t.doneCh:
		return ErrClosed
	}
}

// AddrInfo returns the instance's recorded (local, peer) address pair.
// Returns ErrClosed once the instance has terminated.
func (t *Transport) AddrInfo() (*AddrInfo, error) {
	select {
	case <-t.doneCh:
		return nil, ErrClosed
	default:
	}
	info := t.registry.AddrInfoFor(t.id)
	if info == nil {
		return nil, ErrClosed
	}
	return info, nil
}

// Kill terminates the instance from outside its own goroutine. A nil
// reason is recorded as ErrNormal.
func (t *Transport) Kill(reason error) {
	select {
	case t.killCh <- reason:
	case <-t.doneCh:
	}
}

// Done returns a channel closed once the instance has fully terminated
// (sender stopped/timed out, handler Terminate invoked, socket closed).
func (t *Transport) Done() <-chan struct{} {
	return t.doneCh
}

// Err returns the reason the instance terminated, or nil if it is still
// running.
func (t *Transport) Err() error {
	select {
	case <-t.doneCh:
		return t.stopReason
	default:
		return nil
	}
}
