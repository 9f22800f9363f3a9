package multistream

import (
	"math/rand"
	"strings"
	"time"

	"github.com/helium/libp2p-streams/internal/codec"
	"github.com/helium/libp2p-streams/internal/transport"
)

const (
	protocolHeader       = "/multistream/1.0.0"
	handshakeTimeoutKey  = "handshake_timeout"
	negotiateTimeoutKey  = "negotiate_timeout"
	listRequest          = "ls"
	notAvailableResponse = "na"
)

var varintSpec = codec.PacketSpec{codec.LenVarint}

type fsmPhase int

const (
	phaseHandshake fsmPhase = iota
	phaseNegotiate
)

// state is the Negotiator's handler state threaded through every callback.
type state struct {
	cfg      Config
	phase    fsmPhase
	order    []HandlerSpec // cfg.Handlers, possibly reordered by the peer cache
	selected int           // 1-based cursor into order, meaningful client-side only
}

// Negotiator is a stateless transport.Handler: all per-instance state lives
// in *state, threaded through Init/HandlePacket/HandleInfo's return values.
type Negotiator struct{}

func (Negotiator) Init(kind transport.Kind, opts map[string]any) transport.InitResult {
	cfg, ok := opts[ConfigKey].(Config)
	if !ok || len(cfg.Handlers) == 0 {
		return transport.InitStop(transport.ErrMissingHandlers, nil)
	}

	order := cfg.Handlers
	if kind == transport.KindClient {
		if idx, ok := cachedIndex(cfg); ok {
			order = preferIndex(cfg.Handlers, idx)
		}
	}

	st := &state{cfg: cfg, phase: phaseHandshake, order: order}

	header, err := codec.EncodeLine([]byte(protocolHeader))
	if err != nil {
		return transport.InitStop(err, st)
	}

	actions := []transport.Action{
		transport.PacketSpecAction{Spec: varintSpec},
		transport.ActiveAction{Mode: transport.ActiveOnce},
		transport.SendAction{Data: header},
	}

	if kind == transport.KindClient {
		d := jitter(cfg.ClientTimeoutMin, cfg.ClientTimeoutMax)
		actions = append(actions, transport.TimerAction{Key: handshakeTimeoutKey, Millis: d.Milliseconds()})
	} else {
		actions = append(actions, transport.TimerAction{Key: negotiateTimeoutKey, Millis: cfg.ServerTimeout.Milliseconds()})
	}

	return transport.Ok(st, actions...)
}

func (Negotiator) HandlePacket(kind transport.Kind, header []uint64, payload []byte, raw any) transport.CallbackResult {
	s := raw.(*state)

	// The transport's [varint] packet spec has already stripped the outer
	// frame; payload is the line itself (still newline-terminated).
	line, err := codec.ParseLine(payload)
	if err != nil {
		return transport.Stop(err, s)
	}

	switch s.phase {
	case phaseHandshake:
		return handshake(kind, s, line)
	case phaseNegotiate:
		if kind == transport.KindClient {
			return negotiateClient(s, line)
		}
		return negotiateServer(s, line)
	default:
		return transport.Stop(transport.ErrNormal, s)
	}
}

func (Negotiator) HandleInfo(kind transport.Kind, msg any, raw any) transport.CallbackResult {
	s := raw.(*state)

	tm, ok := msg.(transport.TimeoutMsg)
	if !ok {
		return transport.NoReply(s)
	}

	switch tm.Key {
	case handshakeTimeoutKey:
		return transport.Stop(transport.ErrHandshakeTimeout, s)
	case negotiateTimeoutKey:
		return transport.Stop(transport.ErrNegotiateTimeout, s)
	default:
		return transport.NoReply(s)
	}
}

func handshake(kind transport.Kind, s *state, line []byte) transport.CallbackResult {
	if string(line) != protocolHeader {
		return transport.Stop(transport.ErrNormal, s)
	}

	if kind != transport.KindClient {
		s.phase = phaseNegotiate
		return transport.NoReply(s, transport.ActiveAction{Mode: transport.ActiveOnce})
	}

	s.phase = phaseNegotiate
	s.selected = 1

	prefixLine, err := codec.EncodeLine([]byte(s.order[0].Prefix))
	if err != nil {
		return transport.Stop(err, s)
	}

	return transport.NoReply(s,
		transport.CancelTimerAction{Key: handshakeTimeoutKey},
		transport.SendAction{Data: prefixLine},
		transport.ActiveAction{Mode: transport.ActiveOnce},
	)
}

func negotiateClient(s *state, line []byte) transport.CallbackResult {
	current := s.order[s.selected-1]

	switch {
	case string(line) == notAvailableResponse:
		s.selected++
		if s.selected > len(s.order) {
			return transport.Stop(transport.ErrNoHandlers, s)
		}
		next, err := codec.EncodeLine([]byte(s.order[s.selected-1].Prefix))
		if err != nil {
			return transport.Stop(err, s)
		}
		return transport.NoReply(s,
			transport.SendAction{Data: next},
			transport.ActiveAction{Mode: transport.ActiveOnce},
		)

	case string(line) == current.Prefix:
		rememberChoice(s.cfg, current)
		return transport.NoReply(s, transport.SwapAction{Module: current.Module, Opts: current.Opts})

	default:
		return transport.Stop(&transport.UnexpectedServerResponseError{Line: string(line)}, s)
	}
}

func negotiateServer(s *state, line []byte) transport.CallbackResult {
	str := string(line)

	if str == listRequest {
		lines := make([][]byte, len(s.order))
		for i, h := range s.order {
			lines[i] = []byte(h.Prefix)
		}
		reply, err := codec.EncodeLines(lines)
		if err != nil {
			return transport.Stop(err, s)
		}
		return transport.NoReply(s,
			transport.SendAction{Data: reply},
			transport.ActiveAction{Mode: transport.ActiveOnce},
		)
	}

	for _, h := range s.order {
		if !strings.HasPrefix(str, h.Prefix) {
			continue
		}

		echo, err := codec.EncodeLine(line)
		if err != nil {
			return transport.Stop(err, s)
		}

		opts := h.Opts
		if remainder := strings.TrimPrefix(str, h.Prefix); remainder != "" {
			opts = withPath(opts, remainder)
		}

		return transport.NoReply(s,
			transport.SendAction{Data: echo},
			transport.CancelTimerAction{Key: negotiateTimeoutKey},
			transport.SwapAction{Module: h.Module, Opts: opts},
		)
	}

	na, err := codec.EncodeLine([]byte(notAvailableResponse))
	if err != nil {
		return transport.Stop(err, s)
	}
	return transport.NoReply(s,
		transport.SendAction{Data: na},
		transport.ActiveAction{Mode: transport.ActiveOnce},
	)
}

func withPath(opts map[string]any, path string) map[string]any {
	merged := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		merged[k] = v
	}
	merged["path"] = path
	return merged
}

func cachedIndex(cfg Config) (int, bool) {
	if cfg.Cache == nil || cfg.PeerKey == "" {
		return 0, false
	}
	idx, ok := cfg.Cache.Get(cfg.PeerKey)
	if !ok || idx < 0 || idx >= len(cfg.Handlers) {
		return 0, false
	}
	return idx, true
}

func rememberChoice(cfg Config, chosen HandlerSpec) {
	if cfg.Cache == nil || cfg.PeerKey == "" {
		return
	}
	for i, h := range cfg.Handlers {
		if h.Prefix == chosen.Prefix {
			cfg.Cache.Add(cfg.PeerKey, i)
			return
		}
	}
}

func preferIndex(handlers []HandlerSpec, idx int) []HandlerSpec {
	reordered := make([]HandlerSpec, 0, len(handlers))
	reordered = append(reordered, handlers[idx])
	for i, h := range handlers {
		if i != idx {
			reordered = append(reordered, h)
		}
	}
	return reordered
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
