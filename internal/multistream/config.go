// Package multistream implements the stream runtime's multistream-select
// negotiator: a two-state transport.Handler that performs the
// "/multistream/1.0.0" handshake, walks a configured handler table, and
// swaps itself out for the winning protocol module.
package multistream

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helium/libp2p-streams/internal/transport"
)

// ConfigKey is the opts map key start() callers must use to pass a Config
// into Negotiator.Init.
const ConfigKey = "multistream_config"

// HandlerSpec is one entry in the negotiator's handler table: a protocol
// prefix paired with the module to swap in once that prefix is selected.
type HandlerSpec struct {
	Prefix string
	Module transport.Handler
	Opts   map[string]any
}

// Config configures one Negotiator instance.
type Config struct {
	Handlers []HandlerSpec

	// ClientTimeoutMin/Max bound the randomized client-side handshake
	// timeout.
	ClientTimeoutMin time.Duration
	ClientTimeoutMax time.Duration

	// ServerTimeout bounds the server-side negotiate_timeout.
	ServerTimeout time.Duration

	// PeerKey, when non-empty, is the key this negotiator uses to consult
	// and update Cache with its last successfully negotiated handler for
	// a given peer, so a client reconnecting to the same peer tries that
	// handler first instead of always restarting from index 1.
	PeerKey string
	Cache   *lru.Cache[string, int]
}

// DefaultConfig returns the reference timeouts with handlers installed.
func DefaultConfig(handlers []HandlerSpec) Config {
	return Config{
		Handlers:         handlers,
		ClientTimeoutMin: 15 * time.Second,
		ClientTimeoutMax: 35 * time.Second,
		ServerTimeout:    30 * time.Second,
	}
}

// NewCache constructs the bounded per-peer protocol-selection cache named
// in the domain stack: a hashicorp/golang-lru/v2 cache replacing a
// hand-rolled half-clear eviction map.
func NewCache(size int) (*lru.Cache[string, int], error) {
	return lru.New[string, int](size)
}
