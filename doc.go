// Package streams is the facade over the protocol-agnostic stream
// runtime: a per-connection transport actor (internal/transport) driven by
// a pluggable, hot-swappable handler, and the multistream-select
// negotiator (internal/multistream) that rides on top of it to pick a
// protocol and swap itself out.
//
// StartClient/StartServer start a transport instance; Command, AddrInfo
// and Kill are the operations available against a running instance.
// Nothing here does more than validate arguments and delegate to
// internal/transport, where the behavior lives.
package streams
