package streams_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	streams "github.com/helium/libp2p-streams"
	"github.com/helium/libp2p-streams/internal/codec"
	"github.com/helium/libp2p-streams/internal/transport"
)

// echoHandler frames with [u16] and answers "ping" commands with "pong". A
// server-role instance echoes every packet's payload back; a client-role
// instance does not echo, and sends greeting from Init (after setting up
// framing) if set, so a single loopback pair can exercise the whole
// dispatch/send/echo path.
type echoHandler struct {
	greeting []byte
	received chan []byte
}

func (h *echoHandler) Init(kind transport.Kind, opts map[string]any) transport.InitResult {
	actions := []transport.Action{
		transport.PacketSpecAction{Spec: codec.PacketSpec{codec.LenU16}},
		transport.ActiveAction{Mode: transport.ActiveTrue},
	}
	if kind == transport.KindClient && h.greeting != nil {
		actions = append(actions, transport.SendAction{Data: encode(h.greeting)})
	}
	return transport.Ok(nil, actions...)
}

func (h *echoHandler) HandlePacket(kind transport.Kind, header []uint64, payload []byte, state any) transport.CallbackResult {
	if h.received != nil {
		select {
		case h.received <- append([]byte{}, payload...):
		default:
		}
	}
	if kind == transport.KindClient {
		// Already got our echo back; don't echo-of-an-echo forever.
		return transport.NoReply(nil)
	}
	return transport.NoReply(nil, transport.SendAction{Data: encode(payload)})
}

func (h *echoHandler) HandleCommand(kind transport.Kind, cmd any, token transport.CommandToken, state any) transport.CallbackResult {
	if cmd == "ping" {
		return transport.Reply("pong", nil)
	}
	return transport.Reply(nil, nil)
}

func encode(payload []byte) []byte {
	out, _ := codec.Encode(codec.PacketSpec{codec.LenU16}, []uint64{uint64(len(payload))}, payload)
	return out
}

func TestStartServerRequiresSocket(t *testing.T) {
	_, err := streams.StartServer(streams.Opts{Handler: &echoHandler{}})
	require.ErrorIs(t, err, streams.ErrMissingEndpoint)
}

func TestCommandAgainstNilInstance(t *testing.T) {
	_, err := streams.Command(context.Background(), nil, "ping")
	require.ErrorIs(t, err, streams.ErrInvalid)
}

func TestAddrInfoAgainstNilInstance(t *testing.T) {
	_, err := streams.AddrInfo(nil)
	require.ErrorIs(t, err, streams.ErrInvalid)
}

func TestPingCommand(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	srv, err := streams.StartServer(streams.Opts{Handler: &echoHandler{}, Socket: serverConn})
	require.NoError(t, err)
	defer streams.Kill(srv, nil)

	cli, err := streams.StartClient(streams.Opts{Handler: &echoHandler{}, Socket: clientConn})
	require.NoError(t, err)
	defer streams.Kill(cli, nil)

	reply, err := streams.Command(context.Background(), cli, "ping")
	require.NoError(t, err)
	require.Equal(t, "pong", reply)
}

func TestEchoOverPipe(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	serverReceived := make(chan []byte, 1)
	clientReceived := make(chan []byte, 1)

	srv, err := streams.StartServer(streams.Opts{
		Handler: &echoHandler{received: serverReceived},
		Socket:  serverConn,
	})
	require.NoError(t, err)
	defer streams.Kill(srv, nil)

	cli, err := streams.StartClient(streams.Opts{
		Handler: &echoHandler{greeting: []byte("hello"), received: clientReceived},
		Socket:  clientConn,
	})
	require.NoError(t, err)
	defer streams.Kill(cli, nil)

	select {
	case got := <-serverReceived:
		require.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the client's greeting")
	}

	select {
	case got := <-clientReceived:
		require.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("client never received its echo back")
	}

	info, err := streams.AddrInfo(cli)
	require.NoError(t, err)
	require.NotNil(t, info)
}

func TestMetricsCountsActiveInstances(t *testing.T) {
	metrics := transport.NewMetrics()
	clientConn, serverConn := net.Pipe()

	srv, err := streams.StartServer(streams.Opts{
		Handler: &echoHandler{},
		Socket:  serverConn,
		Metrics: metrics,
	})
	require.NoError(t, err)

	cli, err := streams.StartClient(streams.Opts{
		Handler: &echoHandler{},
		Socket:  clientConn,
		Metrics: metrics,
	})
	require.NoError(t, err)

	require.Equal(t, int64(2), metrics.Snapshot().ActiveTransports)

	streams.Kill(srv, nil)
	streams.Kill(cli, nil)
	<-srv.Done()
	<-cli.Done()

	require.Equal(t, int64(0), metrics.Snapshot().ActiveTransports)
}
