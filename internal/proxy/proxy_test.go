package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/backwire/internal/bridge"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
	"github.com/danmuck/backwire/internal/protocol/frame"
	"github.com/danmuck/backwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

const (
	proto1194 = 762
	proto1193 = 761
)

func handshake(proto, next int32) frame.Frame {
	w := codec.NewWriter()
	w.VarInt(proto)
	w.Text("localhost")
	w.Uint16(25565)
	w.VarInt(next)
	return frame.Frame{ID: handshakeID, Body: w.Bytes()}
}

// startProxy runs a proxy for a 1.19.4 upstream. accept receives each
// upstream-side connection.
func startProxy(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	up, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = up.Close() })
	accepted := make(chan net.Conn, 1)
	go func() {
		for {
			c, err := up.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()

	engine, err := bridge.NewDefaultEngine(bridge.Options{})
	require.NoError(t, err)
	p, err := New(engine, Config{Upstream: up.Addr().String(), ServerVersion: "1.19.4", Worker: bridge.DefaultWorkerOptions()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String(), accepted
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
	return c
}

func upstreamConn(t *testing.T, accepted <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case c := <-accepted:
		t.Cleanup(func() { _ = c.Close() })
		require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("upstream never accepted")
		return nil
	}
}

func TestProxyTranslatesPlayPackets(t *testing.T) {
	testlog.Start(t)
	addr, accepted := startProxy(t)
	limits := frame.DefaultLimits()

	client := dial(t, addr)
	require.NoError(t, frame.WriteFrame(client, handshake(proto1193, nextStateLogin), limits))
	server := upstreamConn(t, accepted)

	got, err := frame.ReadFrame(server, limits)
	require.NoError(t, err)
	require.Equal(t, handshake(proto1194, nextStateLogin), got)

	require.NoError(t, frame.WriteFrame(server, frame.Frame{ID: loginSuccessID, Body: []byte{1, 2, 3}}, limits))
	got, err = frame.ReadFrame(client, limits)
	require.NoError(t, err)
	require.Equal(t, frame.Frame{ID: loginSuccessID, Body: []byte{1, 2, 3}}, got)

	hurt := codec.NewWriter()
	hurt.VarInt(5)
	hurt.Float32(90)
	require.NoError(t, frame.WriteFrame(server, frame.Frame{ID: 0x21, Body: hurt.Bytes()}, limits))
	got, err = frame.ReadFrame(client, limits)
	require.NoError(t, err)
	require.Equal(t, frame.Frame{ID: 0x03, Body: []byte{5, 1}}, got)
}

func TestProxyRejectsCompression(t *testing.T) {
	testlog.Start(t)
	addr, accepted := startProxy(t)
	limits := frame.DefaultLimits()

	client := dial(t, addr)
	require.NoError(t, frame.WriteFrame(client, handshake(proto1193, nextStateLogin), limits))
	server := upstreamConn(t, accepted)
	_, err := frame.ReadFrame(server, limits)
	require.NoError(t, err)

	require.NoError(t, frame.WriteFrame(server, frame.Frame{ID: loginCompressionID, Body: []byte{0x80, 0x02}}, limits))
	_, err = frame.ReadFrame(client, limits)
	require.Error(t, err)
}

func TestProxyRejectsUnknownClientVersion(t *testing.T) {
	testlog.Start(t)
	addr, accepted := startProxy(t)
	limits := frame.DefaultLimits()

	client := dial(t, addr)
	require.NoError(t, frame.WriteFrame(client, handshake(4, nextStateLogin), limits))
	server := upstreamConn(t, accepted)
	_, err := frame.ReadFrame(server, limits)
	require.Error(t, err)
	_, err = frame.ReadFrame(client, limits)
	require.Error(t, err)
}

func TestTranslatorStatusPassesThrough(t *testing.T) {
	testlog.Start(t)
	engine, err := bridge.NewDefaultEngine(bridge.Options{})
	require.NoError(t, err)
	v, err := engine.Version(proto1194)
	require.NoError(t, err)
	tr := newTranslator(engine, v, proto1194)
	defer tr.Close()

	hs := handshake(999, nextStateStatus)
	out, err := tr.Translate(protocol.Serverbound, pipeline.Packet{ID: hs.ID, Body: hs.Body})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, hs.Body, out[0].Body)
	require.Equal(t, PhaseStatus, tr.Phase())
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	testlog.Start(t)
	b := Backoff{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	require.Equal(t, 10*time.Millisecond, b.Delay(1, nil))
	require.Equal(t, 20*time.Millisecond, b.Delay(2, nil))
	require.Equal(t, 40*time.Millisecond, b.Delay(3, nil))
	require.Equal(t, 50*time.Millisecond, b.Delay(6, nil))

	b.Jitter = true
	require.Equal(t, 10*time.Millisecond, b.Delay(2, nil))
}

func TestDialUpstreamRetriesThenFails(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	engine, err := bridge.NewDefaultEngine(bridge.Options{})
	require.NoError(t, err)
	p, err := New(engine, Config{
		Upstream:      addr,
		ServerVersion: "1.19.4",
		DialAttempts:  3,
		Backoff:       Backoff{InitialDelay: time.Millisecond, Multiplier: 1},
	})
	require.NoError(t, err)
	_, err = p.dialUpstream(context.Background())
	require.Error(t, err)
}
