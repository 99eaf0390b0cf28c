package proxy

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/backwire/internal/bridge"
	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
	"github.com/rs/zerolog/log"
)

// ErrRejected ends a connection the proxy cannot carry.
var ErrRejected = errors.New("proxy: connection rejected")

type Phase uint8

const (
	PhaseHandshake Phase = iota
	PhaseStatus
	PhaseLogin
	PhasePlay
)

func (p Phase) String() string {
	switch p {
	case PhaseHandshake:
		return "handshake"
	case PhaseStatus:
		return "status"
	case PhaseLogin:
		return "login"
	case PhasePlay:
		return "play"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Packet ids outside play are stable across every supported version.
const (
	handshakeID         int32 = 0x00
	loginEncryptionID   int32 = 0x01
	loginSuccessID      int32 = 0x02
	loginCompressionID  int32 = 0x03
	nextStateStatus     int32 = 1
	nextStateLogin      int32 = 2
	handshakeProtoField       = 0
	handshakeNextField        = 3
)

var (
	phaseKey   = conn.NewKey[Phase]("proxy.phase")
	clientKey  = conn.NewKey[*semver.Version]("proxy.client_version")
	handshakes = &pipeline.Descriptor{
		Direction: protocol.Serverbound,
		SourceID:  handshakeID,
		DestID:    handshakeID,
		Ops: []pipeline.Op{
			pipeline.Map(codec.VarInt), // protocol number
			pipeline.Map(codec.String), // server address
			pipeline.Map(codec.UShort), // server port
			pipeline.Map(codec.VarInt), // next state
		},
	}
)

// translator carries a connection through handshake and login untouched,
// apart from the handshake protocol number, then hands play packets to the
// bridge session.
type translator struct {
	engine      *bridge.Engine
	server      *semver.Version
	serverProto int32
	store       *conn.Store
	session     *bridge.Session
	final       Phase
}

func newTranslator(engine *bridge.Engine, server *semver.Version, serverProto int32) *translator {
	store := conn.NewStore()
	conn.Put(store, phaseKey, PhaseHandshake)
	return &translator{engine: engine, server: server, serverProto: serverProto, store: store}
}

// Phase is the current phase, or the last one once closed.
func (t *translator) Phase() Phase {
	if t.store.Closed() {
		return t.final
	}
	p, _ := conn.Get(t.store, phaseKey)
	return p
}

func (t *translator) Translate(dir protocol.Direction, p pipeline.Packet) ([]pipeline.Packet, error) {
	switch t.Phase() {
	case PhaseHandshake:
		return t.handshake(dir, p)
	case PhaseLogin:
		return t.login(dir, p)
	case PhasePlay:
		return t.session.Translate(dir, p)
	default:
		return []pipeline.Packet{p}, nil
	}
}

func (t *translator) Close() {
	t.final = t.Phase()
	if t.session != nil {
		t.session.Close()
		return
	}
	t.store.Close()
}

func (t *translator) handshake(dir protocol.Direction, p pipeline.Packet) ([]pipeline.Packet, error) {
	if dir != protocol.Serverbound || p.ID != handshakeID {
		return nil, fmt.Errorf("%w: %s packet 0x%02X before handshake", ErrRejected, dir, p.ID)
	}
	d := *handshakes
	d.Ops = append(append([]pipeline.Op(nil), handshakes.Ops...), pipeline.Handler(t.onHandshake))
	res, err := pipeline.Apply(&d, p.Body, t.store)
	if err != nil {
		return nil, err
	}
	return res.Packets, nil
}

func (t *translator) onHandshake(w *pipeline.Wrapper) error {
	proto, err := pipeline.Value[int32](w, handshakeProtoField)
	if err != nil {
		return err
	}
	next, err := pipeline.Value[int32](w, handshakeNextField)
	if err != nil {
		return err
	}
	switch next {
	case nextStateStatus:
		w.Stage(func(s *conn.Store) { conn.Put(s, phaseKey, PhaseStatus) })
		return nil
	case nextStateLogin:
	default:
		return fmt.Errorf("%w: handshake next state %d", ErrRejected, next)
	}

	client, err := t.engine.Version(proto)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	chain, err := t.engine.Chain(t.server, client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if err := w.Set(handshakeProtoField, t.serverProto); err != nil {
		return err
	}
	w.Stage(func(s *conn.Store) {
		conn.Put(s, clientKey, client)
		conn.Put(s, phaseKey, PhaseLogin)
		t.session = t.engine.NewSession(chain, s)
	})
	log.Info().
		Str("conn", t.store.ID().String()).
		Str("client", client.Original()).
		Str("server", t.server.Original()).
		Int("pairs", len(chain)).
		Msg("proxy.handshake accepted")
	return nil
}

func (t *translator) login(dir protocol.Direction, p pipeline.Packet) ([]pipeline.Packet, error) {
	if dir == protocol.Clientbound {
		switch p.ID {
		case loginCompressionID:
			return nil, fmt.Errorf("%w: server enabled compression", ErrRejected)
		case loginEncryptionID:
			return nil, fmt.Errorf("%w: server requested encryption", ErrRejected)
		case loginSuccessID:
			conn.Put(t.store, phaseKey, PhasePlay)
			log.Debug().Str("conn", t.store.ID().String()).Msg("proxy.login entering play")
		}
	}
	return []pipeline.Packet{p}, nil
}
