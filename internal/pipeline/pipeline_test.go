package pipeline

import (
	"errors"
	"testing"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
	"github.com/danmuck/backwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

var lastSeen = conn.NewKey[int32]("last_seen")

func body(fn func(w *codec.Writer)) []byte {
	w := codec.NewWriter()
	fn(w)
	return w.Bytes()
}

func TestApplyMapReadCreate(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{
		Direction: protocol.Clientbound,
		SourceID:  0x21,
		DestID:    0x03,
		Ops: []Op{
			Map(codec.VarInt),
			Read(codec.Float),
			Create(codec.UByte, uint8(1)),
		},
	}
	src := body(func(w *codec.Writer) {
		w.VarInt(300)
		w.Float32(12.5)
	})
	res, err := Apply(d, src, conn.NewStore())
	require.NoError(t, err)
	require.False(t, res.Cancelled)
	require.Len(t, res.Packets, 1)
	require.Equal(t, int32(0x03), res.Packets[0].ID)
	want := body(func(w *codec.Writer) {
		w.VarInt(300)
		w.Uint8(1)
	})
	require.Equal(t, want, res.Packets[0].Body)
}

func TestPassthroughIsIdentity(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{
		Direction: protocol.Clientbound,
		Ops: []Op{
			Map(codec.VarInt),
			Map(codec.String),
			Map(codec.Long),
			Map(codec.Bool),
		},
	}
	src := body(func(w *codec.Writer) {
		w.VarInt(-1)
		w.Text("minecraft:overworld")
		w.Int64(-42)
		w.Bool(true)
	})
	res, err := Apply(d, src, conn.NewStore())
	require.NoError(t, err)
	require.Equal(t, src, res.Packets[0].Body)
}

func TestTrailingBytesAreCopied(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{Ops: []Op{Map(codec.VarInt)}}
	src := body(func(w *codec.Writer) {
		w.VarInt(5)
		w.Raw([]byte{0xde, 0xad, 0xbe, 0xef})
	})
	res, err := Apply(d, src, conn.NewStore())
	require.NoError(t, err)
	require.Equal(t, src, res.Packets[0].Body)
}

func TestMapToWidens(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{Ops: []Op{MapTo(codec.VarInt, codec.Int)}}
	res, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(7) }), conn.NewStore())
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 7}, res.Packets[0].Body)
}

func TestHandlerRewritesMappedField(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{Ops: []Op{
		Map(codec.String),
		Handler(func(w *Wrapper) error {
			v, err := Value[string](w, 0)
			if err != nil {
				return err
			}
			if v == "minecraft:shulker_box" {
				return w.Set(0, "minecraft:container")
			}
			return nil
		}),
	}}
	res, err := Apply(d, body(func(w *codec.Writer) { w.Text("minecraft:shulker_box") }), conn.NewStore())
	require.NoError(t, err)
	require.Equal(t, body(func(w *codec.Writer) { w.Text("minecraft:container") }), res.Packets[0].Body)
}

func TestSetOnReadFieldFails(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{Ops: []Op{
		Read(codec.VarInt),
		Handler(func(w *Wrapper) error { return w.Set(0, int32(1)) }),
	}}
	_, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(3) }), conn.NewStore())
	require.ErrorIs(t, err, ErrNotMapped)
	require.ErrorIs(t, err, protocol.ErrTranscode)
}

func TestValueReportsMissingAndMistyped(t *testing.T) {
	testlog.Start(t)
	d := &Descriptor{Ops: []Op{
		Map(codec.VarInt),
		Handler(func(w *Wrapper) error {
			_, err := Value[string](w, 0)
			return err
		}),
	}}
	_, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(3) }), conn.NewStore())
	require.ErrorIs(t, err, ErrFieldType)

	d = &Descriptor{Ops: []Op{Handler(func(w *Wrapper) error {
		_, err := Value[int32](w, 4)
		return err
	})}}
	_, err = Apply(d, nil, conn.NewStore())
	require.ErrorIs(t, err, ErrMissingField)
}

func TestDecodeFailureLeavesStoreUntouched(t *testing.T) {
	testlog.Start(t)
	store := conn.NewStore()
	d := &Descriptor{
		Direction: protocol.Clientbound,
		SourceID:  0x41,
		Ops: []Op{
			Map(codec.VarInt),
			Handler(func(w *Wrapper) error {
				id, err := Value[int32](w, 0)
				if err != nil {
					return err
				}
				w.Stage(func(s *conn.Store) { conn.Put(s, lastSeen, id) })
				return nil
			}),
			Map(codec.Long),
		},
	}
	_, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(9); w.Raw([]byte{1, 2}) }), store)
	require.Error(t, err)

	var te *protocol.TranscodeError
	require.True(t, errors.As(err, &te))
	require.Equal(t, 2, te.Position)
	require.Equal(t, int32(0x41), te.PacketID)
	require.ErrorIs(t, err, protocol.ErrMalformedField)
	require.False(t, conn.Has(store, lastSeen))
}

func TestCancelDropsOutputAndStagedState(t *testing.T) {
	testlog.Start(t)
	store := conn.NewStore()
	d := &Descriptor{Ops: []Op{
		Map(codec.VarInt),
		Handler(func(w *Wrapper) error {
			w.Stage(func(s *conn.Store) { conn.Put(s, lastSeen, 1) })
			w.Emit(0x52, []byte{0xff})
			w.Cancel()
			return nil
		}),
		Handler(func(w *Wrapper) error {
			t.Fatalf("operations after cancel must not run")
			return nil
		}),
	}}
	res, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(1) }), store)
	require.NoError(t, err)
	require.True(t, res.Cancelled)
	require.Empty(t, res.Packets)
	require.False(t, conn.Has(store, lastSeen))
}

func TestHandlerReturningErrCancelledCancels(t *testing.T) {
	testlog.Start(t)
	store := conn.NewStore()
	d := &Descriptor{Ops: []Op{
		Map(codec.VarInt),
		Handler(func(w *Wrapper) error {
			w.Stage(func(s *conn.Store) { conn.Put(s, lastSeen, 1) })
			return protocol.ErrCancelled
		}),
	}}
	res, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(1) }), store)
	require.NoError(t, err)
	require.True(t, res.Cancelled)
	require.False(t, conn.Has(store, lastSeen))
}

func TestSuccessCommitsStagedStateAndEmits(t *testing.T) {
	testlog.Start(t)
	store := conn.NewStore()
	d := &Descriptor{DestID: 0x01, Ops: []Op{
		Map(codec.VarInt),
		Handler(func(w *Wrapper) error {
			id, _ := Value[int32](w, 0)
			if conn.Has(w.Store(), lastSeen) {
				t.Fatalf("staged state must not be visible before commit")
			}
			w.Stage(func(s *conn.Store) { conn.Put(s, lastSeen, id) })
			w.Emit(0x4E, []byte{0xff})
			return nil
		}),
	}}
	res, err := Apply(d, body(func(w *codec.Writer) { w.VarInt(11) }), store)
	require.NoError(t, err)
	require.Len(t, res.Packets, 2)
	require.Equal(t, int32(0x01), res.Packets[0].ID)
	require.Equal(t, Packet{ID: 0x4E, Body: []byte{0xff}}, res.Packets[1])
	v, ok := conn.Get(store, lastSeen)
	require.True(t, ok)
	require.Equal(t, int32(11), v)
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	testlog.Start(t)
	_, err := NewBuilder("test").
		Clientbound(0x01, 0x00, Map(codec.VarInt)).
		Clientbound(0x01, 0x02).
		Build()
	require.ErrorIs(t, err, ErrDuplicateDescriptor)

	reg, err := NewBuilder("test").
		Clientbound(0x01, 0x00).
		Serverbound(0x01, 0x01).
		Build()
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())
	d, ok := reg.Lookup(protocol.Serverbound, 0x01)
	require.True(t, ok)
	require.Equal(t, int32(0x01), d.DestID)
}

func TestRegistryTranslateUnknown(t *testing.T) {
	testlog.Start(t)
	reg, err := NewBuilder("test").Clientbound(0x01, 0x00).Build()
	require.NoError(t, err)
	p := Packet{ID: 0x7F, Body: []byte{1, 2, 3}}

	res, err := reg.Translate(protocol.Clientbound, p, conn.NewStore().Begin(), false)
	require.NoError(t, err)
	require.Equal(t, []Packet{p}, res.Packets)

	_, err = reg.Translate(protocol.Clientbound, p, conn.NewStore().Begin(), true)
	require.ErrorIs(t, err, protocol.ErrUnknownPacketID)
}
