package protocols

import (
	"testing"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/mappings"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestRemapByName(t *testing.T) {
	testlog.Start(t)
	newer, err := mappings.Load("1.19.4")
	require.NoError(t, err)
	older, err := mappings.Load("1.19.3")
	require.NoError(t, err)
	pair, err := mappings.LoadPair("1.19.4", "1.19.3")
	require.NoError(t, err)

	b := pipeline.NewBuilder("remap")
	require.NoError(t, RemapByName(b, newer, older, pair))
	reg, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, len(newer.Packets.Clientbound)+len(older.Packets.Serverbound), reg.Len())

	d, ok := reg.Lookup(protocol.Clientbound, newer.MustPacketID(protocol.Clientbound, "keep_alive"))
	require.True(t, ok)
	require.Equal(t, older.MustPacketID(protocol.Clientbound, "keep_alive"), d.DestID)
	require.Empty(t, d.Ops)

	d, ok = reg.Lookup(protocol.Clientbound, newer.MustPacketID(protocol.Clientbound, "hit_animation"))
	require.True(t, ok)
	require.Equal(t, older.MustPacketID(protocol.Clientbound, "entity_animation"), d.DestID)

	d, ok = reg.Lookup(protocol.Clientbound, 0x00)
	require.True(t, ok)
	res, err := pipeline.Apply(d, nil, conn.NewStore())
	require.NoError(t, err)
	require.True(t, res.Cancelled, "bundle delimiter has no older equivalent")
}

func TestRemapByNameReportsGaps(t *testing.T) {
	testlog.Start(t)
	newer, err := mappings.Load("1.19.4")
	require.NoError(t, err)
	older, err := mappings.Load("1.19.3")
	require.NoError(t, err)

	err = RemapByName(pipeline.NewBuilder("gaps"), newer, older, &mappings.Pair{From: "1.19.4", To: "1.19.3"})
	require.ErrorIs(t, err, ErrUnmappedPacket)
}
