// Package v1011to1010 lets 1.10 clients join 1.11 servers. Only window
// handling differs: shulker boxes open as plain containers and the open
// window is remembered per connection.
package v1011to1010

import (
	"github.com/danmuck/backwire/internal/mappings"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocols"
)

const (
	Newer = "1.11"
	Older = "1.10"
)

type Protocol struct {
	*protocols.Base
	windows *windowTracker
}

func New() (*Protocol, error) {
	newer, err := mappings.Load(Newer)
	if err != nil {
		return nil, err
	}
	older, err := mappings.Load(Older)
	if err != nil {
		return nil, err
	}
	data, err := mappings.LoadPair(Newer, Older)
	if err != nil {
		return nil, err
	}
	p := &Protocol{windows: newWindowTracker(data.WindowTypes)}

	b := pipeline.NewBuilder(Newer + "->" + Older)
	b.Clientbound(
		newer.MustPacketID(protocol.Clientbound, "open_window"),
		older.MustPacketID(protocol.Clientbound, "open_window"),
		p.windows.open()...,
	)
	b.Clientbound(
		newer.MustPacketID(protocol.Clientbound, "close_window"),
		older.MustPacketID(protocol.Clientbound, "close_window"),
		p.windows.close()...,
	)
	b.Serverbound(
		older.MustPacketID(protocol.Serverbound, "close_window"),
		newer.MustPacketID(protocol.Serverbound, "close_window"),
		p.windows.close()...,
	)
	if err := protocols.RemapByName(b, newer, older, data); err != nil {
		return nil, err
	}
	reg, err := b.Build()
	if err != nil {
		return nil, err
	}
	base, err := protocols.NewBase(newer, older, reg, p.windows.init)
	if err != nil {
		return nil, err
	}
	p.Base = base
	return p, nil
}
