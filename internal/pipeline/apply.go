package pipeline

import (
	"errors"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/protocol"
)

// Run executes d against body. Store mutations staged by handlers are moved
// onto tx only when the packet succeeds and is not cancelled; the caller
// decides when tx commits.
func Run(d *Descriptor, body []byte, tx *conn.Tx) (Result, error) {
	w := newWrapper(d, body, tx.Store())
	for i, op := range d.Ops {
		if err := w.apply(op); err != nil {
			if errors.Is(err, protocol.ErrCancelled) {
				return Result{Cancelled: true}, nil
			}
			return Result{}, &protocol.TranscodeError{
				Direction: d.Direction,
				PacketID:  d.SourceID,
				Position:  i,
				Err:       err,
			}
		}
		if w.cancelled {
			return Result{Cancelled: true}, nil
		}
	}
	if w.r.Remaining() > 0 {
		w.out = append(w.out, output{raw: w.r.Rest()})
	}
	out, err := w.encode()
	if err != nil {
		return Result{}, &protocol.TranscodeError{
			Direction: d.Direction,
			PacketID:  d.SourceID,
			Position:  len(d.Ops),
			Err:       err,
		}
	}
	for _, fn := range w.staged {
		tx.Stage(fn)
	}
	packets := make([]Packet, 0, 1+len(w.emitted))
	packets = append(packets, Packet{ID: w.id, Body: out})
	packets = append(packets, w.emitted...)
	return Result{Packets: packets}, nil
}

// Apply runs d against body and commits its state changes to store.
func Apply(d *Descriptor, body []byte, store *conn.Store) (Result, error) {
	tx := store.Begin()
	res, err := Run(d, body, tx)
	if err != nil || res.Cancelled {
		tx.Discard()
		return res, err
	}
	tx.Commit()
	return res, nil
}
