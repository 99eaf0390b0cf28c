package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrWorkerStopped = errors.New("bridge: worker stopped")

// Translator is what a Worker drives. *Session implements it; the proxy
// wraps a Session to handle the phases before play.
type Translator interface {
	Translate(dir protocol.Direction, p pipeline.Packet) ([]pipeline.Packet, error)
	Close()
}

// Sink receives translated packets in order. An error from Sink stops the
// worker.
type Sink func(dir protocol.Direction, p pipeline.Packet) error

// Job is one packet queued for translation.
type Job struct {
	Direction protocol.Direction
	Packet    pipeline.Packet
}

type WorkerOptions struct {
	Buffer int
	// FailFast stops the worker on the first translation error instead of
	// dropping the packet.
	FailFast bool
	// Fatal reports whether err stops the worker even without FailFast.
	Fatal func(error) bool
	// OnError observes failed packets.
	OnError func(Job, error)
}

func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{Buffer: 64}
}

// Worker translates one connection's packets in arrival order on a single
// goroutine.
type Worker struct {
	tr   Translator
	sink Sink
	opts WorkerOptions
	jobs chan Job
	done chan struct{}
	err  error
}

func NewWorker(tr Translator, sink Sink, opts WorkerOptions) *Worker {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultWorkerOptions().Buffer
	}
	return &Worker{
		tr:   tr,
		sink: sink,
		opts: opts,
		jobs: make(chan Job, opts.Buffer),
		done: make(chan struct{}),
	}
}

// Submit queues a packet. It blocks while the queue is full.
func (w *Worker) Submit(ctx context.Context, dir protocol.Direction, p pipeline.Packet) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.jobs <- Job{Direction: dir, Packet: p}:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err is the reason Run stopped; valid after Done is closed.
func (w *Worker) Err() error {
	<-w.done
	return w.err
}

// Run consumes jobs until ctx is cancelled, the sink fails or, with
// FailFast, a packet fails to translate. The translator is closed on return.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.tr.Close()

	for {
		select {
		case <-ctx.Done():
			w.err = ctx.Err()
			log.Debug().Err(w.err).Msg("bridge.Worker stopping")
			return w.err
		case job := <-w.jobs:
			if err := w.handle(job); err != nil {
				w.err = err
				return err
			}
		}
	}
}

func (w *Worker) handle(job Job) error {
	start := time.Now()
	out, err := w.tr.Translate(job.Direction, job.Packet)
	if err != nil {
		if w.opts.OnError != nil {
			w.opts.OnError(job, err)
		}
		if w.opts.FailFast || (w.opts.Fatal != nil && w.opts.Fatal(err)) {
			return err
		}
		log.Warn().
			Stringer("direction", job.Direction).
			Int32("packet_id", job.Packet.ID).
			Err(err).
			Msg("bridge.Worker packet dropped")
		return nil
	}
	for _, p := range out {
		if err := w.sink(job.Direction, p); err != nil {
			return err
		}
	}
	log.Trace().
		Stringer("direction", job.Direction).
		Int32("packet_id", job.Packet.ID).
		Int("out", len(out)).
		Dur("duration", time.Since(start)).
		Msg("bridge.Worker translated")
	return nil
}
