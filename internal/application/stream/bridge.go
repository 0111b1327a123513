package stream

import (
	"context"

	"go.uber.org/zap"

	"github.com/polichat/polichat/internal/application/runtime"
	"github.com/polichat/polichat/pkg/domain/events"
	"github.com/polichat/polichat/pkg/domain/graph"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

// Bridge connects an asynchronous graph execution to a synchronous
// consumer. Each Run spawns one worker goroutine that drives the
// runtime, formats raw events into payloads, and pushes them onto a
// buffered FIFO channel the consumer drains with Next.
type Bridge struct {
	runtime   *runtime.Runtime
	formatter Formatter
	metrics   ports.MetricsCollector
	logger    *zap.Logger
	buffer    int
}

// NewBridge creates a bridge. buffer bounds how far the producer may
// run ahead of the consumer; values below 1 fall back to a default.
func NewBridge(rt *runtime.Runtime, metrics ports.MetricsCollector, logger *zap.Logger, buffer int) *Bridge {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if buffer < 1 {
		buffer = 64
	}
	return &Bridge{runtime: rt, metrics: metrics, logger: logger, buffer: buffer}
}

// Stream is the consumer side of one execution. Payloads arrive in the
// order the runtime produced their source events. The last payload is
// always exactly one end frame, after which Next reports exhaustion.
type Stream struct {
	ch     chan events.Payload
	cancel context.CancelFunc
}

// Next blocks until the next payload is available. ok is false once the
// stream is exhausted; after the end payload no further payloads are
// delivered.
func (s *Stream) Next() (events.Payload, bool) {
	p, ok := <-s.ch
	return p, ok
}

// Close abandons the stream. The worker observes the cancellation at
// its next channel send or node boundary and winds down; Close never
// blocks on in-flight work.
func (s *Stream) Close() {
	s.cancel()
	// Drain so the worker's pending sends cannot block forever.
	go func() {
		for range s.ch {
		}
	}()
}

// Run starts one graph execution and returns its payload stream
// immediately. Termination is deterministic: whether the run completes,
// fails, or the context is cancelled, the consumer sees at most one
// error payload, then exactly one end payload, then channel close.
func (b *Bridge) Run(ctx context.Context, def *graph.Definition, initial state.State) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ch:     make(chan events.Payload, b.buffer),
		cancel: cancel,
	}

	graphName := def.Name()
	b.metrics.RunStarted(graphName)
	b.metrics.IncActiveStreams()

	go func() {
		defer close(s.ch)
		defer cancel()
		defer b.metrics.DecActiveStreams()

		emit := func(ev events.Event) {
			for _, p := range b.formatter.Format(ev, initial) {
				b.push(ctx, s.ch, p)
			}
		}

		_, err := b.runtime.Run(ctx, def, initial, emit)
		if err != nil {
			b.logger.Warn("stream run failed",
				zap.String("graph", graphName),
				zap.Error(err))
			b.push(ctx, s.ch, events.Errorf("%v", err))
		}
		// The end frame is sent unconditionally, even after
		// cancellation, so a consumer that is still reading always
		// observes the terminal frame.
		s.ch <- events.End()
	}()

	return s
}

// push delivers one payload unless the consumer has gone away.
func (b *Bridge) push(ctx context.Context, ch chan<- events.Payload, p events.Payload) {
	select {
	case ch <- p:
		b.metrics.PayloadEmitted(p.Type)
	case <-ctx.Done():
	}
}
