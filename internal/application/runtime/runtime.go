package runtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/domain/events"
	"github.com/polichat/polichat/pkg/domain/graph"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

// EmitFunc receives every raw execution event in the exact order the
// runtime produces it.
type EmitFunc func(ev events.Event)

// Runtime executes a compiled graph definition against an initial
// state. Execution is single-path and strictly sequential: at any point
// exactly one node is current, and there is no intra-run parallelism.
type Runtime struct {
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// New creates a graph runtime.
func New(metrics ports.MetricsCollector, logger *zap.Logger) *Runtime {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Runtime{metrics: metrics, logger: logger}
}

// Run walks the definition from entry to finish along the single path
// selected by each conditional edge, merging every node's update into
// the running state. Raw events are emitted through emit in execution
// order: start, then any tokens, then end, per node. The initial state
// is validated before the first node runs; a node that returns an error
// (or panics) aborts the remaining path and the error is returned.
func (r *Runtime) Run(ctx context.Context, def *graph.Definition, initial state.State, emit EmitFunc) (state.State, error) {
	if emit == nil {
		emit = func(events.Event) {}
	}
	if err := initial.ValidateRequired(); err != nil {
		return nil, err
	}

	st := initial.Clone()
	current := def.Entry()
	started := time.Now()

	r.logger.Debug("run started",
		zap.String("graph", def.Name()),
		zap.String("entry", current))

	for {
		fn, ok := def.Node(current)
		if !ok {
			r.metrics.RunCompleted("failed", time.Since(started))
			return st, fmt.Errorf("graph %s: node %s: %w", def.Name(), current, graph.ErrNodeNotFound)
		}

		emit(events.Event{Kind: events.KindStart, Node: current})

		upd, err := r.execNode(ctx, current, fn, st, emit)
		if err != nil {
			r.logger.Error("node failed",
				zap.String("graph", def.Name()),
				zap.String("node", current),
				zap.Error(err))
			r.metrics.RunCompleted("failed", time.Since(started))
			return st, fmt.Errorf("node %s: %w", current, err)
		}

		st.Merge(upd)
		emit(events.Event{Kind: events.KindEnd, Node: current, Update: upd})

		if current == def.Finish() {
			break
		}

		// Routes are evaluated against the state as it exists
		// immediately after the predecessor node completed.
		next, err := def.Next(ctx, current, st)
		if err != nil {
			r.metrics.RunCompleted("failed", time.Since(started))
			return st, err
		}
		current = next
	}

	r.metrics.RunCompleted("completed", time.Since(started))
	r.logger.Debug("run completed",
		zap.String("graph", def.Name()),
		zap.Duration("duration", time.Since(started)))
	return st, nil
}

// execNode invokes one step function, forwarding its streamed tokens
// as token events. A panic inside a node is recovered and surfaced as
// an unhandled node error so the bridge can terminate the stream with
// an error payload instead of crashing the worker.
func (r *Runtime) execNode(ctx context.Context, name string, fn graph.NodeFunc, st state.State, emit EmitFunc) (upd state.Update, err error) {
	nodeStart := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		status := "completed"
		if err != nil {
			status = "failed"
		}
		r.metrics.NodeExecuted(name, status, time.Since(nodeStart))
	}()

	stream := func(token string) {
		if token == "" {
			return
		}
		r.metrics.TokenStreamed(name)
		emit(events.Event{Kind: events.KindToken, Node: name, Token: token})
	}

	return fn(ctx, st, stream)
}
