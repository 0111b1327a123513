package graph

import (
	"context"
	"fmt"

	"github.com/polichat/polichat/pkg/domain/state"
)

// StreamFunc surfaces intermediate text fragments (generation tokens)
// produced by a node before its final result is ready.
type StreamFunc func(token string)

// NodeFunc is a single named step: a function from the current state to
// a partial state update. Nodes report external-call failures by
// returning a safe fallback update; a returned error aborts the run.
type NodeFunc func(ctx context.Context, st state.State, stream StreamFunc) (state.Update, error)

// Predicate selects one of the declared route labels of a conditional
// edge by inspecting the state as it exists after the source node ran.
type Predicate func(ctx context.Context, st state.State) string

// Route is a conditional edge: a predicate plus the label → target
// mapping it may select from.
type Route struct {
	Predicate Predicate
	Targets   map[string]string
}

// Definition is an immutable compiled graph: named nodes, plain edges
// and conditional routes, with one entry and one finish node. Compiled
// definitions are stateless and safe to share across concurrent runs.
type Definition struct {
	name   string
	nodes  map[string]NodeFunc
	edges  map[string]string
	routes map[string]Route
	entry  string
	finish string
}

func (d *Definition) Name() string   { return d.name }
func (d *Definition) Entry() string  { return d.entry }
func (d *Definition) Finish() string { return d.finish }

// Node returns the step function registered under name.
func (d *Definition) Node(name string) (NodeFunc, bool) {
	fn, ok := d.nodes[name]
	return fn, ok
}

// Next resolves the node that follows from. For a conditional edge the
// predicate is evaluated against the current state and must return one
// of its declared labels.
func (d *Definition) Next(ctx context.Context, from string, st state.State) (string, error) {
	if route, ok := d.routes[from]; ok {
		label := route.Predicate(ctx, st)
		target, ok := route.Targets[label]
		if !ok {
			return "", fmt.Errorf("node %s: label %q: %w", from, label, ErrUnknownRouteLabel)
		}
		return target, nil
	}
	if to, ok := d.edges[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("node %s: %w", from, ErrDeadEnd)
}

// Builder assembles a Definition. It is not safe for concurrent use;
// the compiled Definition is.
type Builder struct {
	def *Definition
	err error
}

// NewBuilder creates a graph builder for a named pipeline.
func NewBuilder(name string) *Builder {
	return &Builder{def: &Definition{
		name:   name,
		nodes:  make(map[string]NodeFunc),
		edges:  make(map[string]string),
		routes: make(map[string]Route),
	}}
}

// AddNode registers a named step function.
func (b *Builder) AddNode(name string, fn NodeFunc) *Builder {
	if b.err != nil {
		return b
	}
	if fn == nil {
		b.err = fmt.Errorf("node %s: %w", name, ErrNilNode)
		return b
	}
	if _, exists := b.def.nodes[name]; exists {
		b.err = fmt.Errorf("node %s: %w", name, ErrDuplicateNode)
		return b
	}
	b.def.nodes[name] = fn
	return b
}

// AddEdge registers an unconditional edge from one node to another.
func (b *Builder) AddEdge(from, to string) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.def.edges[from]; exists {
		b.err = fmt.Errorf("edge %s->%s: %w", from, to, ErrDuplicateEdge)
		return b
	}
	if _, exists := b.def.routes[from]; exists {
		b.err = fmt.Errorf("edge %s->%s: %w", from, to, ErrDuplicateEdge)
		return b
	}
	b.def.edges[from] = to
	return b
}

// AddConditionalEdges registers a conditional edge: the predicate is
// evaluated at runtime and must return one of the targets' labels.
func (b *Builder) AddConditionalEdges(from string, pred Predicate, targets map[string]string) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.def.edges[from]; exists {
		b.err = fmt.Errorf("conditional edge from %s: %w", from, ErrDuplicateEdge)
		return b
	}
	if _, exists := b.def.routes[from]; exists {
		b.err = fmt.Errorf("conditional edge from %s: %w", from, ErrDuplicateEdge)
		return b
	}
	copied := make(map[string]string, len(targets))
	for label, target := range targets {
		copied[label] = target
	}
	b.def.routes[from] = Route{Predicate: pred, Targets: copied}
	return b
}

// SetEntryPoint designates the node every run starts at.
func (b *Builder) SetEntryPoint(name string) *Builder {
	if b.err == nil {
		b.def.entry = name
	}
	return b
}

// SetFinishPoint designates the terminal node.
func (b *Builder) SetFinishPoint(name string) *Builder {
	if b.err == nil {
		b.def.finish = name
	}
	return b
}

// Compile validates the assembled graph and returns the immutable
// definition: entry and finish must exist, every edge endpoint must
// name a registered node, and every node must be reachable from entry.
func (b *Builder) Compile() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := b.def
	if d.entry == "" {
		return nil, fmt.Errorf("graph %s: %w", d.name, ErrNoEntryPoint)
	}
	if d.finish == "" {
		return nil, fmt.Errorf("graph %s: %w", d.name, ErrNoFinishPoint)
	}
	if _, ok := d.nodes[d.entry]; !ok {
		return nil, fmt.Errorf("graph %s: entry %s: %w", d.name, d.entry, ErrEntryNodeNotFound)
	}
	if _, ok := d.nodes[d.finish]; !ok {
		return nil, fmt.Errorf("graph %s: finish %s: %w", d.name, d.finish, ErrFinishNodeNotFound)
	}
	for from, to := range d.edges {
		if err := d.checkEndpoints(from, to); err != nil {
			return nil, fmt.Errorf("graph %s: %w", d.name, err)
		}
	}
	for from, route := range d.routes {
		for _, target := range route.Targets {
			if err := d.checkEndpoints(from, target); err != nil {
				return nil, fmt.Errorf("graph %s: %w", d.name, err)
			}
		}
	}
	if err := d.checkReachability(); err != nil {
		return nil, fmt.Errorf("graph %s: %w", d.name, err)
	}
	return d, nil
}

func (d *Definition) checkEndpoints(from, to string) error {
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("edge source %s: %w", from, ErrNodeNotFound)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("edge target %s: %w", to, ErrNodeNotFound)
	}
	return nil
}

func (d *Definition) checkReachability() error {
	seen := map[string]bool{d.entry: true}
	frontier := []string{d.entry}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		var targets []string
		if to, ok := d.edges[current]; ok {
			targets = append(targets, to)
		}
		if route, ok := d.routes[current]; ok {
			for _, target := range route.Targets {
				targets = append(targets, target)
			}
		}
		for _, target := range targets {
			if !seen[target] {
				seen[target] = true
				frontier = append(frontier, target)
			}
		}
	}
	for name := range d.nodes {
		if !seen[name] {
			return fmt.Errorf("node %s: %w", name, ErrUnreachableNode)
		}
	}
	return nil
}
