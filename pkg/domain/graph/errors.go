package graph

import "errors"

var (
	ErrNoEntryPoint       = errors.New("no entry point specified")
	ErrNoFinishPoint      = errors.New("no finish point specified")
	ErrEntryNodeNotFound  = errors.New("entry point node not found")
	ErrFinishNodeNotFound = errors.New("finish point node not found")
	ErrNilNode            = errors.New("node function cannot be nil")
	ErrDuplicateNode      = errors.New("duplicate node name")
	ErrNodeNotFound       = errors.New("node not found")
	ErrDuplicateEdge      = errors.New("node already has an outgoing edge")
	ErrUnreachableNode    = errors.New("node not reachable from entry point")
	ErrUnknownRouteLabel  = errors.New("predicate returned an undeclared route label")
	ErrDeadEnd            = errors.New("node has no outgoing edge and is not the finish point")
)
