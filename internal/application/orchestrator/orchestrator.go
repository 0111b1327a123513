package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/polichat/polichat/internal/application/pipeline"
	"github.com/polichat/polichat/internal/application/stream"
	"github.com/polichat/polichat/pkg/domain/graph"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

// ChatRequest is one incoming chat turn.
type ChatRequest struct {
	SessionID   string
	UserID      string
	Message     string
	DocumentURL string
}

// Manager classifies each incoming message, selects the matching
// pipeline graph, and runs it through the stream bridge. Graph
// definitions are compiled once on first use and reused across runs;
// per-run data travels only in the initial state.
type Manager struct {
	classifier *Classifier
	bridge     *stream.Bridge
	deps       pipeline.Deps
	logger     *zap.Logger

	mu     sync.Mutex
	graphs map[string]*graph.Definition
}

// NewManager creates the orchestrator.
func NewManager(classifier *Classifier, bridge *stream.Bridge, deps pipeline.Deps, logger *zap.Logger) *Manager {
	return &Manager{
		classifier: classifier,
		bridge:     bridge,
		deps:       deps,
		logger:     logger,
		graphs:     make(map[string]*graph.Definition),
	}
}

// Chat classifies the request and starts the selected pipeline,
// returning its payload stream. The stream itself reports execution
// failures; Chat errors only when no runnable graph exists for the
// request.
func (m *Manager) Chat(ctx context.Context, req ChatRequest) (*stream.Stream, error) {
	intent := m.classifier.Classify(ctx, req.Message)

	def, err := m.graphFor(intent)
	if err != nil {
		return nil, err
	}

	m.logger.Info("chat routed",
		zap.String("session_id", req.SessionID),
		zap.String("intent", intent),
		zap.Bool("has_document", req.DocumentURL != ""))

	return m.bridge.Run(ctx, def, m.initialState(req, intent)), nil
}

// Conversations exposes the session store for the session management
// API.
func (m *Manager) Conversations() ports.ConversationStore {
	return m.deps.Conversations
}

// DeleteSession removes a session's history and its temporary document
// store. A missing document store is not an error; a drop failure is
// logged but does not undo the history deletion.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.deps.Conversations.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := m.deps.Documents.Drop(ctx, pipeline.SafeSessionID(sessionID)); err != nil {
		m.logger.Warn("failed to drop session document store",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	return nil
}

// initialState builds the per-run state. The document URL key is set
// only when a URL was supplied, so downstream presence checks stay
// meaningful.
func (m *Manager) initialState(req ChatRequest, intent string) state.State {
	st := state.New(map[string]any{
		state.KeySessionID: req.SessionID,
		state.KeyUserID:    req.UserID,
		state.KeyMessage:   req.Message,
		state.KeyIntent:    intent,
	})
	if req.DocumentURL != "" {
		st[state.KeyDocumentURL] = req.DocumentURL
	}
	return st
}

// graphFor returns the compiled definition for an intent, building it
// lazily on first use.
func (m *Manager) graphFor(intent string) (*graph.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if def, ok := m.graphs[intent]; ok {
		return def, nil
	}

	var (
		def *graph.Definition
		err error
	)
	switch intent {
	case IntentPolicy:
		def, err = pipeline.BuildPolicyGraph(m.deps)
	case IntentGeneral:
		def, err = pipeline.BuildGeneralGraph(m.deps)
	default:
		return nil, fmt.Errorf("unknown intent: %s", intent)
	}
	if err != nil {
		return nil, fmt.Errorf("building %s graph: %w", intent, err)
	}

	m.logger.Info("pipeline graph compiled", zap.String("intent", intent))
	m.graphs[intent] = def
	return def, nil
}
