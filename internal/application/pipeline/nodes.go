package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/domain/graph"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

// Node names shared by the graph builders and the event formatter.
const (
	NodeInput           = "input"
	NodeHistory         = "history"
	NodeDocDownload     = "doc_download"
	NodeDocProcess      = "doc_process"
	NodePolicyRetriever = "policy_retriever"
	NodeDocRetriever    = "doc_retriever"
	NodeContextCombine  = "context_combine"
	NodeLLM             = "llm"
	NodeSessionUpdate   = "session_update"
	NodeOutput          = "output"
)

// Route labels for the two decision points of the policy pipeline.
const (
	routeWithDoc     = "with_doc"
	routeHasDoc      = "has_doc"
	routeNoDoc       = "no_doc"
	routeNeedDoc     = "need_doc"
	routeNoDocNeeded = "no_doc_needed"
)

// Deps carries the external collaborators pipeline nodes are allowed
// to reach. Nodes never see the orchestrator itself, only these narrow
// interfaces.
type Deps struct {
	Conversations ports.ConversationStore
	LLM           ports.LLMClient
	Policy        ports.PolicyRetriever
	Documents     ports.SessionDocumentStore
	Downloader    ports.Downloader
	Processor     ports.DocumentProcessor
	Logger        *zap.Logger
	TopK          int
}

func (d Deps) topK() int {
	if d.TopK > 0 {
		return d.TopK
	}
	return 5
}

// SafeSessionID normalizes a session id for use in per-session
// identifiers (temp store names).
func SafeSessionID(sessionID string) string {
	return strings.ReplaceAll(sessionID, "-", "_")
}

// inputNode validates the required initial-state fields and derives
// the normalized session id.
func (d Deps) inputNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	if err := st.ValidateRequired(); err != nil {
		return nil, err
	}
	return state.Update{
		state.KeySafeSessionID: SafeSessionID(st.String(state.KeySessionID)),
	}, nil
}

// historyNode loads the conversation history. A store failure falls
// back to a fresh history so the run can continue.
func (d Deps) historyNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	history, err := d.Conversations.History(ctx, st.String(state.KeySessionID), st.String(state.KeyUserID))
	if err != nil {
		d.Logger.Warn("history fetch failed, starting fresh",
			zap.String("session_id", st.String(state.KeySessionID)),
			zap.Error(err))
		history = nil
	}
	if len(history) == 0 {
		history = []ports.Message{{Role: ports.RoleSystem, Content: DefaultHistoryPrompt}}
	}
	return state.Update{state.KeyHistory: history}, nil
}

// docDownloadNode fetches the attached document to a temporary file.
// Download failures are swallowed: the run continues without document
// context.
func (d Deps) docDownloadNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	url := st.String(state.KeyDocumentURL)
	if url == "" {
		return state.Update{}, nil
	}
	path, err := d.Downloader.Fetch(ctx, url)
	if err != nil {
		d.Logger.Warn("document download failed",
			zap.String("url", url),
			zap.Error(err))
		return state.Update{}, nil
	}
	d.Logger.Debug("document downloaded", zap.String("path", path))
	return state.Update{state.KeyTempFilePath: path}, nil
}

// docProcessNode chunks and embeds the downloaded document into the
// per-session store, then removes the temporary file.
func (d Deps) docProcessNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	path := st.String(state.KeyTempFilePath)
	safeID := st.String(state.KeySafeSessionID)
	if path == "" || safeID == "" {
		return state.Update{}, nil
	}
	if err := d.Processor.Process(ctx, path, safeID); err != nil {
		d.Logger.Warn("document processing failed",
			zap.String("session", safeID),
			zap.Error(err))
	}
	if err := os.Remove(path); err != nil {
		d.Logger.Debug("temp file cleanup failed", zap.String("path", path), zap.Error(err))
	}
	return state.Update{}, nil
}

// policyRetrieverNode searches the shared policy corpus for context
// relevant to the user message.
func (d Deps) policyRetrieverNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	chunks, err := d.Policy.Retrieve(ctx, st.String(state.KeyMessage), d.topK())
	if err != nil {
		d.Logger.Warn("policy retrieval failed", zap.Error(err))
		chunks = nil
	}
	return state.Update{state.KeyPolicyContext: chunks}, nil
}

// docRetrieverNode searches the per-session temporary document store.
func (d Deps) docRetrieverNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	safeID := st.String(state.KeySafeSessionID)
	if safeID == "" {
		return state.Update{state.KeyDocContext: []ports.Chunk(nil)}, nil
	}
	chunks, err := d.Documents.Search(ctx, safeID, st.String(state.KeyMessage), d.topK())
	if err != nil {
		d.Logger.Warn("document retrieval failed",
			zap.String("session", safeID),
			zap.Error(err))
		chunks = nil
	}
	return state.Update{state.KeyDocContext: chunks}, nil
}

// contextCombineNode assembles the retrieval context and the user
// message into the full generation prompt.
func (d Deps) contextCombineNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	policyCtx := renderChunks(st[state.KeyPolicyContext])
	docCtx := renderChunks(st[state.KeyDocContext])
	combined := fmt.Sprintf("Policy Context: %s\nDocument Context: %s", policyCtx, docCtx)
	full := fmt.Sprintf("User Message: %s\nContext: %s", st.String(state.KeyMessage), combined)
	return state.Update{state.KeyFullMessage: full}, nil
}

func renderChunks(v any) string {
	chunks, ok := v.([]ports.Chunk)
	if !ok || len(chunks) == 0 {
		return "[]"
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return "[" + strings.Join(parts, "\n---\n") + "]"
}

// llmNode generates the reply, streaming tokens as they arrive. A
// provider failure is converted to the fallback reply so persistence
// and output still run.
func (d Deps) llmNode(system string, temperature float64, useFullMessage bool, fallback string) graph.NodeFunc {
	return func(ctx context.Context, st state.State, stream graph.StreamFunc) (state.Update, error) {
		userText := st.String(state.KeyMessage)
		if useFullMessage {
			if full := st.String(state.KeyFullMessage); full != "" {
				userText = full
			}
		}

		history, _ := st[state.KeyHistory].([]ports.Message)
		messages := make([]ports.Message, 0, len(history)+1)
		messages = append(messages, history...)
		messages = append(messages, ports.Message{Role: ports.RoleUser, Content: userText})

		text, err := d.LLM.StreamChat(ctx, ports.CompletionRequest{
			System:      system,
			Messages:    messages,
			Temperature: temperature,
		}, stream)
		if err != nil {
			d.Logger.Error("generation failed", zap.Error(err))
			return state.Update{state.KeyResponse: fallback}, nil
		}
		return state.Update{state.KeyResponse: text}, nil
	}
}

// sessionUpdateNode persists the exchange. Only the original user
// query is persisted, never the combined prompt.
func (d Deps) sessionUpdateNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	err := d.Conversations.Append(ctx,
		st.String(state.KeySessionID),
		st.String(state.KeyUserID),
		st.String(state.KeyMessage),
		st.String(state.KeyResponse))
	if err != nil {
		d.Logger.Warn("session history append failed",
			zap.String("session_id", st.String(state.KeySessionID)),
			zap.Error(err))
	}
	return state.Update{}, nil
}

// outputNode finalizes the run result: the reply text plus a snapshot
// of the stored history.
func (d Deps) outputNode(ctx context.Context, st state.State, _ graph.StreamFunc) (state.Update, error) {
	upd := state.Update{state.KeyContent: st.String(state.KeyResponse)}
	history, err := d.Conversations.History(ctx, st.String(state.KeySessionID), st.String(state.KeyUserID))
	if err == nil {
		upd[state.KeyHistory] = history
	}
	return upd, nil
}

// tempStoreExists reports whether this session already has a processed
// document store. Lookup failures count as absent.
func (d Deps) tempStoreExists(ctx context.Context, st state.State) bool {
	safeID := st.String(state.KeySafeSessionID)
	if safeID == "" {
		return false
	}
	exists, err := d.Documents.Exists(ctx, safeID)
	if err != nil {
		d.Logger.Warn("temp store existence check failed",
			zap.String("session", safeID),
			zap.Error(err))
		return false
	}
	return exists
}
