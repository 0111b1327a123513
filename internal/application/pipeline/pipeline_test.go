package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/domain/graph"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

type appendedExchange struct {
	sessionID, userID, userMessage, reply string
}

type fakeConversations struct {
	history    []ports.Message
	historyErr error
	appended   []appendedExchange
}

func (f *fakeConversations) History(ctx context.Context, sessionID, userID string) ([]ports.Message, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeConversations) Append(ctx context.Context, sessionID, userID, userMessage, reply string) error {
	f.appended = append(f.appended, appendedExchange{sessionID, userID, userMessage, reply})
	return nil
}

func (f *fakeConversations) Sessions(ctx context.Context, userID string) ([]ports.Session, error) {
	return nil, nil
}

func (f *fakeConversations) Session(ctx context.Context, sessionID string) (*ports.Session, error) {
	return nil, nil
}

func (f *fakeConversations) Delete(ctx context.Context, sessionID string) error { return nil }

type fakeLLM struct {
	reply   string
	err     error
	lastReq ports.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	f.lastReq = req
	return f.reply, f.err
}

func (f *fakeLLM) StreamChat(ctx context.Context, req ports.CompletionRequest, onToken func(string)) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	onToken(f.reply)
	return f.reply, nil
}

type fakePolicy struct {
	chunks []ports.Chunk
	err    error
	query  string
}

func (f *fakePolicy) Retrieve(ctx context.Context, query string, topK int) ([]ports.Chunk, error) {
	f.query = query
	return f.chunks, f.err
}

type fakeDocStore struct {
	exists   bool
	chunks   []ports.Chunk
	searched string
}

func (f *fakeDocStore) Exists(ctx context.Context, safeSessionID string) (bool, error) {
	return f.exists, nil
}

func (f *fakeDocStore) Load(ctx context.Context, safeSessionID string, chunks []string) error {
	return nil
}

func (f *fakeDocStore) Search(ctx context.Context, safeSessionID, query string, topK int) ([]ports.Chunk, error) {
	f.searched = query
	return f.chunks, nil
}

func (f *fakeDocStore) Drop(ctx context.Context, safeSessionID string) error {
	f.exists = false
	return nil
}

type fakeDownloader struct {
	path string
	err  error
	urls []string
}

func (f *fakeDownloader) Fetch(ctx context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.path, f.err
}

// fakeProcessor marks the session store as populated, mirroring what
// real processing does before the post-retrieval route re-checks it.
type fakeProcessor struct {
	store     *fakeDocStore
	processed []string
}

func (f *fakeProcessor) Process(ctx context.Context, filePath, safeSessionID string) error {
	f.processed = append(f.processed, filePath)
	f.store.exists = true
	return nil
}

type fixture struct {
	deps     Deps
	convs    *fakeConversations
	llm      *fakeLLM
	policy   *fakePolicy
	docs     *fakeDocStore
	download *fakeDownloader
	proc     *fakeProcessor
}

func newFixture() *fixture {
	convs := &fakeConversations{}
	llm := &fakeLLM{reply: "the answer"}
	policy := &fakePolicy{}
	docs := &fakeDocStore{}
	download := &fakeDownloader{}
	proc := &fakeProcessor{store: docs}
	return &fixture{
		deps: Deps{
			Conversations: convs,
			LLM:           llm,
			Policy:        policy,
			Documents:     docs,
			Downloader:    download,
			Processor:     proc,
			Logger:        zap.NewNop(),
			TopK:          3,
		},
		convs:    convs,
		llm:      llm,
		policy:   policy,
		docs:     docs,
		download: download,
		proc:     proc,
	}
}

func runGraph(t *testing.T, def *graph.Definition, initial state.State) (state.State, []string) {
	t.Helper()
	st := initial.Clone()
	current := def.Entry()
	var visited []string
	for {
		fn, ok := def.Node(current)
		require.True(t, ok)
		visited = append(visited, current)
		upd, err := fn(context.Background(), st, func(string) {})
		require.NoError(t, err)
		st.Merge(upd)
		if current == def.Finish() {
			return st, visited
		}
		next, err := def.Next(context.Background(), current, st)
		require.NoError(t, err)
		current = next
	}
}

func policyInitial() state.State {
	return state.New(map[string]any{
		state.KeySessionID: "sess-1",
		state.KeyUserID:    "u-1",
		state.KeyMessage:   "what is the vacation policy?",
		state.KeyIntent:    "company_policy",
	})
}

func TestPolicyGraphNoDocument(t *testing.T) {
	fx := newFixture()
	fx.policy.chunks = []ports.Chunk{{Content: "20 days of paid leave"}}

	def, err := BuildPolicyGraph(fx.deps)
	require.NoError(t, err)
	assert.Equal(t, "company_policy", def.Name())

	final, visited := runGraph(t, def, policyInitial())

	assert.Equal(t, []string{
		NodeInput, NodeHistory, NodePolicyRetriever,
		NodeContextCombine, NodeLLM, NodeSessionUpdate, NodeOutput,
	}, visited)

	assert.Equal(t, "sess_1", final.String(state.KeySafeSessionID))
	assert.Equal(t, "what is the vacation policy?", fx.policy.query)
	assert.Equal(t,
		"User Message: what is the vacation policy?\nContext: Policy Context: [20 days of paid leave]\nDocument Context: []",
		final.String(state.KeyFullMessage))
	assert.Equal(t, "the answer", final.String(state.KeyResponse))
	assert.Equal(t, "the answer", final.String(state.KeyContent))

	// Persistence records the original query, never the combined prompt.
	require.Len(t, fx.convs.appended, 1)
	assert.Equal(t, "what is the vacation policy?", fx.convs.appended[0].userMessage)
	assert.Equal(t, "the answer", fx.convs.appended[0].reply)

	// Generation sees the combined prompt.
	last := fx.llm.lastReq.Messages[len(fx.llm.lastReq.Messages)-1]
	assert.Equal(t, final.String(state.KeyFullMessage), last.Content)
	assert.Equal(t, MainPrompt, fx.llm.lastReq.System)
}

func TestPolicyGraphWithDocumentURL(t *testing.T) {
	fx := newFixture()
	tmpFile := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("content"), 0o600))
	fx.download.path = tmpFile
	fx.docs.chunks = []ports.Chunk{{Content: "from the attached doc"}}

	def, err := BuildPolicyGraph(fx.deps)
	require.NoError(t, err)

	initial := policyInitial()
	initial[state.KeyDocumentURL] = "https://example.com/doc.txt"

	final, visited := runGraph(t, def, initial)

	assert.Equal(t, []string{
		NodeInput, NodeHistory, NodeDocDownload, NodeDocProcess,
		NodePolicyRetriever, NodeDocRetriever,
		NodeContextCombine, NodeLLM, NodeSessionUpdate, NodeOutput,
	}, visited)

	assert.Equal(t, []string{"https://example.com/doc.txt"}, fx.download.urls)
	assert.Equal(t, []string{tmpFile}, fx.proc.processed)
	assert.NoFileExists(t, tmpFile, "temp file removed after processing")
	assert.Equal(t, "what is the vacation policy?", fx.docs.searched)
	assert.Contains(t, final.String(state.KeyFullMessage), "from the attached doc")
}

func TestPolicyGraphExistingDocumentStore(t *testing.T) {
	fx := newFixture()
	fx.docs.exists = true
	fx.docs.chunks = []ports.Chunk{{Content: "previously loaded"}}

	def, err := BuildPolicyGraph(fx.deps)
	require.NoError(t, err)

	_, visited := runGraph(t, def, policyInitial())

	// An existing store skips download and processing but still runs
	// document retrieval.
	assert.Equal(t, []string{
		NodeInput, NodeHistory, NodePolicyRetriever, NodeDocRetriever,
		NodeContextCombine, NodeLLM, NodeSessionUpdate, NodeOutput,
	}, visited)
	assert.Empty(t, fx.download.urls)
	assert.Empty(t, fx.proc.processed)
}

func TestPolicyGraphDownloadFailure(t *testing.T) {
	fx := newFixture()
	fx.download.err = errors.New("connection refused")

	def, err := BuildPolicyGraph(fx.deps)
	require.NoError(t, err)

	initial := policyInitial()
	initial[state.KeyDocumentURL] = "https://example.com/doc.txt"

	final, visited := runGraph(t, def, initial)

	// The run survives the failed download and answers from the policy
	// corpus alone.
	assert.Contains(t, visited, NodeOutput)
	assert.NotContains(t, visited, NodeDocRetriever)
	assert.Empty(t, fx.proc.processed)
	assert.Equal(t, "the answer", final.String(state.KeyContent))
}

func TestGeneralGraphLinear(t *testing.T) {
	fx := newFixture()
	fx.convs.history = []ports.Message{
		{Role: ports.RoleUser, Content: "hi"},
		{Role: ports.RoleAssistant, Content: "hello"},
	}

	def, err := BuildGeneralGraph(fx.deps)
	require.NoError(t, err)
	assert.Equal(t, "general", def.Name())

	initial := policyInitial()
	initial[state.KeyMessage] = "what can you help me with?"
	initial[state.KeyIntent] = "general"

	final, visited := runGraph(t, def, initial)

	assert.Equal(t, []string{
		NodeInput, NodeHistory, NodeLLM, NodeSessionUpdate, NodeOutput,
	}, visited)

	// No retrieval ran, so generation gets the raw user message with
	// the prior history prepended.
	require.Len(t, fx.llm.lastReq.Messages, 3)
	assert.Equal(t, "what can you help me with?", fx.llm.lastReq.Messages[2].Content)
	assert.Equal(t, GeneralPrompt, fx.llm.lastReq.System)
	assert.InDelta(t, 0.7, fx.llm.lastReq.Temperature, 0.001)
	assert.Equal(t, "the answer", final.String(state.KeyContent))
}

func TestLLMFailureFallback(t *testing.T) {
	fx := newFixture()
	fx.llm.err = errors.New("rate limited")

	def, err := BuildPolicyGraph(fx.deps)
	require.NoError(t, err)

	final, visited := runGraph(t, def, policyInitial())

	assert.Contains(t, visited, NodeSessionUpdate)
	assert.Equal(t, PolicyFallbackReply, final.String(state.KeyResponse))
	require.Len(t, fx.convs.appended, 1)
	assert.Equal(t, PolicyFallbackReply, fx.convs.appended[0].reply)
}

func TestHistoryNodeSeedsEmptyHistory(t *testing.T) {
	fx := newFixture()

	upd, err := fx.deps.historyNode(context.Background(), policyInitial(), nil)
	require.NoError(t, err)

	history, ok := upd[state.KeyHistory].([]ports.Message)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, ports.RoleSystem, history[0].Role)
	assert.Equal(t, DefaultHistoryPrompt, history[0].Content)
}

func TestHistoryNodeStoreFailure(t *testing.T) {
	fx := newFixture()
	fx.convs.historyErr = errors.New("redis down")

	upd, err := fx.deps.historyNode(context.Background(), policyInitial(), nil)
	require.NoError(t, err, "a store failure must not abort the run")

	history, ok := upd[state.KeyHistory].([]ports.Message)
	require.True(t, ok)
	assert.Len(t, history, 1)
}

func TestSafeSessionID(t *testing.T) {
	assert.Equal(t, "abc_123_def", SafeSessionID("abc-123-def"))
	assert.Equal(t, "plain", SafeSessionID("plain"))
}

func TestContextCombineEmptyContexts(t *testing.T) {
	fx := newFixture()

	upd, err := fx.deps.contextCombineNode(context.Background(), policyInitial(), nil)
	require.NoError(t, err)
	assert.Equal(t,
		"User Message: what is the vacation policy?\nContext: Policy Context: []\nDocument Context: []",
		upd[state.KeyFullMessage])
}
