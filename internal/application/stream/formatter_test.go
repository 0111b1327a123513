package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polichat/polichat/internal/application/pipeline"
	"github.com/polichat/polichat/pkg/domain/events"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

func testState() state.State {
	return state.New(map[string]any{
		state.KeySessionID: "sess-42",
		state.KeyUserID:    "u-1",
		state.KeyMessage:   "what is the vacation policy?",
	})
}

func TestFormatTokens(t *testing.T) {
	var f Formatter

	got := f.Format(events.Event{Kind: events.KindToken, Node: pipeline.NodeLLM, Token: "Hel"}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeLLMStream, got[0].Type)
	assert.Equal(t, pipeline.NodeLLM, got[0].Node)
	assert.Equal(t, "Hel", got[0].Content)

	assert.Empty(t, f.Format(events.Event{Kind: events.KindToken, Node: pipeline.NodeLLM}, testState()))
}

func TestFormatInput(t *testing.T) {
	var f Formatter
	initial := testState()

	t.Run("start", func(t *testing.T) {
		got := f.Format(events.Event{Kind: events.KindStart, Node: pipeline.NodeInput}, initial)
		require.Len(t, got, 1)
		assert.Equal(t, events.TypeStage, got[0].Type)
		assert.Equal(t, pipeline.SafeSessionID("sess-42"), got[0].Session)
		assert.Equal(t, "what is the vacation policy?", got[0].UserMessage)
	})

	t.Run("end uses sanitized id from update", func(t *testing.T) {
		got := f.Format(events.Event{
			Kind:   events.KindEnd,
			Node:   pipeline.NodeInput,
			Update: state.Update{state.KeySafeSessionID: "sess_42"},
		}, initial)
		require.Len(t, got, 1)
		assert.Equal(t, "Session validated", got[0].Message)
		assert.Equal(t, "sess_42", got[0].Session)
	})
}

func TestFormatHistory(t *testing.T) {
	var f Formatter

	got := f.Format(events.Event{
		Kind: events.KindEnd,
		Node: pipeline.NodeHistory,
		Update: state.Update{state.KeyHistory: []ports.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		}},
	}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, "Fetched 2 messages from history", got[0].Message)
	require.NotNil(t, got[0].Count)
	assert.Equal(t, 2, *got[0].Count)
}

func TestFormatDownload(t *testing.T) {
	var f Formatter

	t.Run("start without url is silent", func(t *testing.T) {
		got := f.Format(events.Event{Kind: events.KindStart, Node: pipeline.NodeDocDownload}, testState())
		assert.Empty(t, got)
	})

	t.Run("start with url", func(t *testing.T) {
		initial := testState()
		initial[state.KeyDocumentURL] = "https://example.com/handbook.txt"
		got := f.Format(events.Event{Kind: events.KindStart, Node: pipeline.NodeDocDownload}, initial)
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "https://example.com/handbook.txt")
	})

	t.Run("end reports file size", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

		got := f.Format(events.Event{
			Kind:   events.KindEnd,
			Node:   pipeline.NodeDocDownload,
			Update: state.Update{state.KeyTempFilePath: path},
		}, testState())
		require.Len(t, got, 1)
		assert.Equal(t, "Document downloaded", got[0].Message)
		assert.Equal(t, path, got[0].TempPath)
		require.NotNil(t, got[0].Bytes)
		assert.Equal(t, int64(11), *got[0].Bytes)
	})
}

func TestFormatRetrievers(t *testing.T) {
	var f Formatter
	chunks := []ports.Chunk{{Content: "Employees accrue 20 days of paid leave."}, {Content: "Carry-over is capped."}}

	got := f.Format(events.Event{
		Kind:   events.KindEnd,
		Node:   pipeline.NodePolicyRetriever,
		Update: state.Update{state.KeyPolicyContext: chunks},
	}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, "Retrieved 2 policy chunks", got[0].Message)
	assert.Equal(t, chunks[0].Content, got[0].Sample)

	got = f.Format(events.Event{
		Kind:   events.KindEnd,
		Node:   pipeline.NodeDocRetriever,
		Update: state.Update{state.KeyDocContext: []ports.Chunk{}},
	}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, "Retrieved 0 document chunks", got[0].Message)
	require.NotNil(t, got[0].Count)
	assert.Zero(t, *got[0].Count)
	assert.Empty(t, got[0].Sample)
}

func TestFormatContextCombine(t *testing.T) {
	var f Formatter

	got := f.Format(events.Event{
		Kind:   events.KindEnd,
		Node:   pipeline.NodeContextCombine,
		Update: state.Update{state.KeyFullMessage: "User Message: hi\nContext: policy text"},
	}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, "User Message: hi\nContext: policy text", got[0].Preview)
}

func TestFormatLLM(t *testing.T) {
	var f Formatter

	start := f.Format(events.Event{Kind: events.KindStart, Node: pipeline.NodeLLM}, testState())
	require.Len(t, start, 1)
	assert.Equal(t, events.TypeStage, start[0].Type)

	end := f.Format(events.Event{
		Kind:   events.KindEnd,
		Node:   pipeline.NodeLLM,
		Update: state.Update{state.KeyResponse: "You accrue 20 days."},
	}, testState())
	require.Len(t, end, 1)
	assert.Equal(t, events.TypeLLMFinal, end[0].Type)
	assert.Equal(t, "You accrue 20 days.", end[0].Content)
}

func TestFormatOutput(t *testing.T) {
	var f Formatter

	t.Run("prefers content over response", func(t *testing.T) {
		got := f.Format(events.Event{
			Kind: events.KindEnd,
			Node: pipeline.NodeOutput,
			Update: state.Update{
				state.KeyContent:  "final answer",
				state.KeyResponse: "older draft",
			},
		}, testState())
		require.Len(t, got, 1)
		assert.Equal(t, events.TypeFinal, got[0].Type)
		assert.Equal(t, "final answer", got[0].Content)
	})

	t.Run("falls back to response", func(t *testing.T) {
		got := f.Format(events.Event{
			Kind:   events.KindEnd,
			Node:   pipeline.NodeOutput,
			Update: state.Update{state.KeyResponse: "the reply"},
		}, testState())
		require.Len(t, got, 1)
		assert.Equal(t, "the reply", got[0].Content)
	})
}

func TestFormatUnknownNode(t *testing.T) {
	var f Formatter

	got := f.Format(events.Event{Kind: events.KindStart, Node: "mystery"}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeStage, got[0].Type)
	assert.Equal(t, "Starting node 'mystery'", got[0].Message)

	got = f.Format(events.Event{Kind: events.KindEnd, Node: "mystery"}, testState())
	require.Len(t, got, 1)
	assert.Equal(t, "Finished node 'mystery'", got[0].Message)
}

func TestFormatRecoversFromPanic(t *testing.T) {
	var f Formatter

	// A malformed update must never take the stream down with it.
	upd := state.Update{}
	upd["loop"] = upd

	require.NotPanics(t, func() {
		got := f.Format(events.Event{Kind: events.KindEnd, Node: pipeline.NodeOutput, Update: upd}, testState())
		require.Len(t, got, 1)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))

	got := truncate("abcdefghijk", 10)
	assert.Equal(t, "abcdefghi…", got)

	// Cuts on rune boundaries, not bytes.
	got = truncate("ééééé", 4)
	assert.Equal(t, "ééé…", got)

	// Trailing whitespace before the ellipsis is trimmed.
	assert.Equal(t, "abc…", truncate("abc      defgh", 5))
}
