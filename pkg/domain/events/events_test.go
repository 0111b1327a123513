package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSSE(t *testing.T) {
	t.Run("frame shape", func(t *testing.T) {
		frame := EncodeSSE(Stage("input", "Session validated"))
		assert.True(t, strings.HasPrefix(frame, "data: "))
		assert.True(t, strings.HasSuffix(frame, "\n\n"))

		var p Payload
		require.NoError(t, json.Unmarshal([]byte(frame[len("data: "):len(frame)-2]), &p))
		assert.Equal(t, TypeStage, p.Type)
		assert.Equal(t, "input", p.Node)
		assert.Equal(t, "Session validated", p.Message)
	})

	t.Run("unused fields omitted", func(t *testing.T) {
		frame := EncodeSSE(End())
		assert.Equal(t, "data: {\"type\":\"end\"}\n\n", frame)
	})

	t.Run("count zero still serialized", func(t *testing.T) {
		count := 0
		p := Stage("history", "Fetched 0 messages from history")
		p.Count = &count
		frame := EncodeSSE(p)
		assert.Contains(t, frame, "\"count\":0")
	})
}

func TestErrorf(t *testing.T) {
	p := Errorf("node %s: %s", "llm", "boom")
	assert.Equal(t, TypeError, p.Type)
	assert.Equal(t, "node llm: boom", p.Error)
}
