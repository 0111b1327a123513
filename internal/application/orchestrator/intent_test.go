package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

type stubLLM struct {
	reply   string
	err     error
	lastReq ports.CompletionRequest
	calls   int
}

func (s *stubLLM) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.reply, s.err
}

func (s *stubLLM) StreamChat(ctx context.Context, req ports.CompletionRequest, onToken func(string)) (string, error) {
	return s.Complete(ctx, req)
}

func TestClassifyRuleBased(t *testing.T) {
	llm := &stubLLM{}
	c := NewClassifier(llm, zap.NewNop())

	cases := []struct {
		message string
		want    string
	}{
		{"What is our vacation policy?", IntentPolicy},
		{"how do I file a harassment complaint", IntentPolicy},
		{"tell me about the EMPLOYEE handbook", IntentPolicy},
		{"Hello, how are you?", IntentGeneral},
		{"what can you help me with", IntentGeneral},
		{"what were the questions I asked previously", IntentGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(context.Background(), tc.message))
		})
	}

	assert.Zero(t, llm.calls, "keyword matches must not consult the model")
}

func TestClassifyPolicyWinsOverGeneral(t *testing.T) {
	c := NewClassifier(nil, zap.NewNop())

	// "hello" is casual but "policy" routes to retrieval.
	assert.Equal(t, IntentPolicy, c.Classify(context.Background(), "hello, what does the policy say"))
}

func TestClassifyLLMFallback(t *testing.T) {
	t.Run("model answer accepted", func(t *testing.T) {
		llm := &stubLLM{reply: " Company_Policy \n"}
		c := NewClassifier(llm, zap.NewNop())

		got := c.Classify(context.Background(), "am I allowed to bring my dog in")
		assert.Equal(t, IntentPolicy, got)
		assert.Equal(t, 1, llm.calls)
		assert.InDelta(t, 0.0, llm.lastReq.Temperature, 0.001)
	})

	t.Run("unrecognized answer coerced to general", func(t *testing.T) {
		llm := &stubLLM{reply: "I think this is about pets"}
		c := NewClassifier(llm, zap.NewNop())

		assert.Equal(t, IntentGeneral, c.Classify(context.Background(), "am I allowed to bring my dog in"))
	})

	t.Run("model failure degrades to general", func(t *testing.T) {
		llm := &stubLLM{err: errors.New("timeout")}
		c := NewClassifier(llm, zap.NewNop())

		assert.Equal(t, IntentGeneral, c.Classify(context.Background(), "am I allowed to bring my dog in"))
	})

	t.Run("nil model degrades to general", func(t *testing.T) {
		c := NewClassifier(nil, zap.NewNop())

		assert.Equal(t, IntentGeneral, c.Classify(context.Background(), "am I allowed to bring my dog in"))
	})
}
