package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

// Intents recognized by the classifier. Every message resolves to
// exactly one of these.
const (
	IntentPolicy  = "company_policy"
	IntentGeneral = "general"
)

const intentClassificationPrompt = `You are an intent classifier for a policy compliance system. Analyze the user's message and classify it into one of these categories:

1. "company_policy" - Questions about company policies, HR policies, employee handbook, compliance, procedures, etc.
2. "general" - ONLY casual conversation (greetings, small talk) or questions about what the system can do

Respond with ONLY the category name (either "company_policy" or "general").

Examples:
- "What is our vacation policy?" -> company_policy
- "How do I submit a leave request?" -> company_policy
- "Hello, how are you?" -> general
- "What can you help me with?" -> general
- "What were the questions I asked previously?" -> general

When in doubt, classify as "general" to ensure unrelated questions don't get answered.`

var policyKeywords = []string{
	"policy", "policies", "hr", "human resources", "vacation", "leave", "sick", "holiday",
	"dress code", "attendance", "remote work", "work from home", "benefits", "insurance",
	"harassment", "discrimination", "complaint", "procedure", "handbook", "employee",
	"employment", "contract", "agreement", "disciplinary", "termination", "salary",
	"pay", "compensation", "bonus", "raise", "promotion", "performance", "training",
	"development", "onboarding", "orientation", "safety", "security", "compliance",
	"regulation", "legal", "law", "rights", "responsibilities", "workplace", "office",
	"company", "organization", "corporate", "business", "work", "job", "career",
}

var casualKeywords = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"how are you", "what's up", "thanks", "thank you", "bye", "goodbye",
	"see you", "have a good", "nice to meet", "pleasure", "welcome",
}

var capabilityKeywords = []string{
	"what can you", "what do you", "how can you", "what are you", "help me",
	"assist", "support", "capabilities", "features", "functions", "do for",
}

var historyKeywords = []string{
	"previous", "before", "earlier", "last time", "conversation", "chat",
	"history", "asked", "questions", "messages", "what did i", "what was",
	"recall", "remember", "past", "ago",
}

// Classifier resolves a user message to an intent. Rules run first;
// the LLM is consulted only when no keyword set matches, and its
// answer is coerced to a known intent.
type Classifier struct {
	llm    ports.LLMClient
	logger *zap.Logger
}

// NewClassifier creates an intent classifier. llm may be nil, in which
// case unmatched messages fall through to the general intent.
func NewClassifier(llm ports.LLMClient, logger *zap.Logger) *Classifier {
	return &Classifier{llm: llm, logger: logger}
}

// Classify returns the intent for a message. It never returns an
// error: classification failures degrade to the general intent.
func (c *Classifier) Classify(ctx context.Context, message string) string {
	if intent, ok := c.ruleBased(message); ok {
		c.logger.Debug("rule-based intent", zap.String("intent", intent))
		return intent
	}
	return c.llmBased(ctx, message)
}

// ruleBased checks the keyword sets in precedence order. Policy wins
// over every other set so borderline messages reach the retrieval
// pipeline.
func (c *Classifier) ruleBased(message string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, kw := range policyKeywords {
		if strings.Contains(lower, kw) {
			return IntentPolicy, true
		}
	}
	for _, set := range [][]string{casualKeywords, capabilityKeywords, historyKeywords} {
		for _, kw := range set {
			if strings.Contains(lower, kw) {
				return IntentGeneral, true
			}
		}
	}
	return "", false
}

func (c *Classifier) llmBased(ctx context.Context, message string) string {
	if c.llm == nil {
		return IntentGeneral
	}

	resp, err := c.llm.Complete(ctx, ports.CompletionRequest{
		System:      intentClassificationPrompt,
		Messages:    []ports.Message{{Role: ports.RoleUser, Content: message}},
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		c.logger.Warn("llm intent classification failed", zap.Error(err))
		return IntentGeneral
	}

	intent := strings.ToLower(strings.TrimSpace(resp))
	if intent != IntentPolicy && intent != IntentGeneral {
		c.logger.Debug("unrecognized llm intent", zap.String("raw", intent))
		return IntentGeneral
	}
	return intent
}
