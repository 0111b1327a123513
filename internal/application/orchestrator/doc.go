// Package orchestrator routes incoming chat turns to pipeline graphs.
//
// The manager coordinates a chat turn by:
//   - Classifying the message intent (rule-based keywords, LLM fallback)
//   - Selecting and lazily compiling the matching pipeline graph
//   - Starting execution through the stream bridge
//
// Compiled graph definitions are shared across runs; all per-run data
// lives in the initial state handed to the runtime.
package orchestrator
