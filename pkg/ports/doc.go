// Package ports defines the interfaces between the pipeline core and
// its external collaborators (LLM provider, embeddings, conversation
// history, retrieval stores, document handling, metrics). Adapters in
// pkg/adapters provide the concrete implementations.
package ports
