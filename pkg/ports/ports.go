package ports

import (
	"context"
	"time"
)

// Message roles used across the conversation store and LLM client.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session describes a stored chat session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompletionRequest is a chat-completion call to an LLM provider.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// LLMClient abstracts the chat-completion model. StreamChat surfaces
// each token through onToken as it arrives and returns the full text.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	StreamChat(ctx context.Context, req CompletionRequest, onToken func(token string)) (string, error)
}

// Embedder generates vector embeddings for similarity search.
// Implementations must be safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ConversationStore is the narrow session-history surface pipeline
// nodes are given: read the history and append one exchange. The wider
// methods back the session management API. Writes for one session are
// serialized by the storage layer.
type ConversationStore interface {
	History(ctx context.Context, sessionID, userID string) ([]Message, error)
	Append(ctx context.Context, sessionID, userID, userMessage, reply string) error
	Sessions(ctx context.Context, userID string) ([]Session, error)
	Session(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Chunk is one retrieved document fragment ordered by vector distance.
type Chunk struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// PolicyRetriever searches the shared company-policy corpus.
type PolicyRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
}

// SessionDocumentStore is the per-session temporary document store
// created when a user attaches a document. Drop removes the store when
// its session is deleted.
type SessionDocumentStore interface {
	Exists(ctx context.Context, safeSessionID string) (bool, error)
	Load(ctx context.Context, safeSessionID string, chunks []string) error
	Search(ctx context.Context, safeSessionID, query string, topK int) ([]Chunk, error)
	Drop(ctx context.Context, safeSessionID string) error
}

// Downloader fetches a remote document to a local temporary file and
// returns its path. The caller owns cleanup of the file.
type Downloader interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// TextExtractor pulls plain text out of a downloaded document. Rich
// formats (PDF, OCR) are external concerns behind this interface.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// DocumentProcessor turns a downloaded file into chunks loaded into
// the session document store.
type DocumentProcessor interface {
	Process(ctx context.Context, filePath, safeSessionID string) error
}

// MetricsCollector records pipeline execution metrics.
type MetricsCollector interface {
	RunStarted(intent string)
	RunCompleted(status string, duration time.Duration)
	NodeExecuted(node, status string, duration time.Duration)
	TokenStreamed(node string)
	PayloadEmitted(payloadType string)
	IncActiveStreams()
	DecActiveStreams()
}
