// Package memory implements the conversation store with in-memory
// maps. Intended for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/polichat/polichat/pkg/ports"
)

const titleLimit = 50

// ConversationStore is an in-memory ports.ConversationStore.
type ConversationStore struct {
	mu       sync.RWMutex
	sessions map[string]*ports.Session
	messages map[string][]ports.Message
}

// NewConversationStore creates an empty in-memory store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		sessions: make(map[string]*ports.Session),
		messages: make(map[string][]ports.Message),
	}
}

// History returns a copy of a session's messages, oldest first.
func (s *ConversationStore) History(ctx context.Context, sessionID, userID string) ([]ports.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	out := make([]ports.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Append stores one user/assistant exchange, creating the session on
// first write.
func (s *ConversationStore) Append(ctx context.Context, sessionID, userID, userMessage, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess, ok := s.sessions[sessionID]
	if !ok {
		title := userMessage
		if len([]rune(title)) > titleLimit {
			title = string([]rune(title)[:titleLimit])
		}
		if title == "" {
			title = "New Chat"
		}
		sess = &ports.Session{
			ID:        sessionID,
			UserID:    userID,
			Title:     title,
			CreatedAt: now,
		}
		s.sessions[sessionID] = sess
	}
	sess.UpdatedAt = now

	s.messages[sessionID] = append(s.messages[sessionID],
		ports.Message{Role: ports.RoleUser, Content: userMessage},
		ports.Message{Role: ports.RoleAssistant, Content: reply},
	)
	return nil
}

// Sessions returns a user's sessions, most recently updated first.
func (s *ConversationStore) Sessions(ctx context.Context, userID string) ([]ports.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Session fetches one session's metadata.
func (s *ConversationStore) Session(ctx context.Context, sessionID string) (*ports.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	out := *sess
	return &out, nil
}

// Delete removes a session and its messages.
func (s *ConversationStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}
