// Package redis implements the conversation store on Redis. Messages
// live in a per-session list and session metadata in a JSON value, so
// history reads stay a single range call.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

const titleLimit = 50

// ConversationStore implements ports.ConversationStore using Redis.
type ConversationStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewConversationStore creates a Redis-backed conversation store. A
// zero ttl keeps sessions forever.
func NewConversationStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ConversationStore {
	return &ConversationStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// History returns the full message list of a session, oldest first. A
// session that does not exist yet has empty history, not an error.
func (s *ConversationStore) History(ctx context.Context, sessionID, userID string) ([]ports.Message, error) {
	raw, err := s.client.LRange(ctx, messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	msgs := make([]ports.Message, 0, len(raw))
	for _, item := range raw {
		var m ports.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			s.logger.Warn("skipping malformed stored message",
				zap.String("session_id", sessionID),
				zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Append stores one user/assistant exchange, creating the session
// record on first write. The pipeline keeps both writes plus the TTL
// refresh in a single round trip.
func (s *ConversationStore) Append(ctx context.Context, sessionID, userID, userMessage, reply string) error {
	if err := s.ensureSession(ctx, sessionID, userID, userMessage); err != nil {
		return err
	}

	userData, err := json.Marshal(ports.Message{Role: ports.RoleUser, Content: userMessage})
	if err != nil {
		return fmt.Errorf("failed to marshal user message: %w", err)
	}
	replyData, err := json.Marshal(ports.Message{Role: ports.RoleAssistant, Content: reply})
	if err != nil {
		return fmt.Errorf("failed to marshal assistant message: %w", err)
	}

	key := messagesKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, userData, replyData)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, sessionKey(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}

	s.logger.Debug("exchange appended",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID))
	return nil
}

// Sessions returns the sessions of a user, most recently updated
// first.
func (s *ConversationStore) Sessions(ctx context.Context, userID string) ([]ports.Session, error) {
	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]ports.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Session(ctx, id)
		if err != nil {
			// Expired session bodies leave dangling set members.
			continue
		}
		sessions = append(sessions, *sess)
	}

	for i := 1; i < len(sessions); i++ {
		for j := i; j > 0 && sessions[j].UpdatedAt.After(sessions[j-1].UpdatedAt); j-- {
			sessions[j], sessions[j-1] = sessions[j-1], sessions[j]
		}
	}
	return sessions, nil
}

// Session fetches one session's metadata.
func (s *ConversationStore) Session(ctx context.Context, sessionID string) (*ports.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess ports.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session and its messages.
func (s *ConversationStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID), messagesKey(sessionID))
	pipe.SRem(ctx, userSessionsKey(sess.UserID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.Debug("session deleted", zap.String("session_id", sessionID))
	return nil
}

// ensureSession creates session metadata on first contact and bumps
// the updated timestamp on every exchange.
func (s *ConversationStore) ensureSession(ctx context.Context, sessionID, userID, firstMessage string) error {
	now := time.Now().UTC()

	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		title := firstMessage
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
	}
	sess.UpdatedAt = now

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sessionID), data, s.ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("polichat:session:%s", sessionID)
}

func messagesKey(sessionID string) string {
	return fmt.Sprintf("polichat:messages:%s", sessionID)
}

func userSessionsKey(userID string) string {
	return fmt.Sprintf("polichat:user:%s:sessions", userID)
}
