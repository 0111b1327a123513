package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/polichat/polichat/internal/application/orchestrator"
	"github.com/polichat/polichat/pkg/domain/events"
)

// ChatStreamRequest is one chat turn submitted for streaming.
type ChatStreamRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	Message     string `json:"message" binding:"required"`
	DocumentURL string `json:"document_url"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": gin.H{
			"orchestrator": "ok",
		},
	})
}

// handleChatStream runs one chat turn and streams its payloads as
// Server-Sent Events. The stream always ends with an end frame, even
// when the pipeline fails mid-run.
func (s *Server) handleChatStream(c *gin.Context) {
	var req ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	userID := c.GetString(userIDKey)
	if !s.authorizeSession(c, req.SessionID, userID) {
		return
	}

	st, err := s.orchestrator.Chat(c.Request.Context(), orchestrator.ChatRequest{
		SessionID:   req.SessionID,
		UserID:      userID,
		Message:     req.Message,
		DocumentURL: req.DocumentURL,
	})
	if err != nil {
		s.logger.Error("failed to start chat stream", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CHAT_FAILED",
				Message: err.Error(),
			},
		})
		return
	}
	defer st.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for {
		payload, ok := st.Next()
		if !ok {
			return
		}
		if _, err := c.Writer.WriteString(events.EncodeSSE(payload)); err != nil {
			s.logger.Debug("client disconnected mid-stream",
				zap.String("session_id", req.SessionID))
			return
		}
		c.Writer.Flush()
	}
}

// authorizeSession rejects requests against a session owned by a
// different user. Unknown sessions pass; they are created on the first
// exchange.
func (s *Server) authorizeSession(c *gin.Context, sessionID, userID string) bool {
	sess, err := s.orchestrator.Conversations().Session(c.Request.Context(), sessionID)
	if err != nil {
		return true
	}
	if sess.UserID != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: ErrorDetail{
				Code:    "FORBIDDEN",
				Message: "session does not belong to user",
			},
		})
		return false
	}
	return true
}

// handleListSessions returns the authenticated user's sessions.
func (s *Server) handleListSessions(c *gin.Context) {
	userID := c.GetString(userIDKey)

	sessions, err := s.orchestrator.Conversations().Sessions(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to list sessions",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// handleSessionMessages returns a session's message history.
func (s *Server) handleSessionMessages(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.GetString(userIDKey)

	if !s.authorizeSession(c, sessionID, userID) {
		return
	}

	msgs, err := s.orchestrator.Conversations().History(c.Request.Context(), sessionID, userID)
	if err != nil {
		s.logger.Error("failed to load history",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to load session messages",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   msgs,
	})
}

// handleDeleteSession deletes a session and its history.
func (s *Server) handleDeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.GetString(userIDKey)

	if !s.authorizeSession(c, sessionID, userID) {
		return
	}

	if err := s.orchestrator.DeleteSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Session not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"status":     "deleted",
	})
}
