package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/polichat/polichat/internal/application/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// Handler handles WebSocket chat connections.
type Handler struct {
	orchestrator *orchestrator.Manager
	logger       *zap.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(manager *orchestrator.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: manager,
		logger:       logger,
	}
}

// chatMessage is one chat turn received over the socket.
type chatMessage struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	DocumentURL string `json:"document_url,omitempty"`
}

// HandleChatStream upgrades the connection and serves chat turns over
// it. Each received message runs one pipeline; its payloads are
// written back as JSON text frames, ending with the end payload, after
// which the next turn may be sent.
func (h *Handler) HandleChatStream(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("user_id", userID),
		zap.String("client", c.ClientIP()))

	for {
		var msg chatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}

		if err := h.serveTurn(c, conn, userID, msg); err != nil {
			return
		}
	}
}

func (h *Handler) serveTurn(c *gin.Context, conn *websocket.Conn, userID string, msg chatMessage) error {
	st, err := h.orchestrator.Chat(c.Request.Context(), orchestrator.ChatRequest{
		SessionID:   msg.SessionID,
		UserID:      userID,
		Message:     msg.Message,
		DocumentURL: msg.DocumentURL,
	})
	if err != nil {
		h.logger.Error("failed to start chat stream", zap.Error(err))
		return conn.WriteJSON(gin.H{"type": "error", "error": err.Error()})
	}
	defer st.Close()

	for {
		payload, ok := st.Next()
		if !ok {
			return nil
		}

		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error("failed to marshal payload", zap.Error(err))
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Error("failed to write message", zap.Error(err))
			return err
		}
	}
}
