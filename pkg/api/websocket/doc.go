// Package websocket provides real-time chat streaming via WebSocket.
//
// Clients connect to /api/v1/chat/ws and send one JSON message per
// chat turn; the pipeline's payloads stream back as text frames.
package websocket
