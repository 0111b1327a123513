// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Streaming chat over Server-Sent Events
//   - Session listing, history, and deletion
//   - Health checks
//   - Prometheus metrics
package http
