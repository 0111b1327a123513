package events

import (
	"encoding/json"
	"fmt"

	"github.com/polichat/polichat/pkg/domain/state"
)

// Kind tags a raw execution event emitted by the graph runtime.
type Kind string

const (
	// KindStart is emitted immediately before a node executes.
	KindStart Kind = "start"
	// KindToken carries one streamed text fragment from a node that
	// invokes a streaming external call.
	KindToken Kind = "token"
	// KindEnd is emitted after a node's update has been merged.
	KindEnd Kind = "end"
)

// Event is a raw runtime notification for a single node. For one node
// the start event always precedes its token events, which precede its
// end event.
type Event struct {
	Kind   Kind
	Node   string
	Update state.Update
	Token  string
}

// Payload types understood by clients. "end" is always the last
// application-level frame of a stream.
const (
	TypeStage     = "stage"
	TypeLLMStream = "llm_stream"
	TypeLLMFinal  = "llm_final"
	TypeFinal     = "final"
	TypeError     = "error"
	TypeEnd       = "end"
	TypeRaw       = "event"
)

// Payload is one normalized, client-facing message derived from a raw
// event. Fields not used by a payload type are omitted from the wire.
type Payload struct {
	Type        string `json:"type"`
	Node        string `json:"node,omitempty"`
	Message     string `json:"message,omitempty"`
	Content     string `json:"content,omitempty"`
	Error       string `json:"error,omitempty"`
	Session     string `json:"session,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
	Count       *int   `json:"count,omitempty"`
	Bytes       *int64 `json:"bytes,omitempty"`
	TempPath    string `json:"temp_path,omitempty"`
	Sample      string `json:"sample,omitempty"`
	Preview     string `json:"preview,omitempty"`
	Raw         string `json:"raw,omitempty"`
}

// Stage builds a stage payload for a node.
func Stage(node, message string) Payload {
	return Payload{Type: TypeStage, Node: node, Message: message}
}

// End is the terminal application frame of every stream.
func End() Payload { return Payload{Type: TypeEnd} }

// Errorf builds an error payload.
func Errorf(format string, args ...any) Payload {
	return Payload{Type: TypeError, Error: fmt.Sprintf(format, args...)}
}

// EncodeSSE renders the payload as one Server-Sent-Events frame,
// `data: <json>\n\n`. A payload that fails to serialize is replaced by
// a fallback frame carrying its truncated string form; serialization
// problems never abort the stream.
func EncodeSSE(p Payload) string {
	data, err := json.Marshal(p)
	if err != nil {
		fallback := Payload{Type: TypeRaw, Raw: clip(fmt.Sprintf("%+v", p), 200)}
		data, err = json.Marshal(fallback)
		if err != nil {
			return "data: {\"type\": \"event\"}\n\n"
		}
	}
	return fmt.Sprintf("data: %s\n\n", data)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
