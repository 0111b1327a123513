package stream

import (
	"fmt"
	"os"
	"strings"

	"github.com/polichat/polichat/internal/application/pipeline"
	"github.com/polichat/polichat/pkg/domain/events"
	"github.com/polichat/polichat/pkg/domain/state"
	"github.com/polichat/polichat/pkg/ports"
)

// Formatter maps raw runtime events to UI payloads. Dispatch is keyed
// by event kind first, then by normalized node name; every raw event
// produces at least a generic stage payload so nothing is silently
// dropped. Format never propagates a failure to its caller.
type Formatter struct{}

// Format converts one raw event into zero or more payloads. A panic
// while formatting is recovered into a single error payload; the
// underlying execution is unaffected.
func (f Formatter) Format(ev events.Event, initial state.State) (payloads []events.Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			payloads = []events.Payload{events.Errorf("formatting event for node %s: %v", ev.Node, rec)}
		}
	}()

	node := strings.ToLower(ev.Node)

	if ev.Kind == events.KindToken {
		if ev.Token == "" {
			return nil
		}
		return []events.Payload{{Type: events.TypeLLMStream, Node: node, Content: ev.Token}}
	}

	switch node {
	case pipeline.NodeInput:
		return f.formatInput(ev, initial)
	case pipeline.NodeHistory:
		if ev.Kind == events.KindEnd {
			count := countOf(ev.Update[state.KeyHistory])
			p := events.Stage(node, fmt.Sprintf("Fetched %d messages from history", count))
			p.Count = &count
			return []events.Payload{p}
		}
	case pipeline.NodeDocDownload:
		return f.formatDownload(ev, initial)
	case pipeline.NodeDocProcess:
		if ev.Kind == events.KindStart {
			return []events.Payload{events.Stage(node, "Processing downloaded document…")}
		}
		return []events.Payload{events.Stage(node, "Document chunks prepared for retrieval")}
	case pipeline.NodePolicyRetriever:
		if ev.Kind == events.KindEnd {
			return f.retrievalStage(node, ev.Update[state.KeyPolicyContext], "Retrieved %d policy chunks")
		}
	case pipeline.NodeDocRetriever:
		if ev.Kind == events.KindEnd {
			return f.retrievalStage(node, ev.Update[state.KeyDocContext], "Retrieved %d document chunks")
		}
	case pipeline.NodeContextCombine:
		if ev.Kind == events.KindEnd {
			p := events.Stage(node, "Combining policy and document context")
			if full := updateString(ev.Update, state.KeyFullMessage); full != "" {
				p.Preview = truncate(full, 200)
			}
			return []events.Payload{p}
		}
	case pipeline.NodeLLM:
		if ev.Kind == events.KindStart {
			return []events.Payload{events.Stage(node, "Generating response with LLM…")}
		}
		if text := extractText(ev.Update); text != "" {
			return []events.Payload{{Type: events.TypeLLMFinal, Node: node, Content: text}}
		}
	case pipeline.NodeSessionUpdate:
		if ev.Kind == events.KindEnd {
			return []events.Payload{events.Stage(node, "Appending messages to session history")}
		}
	case pipeline.NodeOutput:
		if ev.Kind == events.KindEnd {
			return []events.Payload{{Type: events.TypeFinal, Content: f.finalText(ev.Update)}}
		}
	}

	// Generic progress for any node/kind not explicitly handled.
	verb := "Starting"
	if ev.Kind == events.KindEnd {
		verb = "Finished"
	}
	return []events.Payload{events.Stage(node, fmt.Sprintf("%s node '%s'", verb, node))}
}

func (f Formatter) formatInput(ev events.Event, initial state.State) []events.Payload {
	if ev.Kind == events.KindStart {
		p := events.Stage(pipeline.NodeInput, "Validating session & user input…")
		p.Session = pipeline.SafeSessionID(initial.String(state.KeySessionID))
		p.UserMessage = truncate(initial.String(state.KeyMessage), 120)
		return []events.Payload{p}
	}
	safeID := updateString(ev.Update, state.KeySafeSessionID)
	if safeID == "" {
		safeID = pipeline.SafeSessionID(initial.String(state.KeySessionID))
	}
	p := events.Stage(pipeline.NodeInput, "Session validated")
	p.Session = safeID
	return []events.Payload{p}
}

func (f Formatter) formatDownload(ev events.Event, initial state.State) []events.Payload {
	if ev.Kind == events.KindStart {
		url := initial.String(state.KeyDocumentURL)
		if url == "" {
			return nil
		}
		return []events.Payload{events.Stage(pipeline.NodeDocDownload,
			fmt.Sprintf("Downloading document from URL %s", truncate(url, 100)))}
	}
	p := events.Stage(pipeline.NodeDocDownload, "Document downloaded")
	if path := updateString(ev.Update, state.KeyTempFilePath); path != "" {
		p.TempPath = truncate(path, 80)
		if info, err := os.Stat(path); err == nil {
			size := info.Size()
			p.Bytes = &size
		}
	}
	return []events.Payload{p}
}

func (f Formatter) retrievalStage(node string, value any, format string) []events.Payload {
	chunks, _ := value.([]ports.Chunk)
	count := len(chunks)
	p := events.Stage(node, fmt.Sprintf(format, count))
	p.Count = &count
	if count > 0 {
		p.Sample = truncate(chunks[0].Content, 160)
	}
	return []events.Payload{p}
}

// finalText picks the best-available text for the whole-run final
// payload: a content field, then a response field, then the raw update.
func (f Formatter) finalText(upd state.Update) string {
	if text := extractText(upd[state.KeyContent]); text != "" {
		return text
	}
	if text := extractText(upd[state.KeyResponse]); text != "" {
		return text
	}
	return extractText(upd)
}

func updateString(upd state.Update, key string) string {
	if s, ok := upd[key].(string); ok {
		return s
	}
	return ""
}

func countOf(v any) int {
	switch val := v.(type) {
	case []ports.Message:
		return len(val)
	case []ports.Chunk:
		return len(val)
	case []string:
		return len(val)
	case []any:
		return len(val)
	case map[string]any:
		return len(val)
	}
	return 0
}

// extractText flattens heterogeneous node output into text, preferring
// content-bearing fields.
func extractText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case ports.Message:
		return val.Content
	case ports.Chunk:
		return val.Content
	case []ports.Message:
		var b strings.Builder
		for _, m := range val {
			b.WriteString(m.Content)
		}
		return b.String()
	case []ports.Chunk:
		var b strings.Builder
		for _, c := range val {
			b.WriteString(c.Content)
		}
		return b.String()
	case map[string]any:
		for _, key := range []string{state.KeyContent, "text", state.KeyResponse} {
			if inner, ok := val[key]; ok {
				if text := extractText(inner); text != "" {
					return text
				}
			}
		}
		return ""
	case state.Update:
		return extractText(map[string]any(val))
	case []any:
		var b strings.Builder
		for _, item := range val {
			b.WriteString(extractText(item))
		}
		return b.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// truncate cuts text to limit runes, appending a single ellipsis when
// content was dropped. Never cuts mid-codepoint.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimRight(string(runes[:limit-1]), " \t\n") + "…"
}
