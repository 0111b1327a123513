package state

import "fmt"

// Keys every pipeline run must carry before the first node executes.
const (
	KeySessionID     = "session_id"
	KeyUserID        = "user_id"
	KeyMessage       = "message"
	KeyDocumentURL   = "document_url"
	KeyIntent        = "intent"
	KeySafeSessionID = "safe_session_id"
	KeyHistory       = "history"
	KeyPolicyContext = "policy_context"
	KeyDocContext    = "doc_context"
	KeyTempFilePath  = "tmp_file_path"
	KeyFullMessage   = "full_user_message"
	KeyResponse      = "response"
	KeyContent       = "content"
)

// State is the key/value bag threaded through one graph execution.
// A State instance is owned by exactly one in-flight run and is never
// shared between concurrent runs.
type State map[string]any

// Update is the partial state contribution returned by a node. The
// runtime merges it into the running State before routing onward.
type Update map[string]any

// New builds a state bag from an initial set of values.
func New(values map[string]any) State {
	st := make(State, len(values))
	for k, v := range values {
		st[k] = v
	}
	return st
}

// Merge folds an update into the state. Keys written by a node are
// merged into, not replacing, the existing map.
func (s State) Merge(upd Update) {
	for k, v := range upd {
		s[k] = v
	}
}

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// String returns the value for key if it is a non-empty string.
func (s State) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Count reports the number of elements behind key when the value is a
// slice or map, otherwise 0.
func (s State) Count(key string) int {
	switch v := s[key].(type) {
	case []string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	}
	return 0
}

// ValidateRequired checks that the keys every run depends on are
// present and non-empty. Runs with an incomplete initial state must
// fail before the first node executes.
func (s State) ValidateRequired() error {
	for _, key := range []string{KeySessionID, KeyMessage, KeyUserID} {
		if s.String(key) == "" {
			return fmt.Errorf("initial state missing required field %q", key)
		}
	}
	return nil
}
