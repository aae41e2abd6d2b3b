package hooks

// HookInput is the JSON the host sends on stdin to hook handlers. Fields
// are optional; different events populate different subsets.
type HookInput struct {
	SessionID     string `json:"session_id"`
	CWD           string `json:"cwd"`
	HookEventName string `json:"hook_event_name"`

	// SessionStart
	Source string `json:"source,omitempty"`
	Model  string `json:"model,omitempty"`

	// UserPromptSubmit, used as the retrieval context hint when present
	Prompt string `json:"prompt,omitempty"`
}
