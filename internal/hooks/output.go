package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SessionStartOutput is the JSON structure the host expects on stdout from
// the session-start hook. The retrieved memory block is embedded verbatim
// as additional context.
type SessionStartOutput struct {
	HookSpecificOutput struct {
		HookEventName     string `json:"hookEventName"`
		AdditionalContext string `json:"additionalContext"`
	} `json:"hookSpecificOutput"`
}

// WriteSessionStartOutput writes the session-start response to w.
func WriteSessionStartOutput(w io.Writer, context string) error {
	out := SessionStartOutput{}
	out.HookSpecificOutput.HookEventName = "SessionStart"
	out.HookSpecificOutput.AdditionalContext = context
	return json.NewEncoder(w).Encode(out)
}

// ExitError logs to stderr and exits 0 (hooks must never crash the host).
func ExitError(err error) {
	fmt.Fprintf(os.Stderr, "keepsake hook: %v\n", err)
	os.Exit(0)
}
