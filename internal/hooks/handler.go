package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Handle reads HookInput from stdin, dispatches on the event argument, and
// writes hook output to stdout. The session-start hook always produces
// valid output, degrading to an empty context when anything fails.
func Handle(event string, stdin io.Reader) {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		// Stdin may be empty; degrade gracefully
		if event == "session-start" {
			WriteSessionStartOutput(os.Stdout, "")
			return
		}
		ExitError(fmt.Errorf("decode stdin: %w", err))
		return
	}

	client := NewClient()

	if !client.Healthy() {
		if event == "session-start" {
			WriteSessionStartOutput(os.Stdout, "")
		}
		return
	}

	switch event {
	case "session-start":
		handleSessionStart(client, &input, os.Stdout)
	default:
		ExitError(fmt.Errorf("unknown hook event: %s", event))
	}
}
