package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keepsake-dev/keepsake/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook <event>",
	Short: "Handle a host hook event (reads JSON from stdin)",
	Long:  "Dispatches a host hook event. `keepsake hook session-start` reads the event JSON from stdin, asks the server for the memory context block, and prints the hook output JSON on stdout. Degrades to an empty context when the server is down.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "session-start":
			hooks.Handle(args[0], os.Stdin)
			return nil
		default:
			return fmt.Errorf("unknown hook event: %s", args[0])
		}
	},
}
