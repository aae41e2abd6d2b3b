package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run the tier sweep: evict faded atoms, promote proven ones",
	RunE:  runMaintain,
}

func runMaintain(cmd *cobra.Command, args []string) error {
	engine, _, _, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	transitions, err := engine.Maintain(time.Now())
	if err != nil {
		return err
	}

	if len(transitions) == 0 {
		fmt.Println("no transitions")
		return nil
	}
	for _, t := range transitions {
		if t.Deleted() {
			fmt.Printf("%s  %s -> deleted  (%s)\n", t.AtomID, t.From, t.Reason)
			continue
		}
		fmt.Printf("%s  %s -> %s  (%s)\n", t.AtomID, t.From, t.To, t.Reason)
	}
	return nil
}
