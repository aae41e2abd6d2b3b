package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepsake-dev/keepsake/internal/memory"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-tier memory counts and upcoming evictions",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, _, _, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := engine.Status()
	if err != nil {
		return err
	}

	total := 0
	for _, tier := range memory.Tiers() {
		ts := status[tier]
		total += ts.Count
		line := fmt.Sprintf("%-11s %4d atoms", tier, ts.Count)
		if ts.NextRemoval != nil {
			line += fmt.Sprintf("   next eviction ~%s", ts.NextRemoval.Format("2006-01-02"))
		}
		fmt.Println(line)
	}
	fmt.Printf("%-11s %4d atoms\n", "total", total)
	return nil
}
