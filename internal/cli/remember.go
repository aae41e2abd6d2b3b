package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/keepsake-dev/keepsake/internal/memory"
)

var (
	rememberType       string
	rememberConfidence float64
	rememberSession    string
	rememberTags       []string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a memory atom directly",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemember,
}

func init() {
	rememberCmd.Flags().StringVar(&rememberType, "type", string(memory.TypePreference), "atom type (identity, value, thinking, preference, communication)")
	rememberCmd.Flags().Float64Var(&rememberConfidence, "confidence", 0.5, "initial confidence in [0,1]")
	rememberCmd.Flags().StringVar(&rememberSession, "session", "manual", "source session id")
	rememberCmd.Flags().StringSliceVar(&rememberTags, "tag", nil, "tags (repeatable)")
}

func runRemember(cmd *cobra.Command, args []string) error {
	engine, _, _, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	a := memory.New(memory.Type(rememberType), args[0], rememberConfidence, rememberSession)
	a.Tags = rememberTags

	reinforced, err := engine.Remember(a, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("stored %s [%s]\n", a.ID, a.Type)
	if reinforced > 0 {
		fmt.Printf("reinforced %d matching memories\n", reinforced)
	}
	return nil
}
