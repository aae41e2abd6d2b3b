package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var retrieveContext string

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run the session-start cycle and print the injection block",
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveContext, "context", "", "context hint used for relevance scoring")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	engine, _, _, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	block, scored, err := engine.SessionStart(retrieveContext, time.Now())
	if err != nil {
		return err
	}

	if block == "" {
		fmt.Println("no memories cleared the confidence threshold")
		return nil
	}
	fmt.Println(block)
	fmt.Printf("\n%d memories selected\n", len(scored))
	return nil
}
