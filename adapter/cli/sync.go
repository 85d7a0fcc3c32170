package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one board mirror pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		result, err := c.Reconciler.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Sync complete: created=%d updated=%d completed=%d reopened=%d deleted=%d folded=%d\n",
			result.Created, result.Updated, result.Completed, result.Reopened, result.Deleted, result.Folded)
		if result.EnrichmentFailures > 0 {
			fmt.Printf("Assignee lookups degraded for %d card(s).\n", result.EnrichmentFailures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
