package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Send the daily activity summary now",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		if err := c.DailySummary.Run(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Daily summary sent.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
