package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run the notification scans once",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		if err := c.Dispatcher.RunAll(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Notification scans complete.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
