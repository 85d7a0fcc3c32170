package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Inspect and adjust delay scores",
}

var scoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List per-member running scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		members, err := c.MemberRepo.FindAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(members) == 0 {
			fmt.Println("No members recorded yet.")
			return nil
		}

		for _, m := range members {
			score := "-"
			if m.HistoricalScore != nil {
				score = strconv.FormatFloat(*m.HistoricalScore, 'f', 2, 64)
			}
			name := m.DisplayName
			if name == "" {
				name = m.Ref
			}
			fmt.Printf("%-30s score=%s tasks=%d\n", name, score, m.TotalTasksCounted)
		}
		return nil
	},
}

var scoreOverrideCmd = &cobra.Command{
	Use:   "override <card-id> <score>",
	Short: "Override the delay score for one task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		score, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", args[1], err)
		}

		if err := c.ScoreEngine.SetOverride(cmd.Context(), args[0], score); err != nil {
			return err
		}

		fmt.Printf("Score for %s overridden to %.2f\n", args[0], score)
		return nil
	},
}

func init() {
	scoreCmd.AddCommand(scoreListCmd)
	scoreCmd.AddCommand(scoreOverrideCmd)
	rootCmd.AddCommand(scoreCmd)
}
