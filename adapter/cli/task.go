package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/boardsync/internal/mirror/application"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, update, and delete board cards",
}

var (
	taskDesc   string
	taskDue    string
	taskMember string
	taskDone   bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title> [card-id]",
	Short: "Create a card on the board, or update one by id",
	Long: `Creates a card on the board and mirrors it locally. With a card id
the existing card is updated in place. Requires TRELLO_OPEN_LIST_ID
(and TRELLO_DONE_LIST_ID for --done) to be configured.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		due, err := parseDueDate(taskDue)
		if err != nil {
			return err
		}

		edit := application.CardEdit{
			Title:       args[0],
			Description: taskDesc,
			Due:         due,
			MemberRef:   taskMember,
			Completed:   taskDone,
		}
		if len(args) == 2 {
			edit.CardID = args[1]
		}

		snapshot, err := c.CardEditor.Apply(cmd.Context(), edit)
		if err != nil {
			return err
		}

		verb := "created"
		if edit.CardID != "" {
			verb = "updated"
		}
		fmt.Printf("Card %s: %s (%s)\n", verb, snapshot.Name, snapshot.ID)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <card-id>",
	Short: "Delete a card from the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		if err := c.CardEditor.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("Card %s deleted\n", args[0])
		return nil
	},
}

// parseDueDate accepts a bare date or a full RFC 3339 timestamp. A bare
// date means end of that day in UTC.
func parseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if d, err := time.Parse("2006-01-02", value); err == nil {
		t := d.Add(23*time.Hour + 59*time.Minute)
		return &t, nil
	}
	return nil, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or RFC 3339", value)
}

func init() {
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "card description")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	taskAddCmd.Flags().StringVar(&taskMember, "member", "", "board member id to assign")
	taskAddCmd.Flags().BoolVar(&taskDone, "done", false, "place the card in the done list")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}
