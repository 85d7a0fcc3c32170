package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage member contact details",
}

var memberDisplayName string

var memberSetEmailCmd = &cobra.Command{
	Use:   "set-email <member-id> <email>",
	Short: "Record the email address for a board member",
	Long: `Records where a member's notification copies go. Board payloads
never carry email addresses, so assignee notifications are only sent to
members registered here.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		member, err := c.Directory.SetContact(cmd.Context(), args[0], args[1], memberDisplayName)
		if err != nil {
			return err
		}

		name := member.DisplayName
		if name == "" {
			name = member.Ref
		}
		fmt.Printf("Email for %s set to %s\n", name, member.Email)
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known members and their contact details",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		members, err := c.Directory.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(members) == 0 {
			fmt.Println("No members recorded yet.")
			return nil
		}

		for _, m := range members {
			name := m.DisplayName
			if name == "" {
				name = m.Ref
			}
			email := m.Email
			if email == "" {
				email = "-"
			}
			fmt.Printf("%-30s %-30s %s\n", name, email, m.Ref)
		}
		return nil
	},
}

func init() {
	memberSetEmailCmd.Flags().StringVar(&memberDisplayName, "name", "", "display name to record")

	memberCmd.AddCommand(memberSetEmailCmd)
	memberCmd.AddCommand(memberListCmd)
	rootCmd.AddCommand(memberCmd)
}
