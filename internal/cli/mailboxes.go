package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMailboxesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailboxes",
		Short: "Mailbox operations",
	}
	cmd.AddCommand(newMailboxesListCmd())
	return cmd
}

func newMailboxesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mailboxes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadIMAPConfig(cmd)
			if err != nil {
				return err
			}

			mailboxes, err := newService(logger).ListMailboxes(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			for _, name := range mailboxes {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	return cmd
}
