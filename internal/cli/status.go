package cli

import (
	"fmt"

	"mailfetch/internal/config"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var mailbox string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mailbox status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadIMAPConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("mailbox") && cfg.Fetch.Mailbox != "" {
				mailbox = cfg.Fetch.Mailbox
			}

			status, err := newService(logger).Status(cmd.Context(), cfg, mailbox)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d messages, %d unseen\n", status.Name, status.Messages, status.Unseen)
			return nil
		},
	}

	cmd.Flags().StringVar(&mailbox, "mailbox", config.DefaultMailbox, "Mailbox name")

	return cmd
}
