package cli

import (
	"mailfetch/internal/config"

	"github.com/spf13/cobra"
)

func newInboxCmd() *cobra.Command {
	cmd := newFetchCmd()
	cmd.Use = "inbox"
	cmd.Short = "Fetch messages from INBOX"
	cmd.Long = ""
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Flags().Set("mailbox", config.DefaultMailbox)
	}
	_ = cmd.Flags().MarkHidden("mailbox")
	return cmd
}
