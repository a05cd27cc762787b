package cli

import (
	"fmt"

	"mailfetch/internal/config"
	"mailfetch/internal/imap"

	"github.com/spf13/cobra"
)

type fetchFlags struct {
	mailbox    string
	limit      int
	unread     bool
	bestEffort bool
	output     string
}

func newFetchCmd() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch messages from a mailbox",
		Long: "Fetch the messages of a mailbox as records (id, date, from, to, subject, body, read). " +
			"Messages are read without changing their \\Seen flag.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.mailbox, "mailbox", config.DefaultMailbox, "Mailbox name")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Keep only the N most recent matches (0 for all)")
	cmd.Flags().BoolVar(&flags.unread, "unread", false, "Only fetch messages without the \\Seen flag")
	cmd.Flags().BoolVar(&flags.bestEffort, "best-effort", false, "Skip messages that cannot be fetched")
	cmd.Flags().StringVarP(&flags.output, "output", "o", outputJSON, "Output format (json, yaml or table)")

	return cmd
}

func runFetch(cmd *cobra.Command, flags fetchFlags) error {
	if err := validateOutput(flags.output); err != nil {
		return err
	}

	cfg, logger, err := loadIMAPConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := fetchOptions(cmd, cfg, flags)
	if err != nil {
		return err
	}

	records, err := newService(logger).FetchMailbox(cmd.Context(), cfg, opts)
	if err != nil {
		return err
	}

	return printRecords(cmd.OutOrStdout(), records, flags.output)
}

// fetchOptions merges the config file defaults with the flags the user set.
func fetchOptions(cmd *cobra.Command, cfg config.Config, flags fetchFlags) (imap.FetchOptions, error) {
	opts := imap.FetchOptions{
		Mailbox: cfg.Fetch.Mailbox,
		Filter: imap.SearchFilter{
			OnlyUnread: cfg.Fetch.OnlyUnread,
			Limit:      cfg.Fetch.Limit,
		},
		BestEffort: cfg.Fetch.BestEffort,
	}

	changed := cmd.Flags().Changed
	if changed("mailbox") {
		opts.Mailbox = flags.mailbox
	}
	if changed("limit") {
		if flags.limit < 0 {
			return opts, fmt.Errorf("--limit must not be negative, got %d", flags.limit)
		}
		opts.Filter.Limit = flags.limit
	}
	if changed("unread") {
		opts.Filter.OnlyUnread = flags.unread
	}
	if changed("best-effort") {
		opts.BestEffort = flags.bestEffort
	}
	if opts.Mailbox == "" {
		opts.Mailbox = config.DefaultMailbox
	}
	return opts, nil
}
