package cli

import (
	"fmt"
	"os"
	"strings"

	"mailfetch/internal/config"
	"mailfetch/internal/secrets"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Account setup and credentials",
	}
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		imapHost     string
		imapPort     int
		imapTLS      bool
		imapStartTLS bool
		imapInsecure bool

		username       string
		password       string
		storeInConfig  bool
		keyringBackend string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the IMAP account and its password",
		Long: "Store the IMAP account in the config file. The password goes to the OS keyring " +
			"unless --store-in-config is set. Without --password it is read from the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("imap-host") {
				cfg.IMAP.Host = imapHost
			}
			if cmd.Flags().Changed("imap-port") {
				cfg.IMAP.Port = imapPort
			}
			if cmd.Flags().Changed("imap-tls") {
				cfg.IMAP.TLS = imapTLS
			}
			if cmd.Flags().Changed("imap-starttls") {
				cfg.IMAP.StartTLS = imapStartTLS
				if imapStartTLS && !cmd.Flags().Changed("imap-tls") {
					cfg.IMAP.TLS = false
				}
			}
			if cmd.Flags().Changed("imap-insecure") {
				cfg.IMAP.InsecureSkipVerify = imapInsecure
			}
			if cmd.Flags().Changed("username") {
				cfg.Auth.Username = username
			}
			if cmd.Flags().Changed("keyring-backend") {
				cfg.KeyringBackend = keyringBackend
			}

			if !cmd.Flags().Changed("password") {
				password, err = promptPassword(cmd)
				if err != nil {
					return err
				}
			}

			cfg.Auth.Password = password
			if err := config.ValidateIMAP(cfg); err != nil {
				return err
			}

			if !storeInConfig {
				if err := secrets.SetPassword(cfg, password); err != nil {
					return err
				}
				cfg.Auth.Password = ""
				fmt.Fprintf(cmd.OutOrStdout(), "Password stored in keyring for %s@%s\n", cfg.Auth.Username, cfg.IMAP.Host)
			}

			path, err := config.Save(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&imapHost, "imap-host", "", "IMAP host")
	cmd.Flags().IntVar(&imapPort, "imap-port", 0, "IMAP port")
	cmd.Flags().BoolVar(&imapTLS, "imap-tls", false, "Use IMAP implicit TLS")
	cmd.Flags().BoolVar(&imapStartTLS, "imap-starttls", false, "Use IMAP STARTTLS")
	cmd.Flags().BoolVar(&imapInsecure, "imap-insecure", false, "Skip IMAP TLS verification")

	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password or app password")
	cmd.Flags().BoolVar(&storeInConfig, "store-in-config", false, "Keep the password in the config file instead of the keyring")
	cmd.Flags().StringVar(&keyringBackend, "keyring-backend", "", "Keyring backend (auto, keychain or file)")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored password from the keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := secrets.DeletePassword(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password removed for %s@%s\n", cfg.Auth.Username, cfg.IMAP.Host)
			return nil
		},
	}
	return cmd
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to read the password from; pass --password")
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
