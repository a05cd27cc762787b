package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"mailfetch/internal/config"
	"mailfetch/internal/secrets"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the mailfetch configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigEditCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var showPassword bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where the credentials come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg, showPassword)
		},
	}

	cmd.Flags().BoolVar(&showPassword, "show-password", false, "Print the password instead of a mask")

	return cmd
}

// writeConfig prints cfg as yaml followed by comment lines describing the
// config file, the password source and the keyring backend in use.
func writeConfig(out io.Writer, cfg config.Config, showPassword bool) error {
	if !showPassword {
		cfg = config.Redact(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}

	if path, err := config.ConfigPath(); err == nil {
		fmt.Fprintf(out, "# config file: %s\n", path)
	}

	source := cfg.Auth.PasswordSource
	if source == "" {
		source = "none"
	}
	fmt.Fprintf(out, "# password source: %s\n", source)

	backend := secrets.ResolveBackend(cfg.KeyringBackend)
	fmt.Fprintf(out, "# keyring backend: %s (from %s)\n", backend.Value, backend.Source)
	return nil
}

func newConfigEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the config file in $EDITOR, creating it with defaults first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ensureConfigFile()
			if err != nil {
				return err
			}
			editor := os.Getenv("EDITOR")
			if editor == "" {
				return fmt.Errorf("EDITOR not set; config file is %s", path)
			}
			editCmd := exec.CommandContext(cmd.Context(), editor, path)
			editCmd.Stdout = cmd.OutOrStdout()
			editCmd.Stderr = cmd.ErrOrStderr()
			editCmd.Stdin = os.Stdin
			return editCmd.Run()
		},
	}

	return cmd
}

// ensureConfigFile writes the default configuration when no config file
// exists yet, so the editor opens a complete template.
func ensureConfigFile() (string, error) {
	path, err := config.ConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return config.Save(config.DefaultConfig())
}
