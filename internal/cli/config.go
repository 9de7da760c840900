package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hudo/internal/config"
	"hudo/internal/installer"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit hudo configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigEditCmd())
	cmd.AddCommand(newConfigResetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a configuration value. Keys: " + strings.Join(config.Keys, ", ") +
			", versions.<tool> and mirrors.<tool>.",
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a version lock or mirror, or restore a default",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigUnset,
	}
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the configuration in $EDITOR",
		Args:  cobra.NoArgs,
		RunE:  runConfigEdit,
	}
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default configuration",
		Long: "Restore the default configuration, dropping every version lock and mirror. " +
			"root_dir is kept, since hudo's records and installs live under it.",
		Args: cobra.NoArgs,
		RunE: runConfigReset,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cfgPath, _, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	return updateConfig(cmd, func(cfg *config.Config) error {
		return cfg.Set(args[0], args[1])
	})
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	return updateConfig(cmd, func(cfg *config.Config) error {
		return cfg.Unset(args[0])
	})
}

func runConfigReset(cmd *cobra.Command, _ []string) error {
	cfgPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reset := config.Default()
	reset.RootDir = cfg.RootDir
	if err := reset.Save(cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reset %s (root_dir %s kept)\n", cfgPath, reset.RootDir)
	return nil
}

// updateConfig applies change and saves the result only if it validates.
func updateConfig(cmd *cobra.Command, change func(*config.Config) error) error {
	cfgPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := change(&cfg); err != nil {
		return err
	}

	results := cfg.Validate(installer.KnownTools())
	if config.HasErrors(results) {
		var msgs []string
		for _, r := range results {
			if r.Level == "error" {
				msgs = append(msgs, r.Message)
			}
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	for _, r := range results {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", r.Message)
	}

	if err := cfg.Save(cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", cfgPath)
	return nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfgPath, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureConfigFileExists(cfgPath); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = defaultEditor()
	}

	parts := splitEditorCommand(editor)
	if len(parts) == 0 {
		return fmt.Errorf("invalid EDITOR value: %q", editor)
	}

	parts = append(parts, cfgPath)

	execCmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	execCmd.Stdout = cmd.OutOrStdout()
	execCmd.Stderr = cmd.ErrOrStderr()
	execCmd.Stdin = cmd.InOrStdin()
	execCmd.Dir = filepath.Dir(cfgPath)

	if err := execCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	if _, err := config.Load(cfgPath); err != nil {
		return fmt.Errorf("edited configuration does not parse: %w", err)
	}
	return nil
}

func defaultEditor() string {
	if installer.CurrentPlatform().OS == "windows" {
		return "notepad"
	}
	return "vi"
}

func ensureConfigFileExists(cfgPath string) error {
	if _, err := os.Stat(cfgPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	return config.Default().Save(cfgPath)
}

func splitEditorCommand(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	// Basic splitting on whitespace; handles simple EDITOR values like "nano" or "code -w".
	fields := strings.Fields(value)
	return append([]string{}, fields...)
}
