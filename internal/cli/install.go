package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"hudo/internal/engine"
	"hudo/internal/installer"
)

var (
	installTakeover      bool
	installForce         bool
	installSkipConfigure bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <tool>... | all",
		Short: "Install and configure tools",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runInstall,
	}

	cmd.Flags().BoolVar(&installTakeover, "takeover", false, "Install a managed copy even when the tool is already installed by something else")
	cmd.Flags().BoolVar(&installForce, "force", false, "Reinstall even when the recorded version is current")
	cmd.Flags().BoolVar(&installSkipConfigure, "skip-configure", false, "Install files and environment only")

	return cmd
}

func newConfigureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure <tool>...",
		Short: "Retry configuration of installed tools without downloading",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runConfigure,
	}
}

func runInstall(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ids := toolArgs(args, s.engine.Catalog)
	opts := engine.Options{
		Takeover:      installTakeover,
		Force:         installForce,
		SkipConfigure: installSkipConfigure,
	}
	outcomes, err := runBatch(cmd, s, "Installing", ids, func(ctx context.Context) []engine.Outcome {
		return s.engine.InstallMany(ctx, ids, opts)
	})
	if err != nil {
		return err
	}
	return reportOutcomes(cmd, outcomes)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ids := toolArgs(args, s.engine.Catalog)
	outcomes, err := runBatch(cmd, s, "Configuring", ids, func(ctx context.Context) []engine.Outcome {
		var out []engine.Outcome
		for _, id := range ids {
			o, _ := s.engine.Configure(ctx, id)
			out = append(out, o)
		}
		return out
	})
	if err != nil {
		return err
	}
	return reportOutcomes(cmd, outcomes)
}

// toolArgs lower-cases and de-duplicates tool arguments. "all" expands to
// the whole catalog.
func toolArgs(args []string, catalog installer.Catalog) []string {
	seen := map[string]bool{}
	var ids []string
	for _, arg := range args {
		id := strings.ToLower(strings.TrimSpace(arg))
		if id == "" || seen[id] {
			continue
		}
		if id == "all" {
			return catalog.IDs()
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
