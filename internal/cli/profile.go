package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hudo/internal/engine"
	"hudo/internal/profile"
)

var importTakeover bool

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the managed toolchain as a TOML profile",
		Long:  "Write the managed toolchain, mirrors and portable tool settings as a TOML profile. Secrets are never exported. Without a file the profile is printed.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Install the tools and settings listed in a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().BoolVar(&importTakeover, "takeover", false, "Install managed copies of tools already installed by something else")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.engine.Export(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		data, err := p.Encode()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := p.Save(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d tools to %s\n", len(p.Tools), args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	p, err := profile.Load(args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := engine.Options{Takeover: importTakeover}
	outcomes, err := runBatch(cmd, s, "Importing "+args[0], p.IDs(), func(ctx context.Context) []engine.Outcome {
		return s.engine.Import(ctx, p, opts)
	})
	if err != nil {
		return err
	}
	return reportOutcomes(cmd, outcomes)
}
