package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hudo/internal/detect"
	"hudo/internal/engine"
	"hudo/internal/installer"
	"hudo/internal/tui"
)

var uninstallForce bool

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall [tool...]",
		Short: "Remove hudo-managed tools",
		Long:  "Remove hudo-managed tools. Without arguments, probes the machine and lists what hudo can remove, stale records, and tools installed outside hudo.",
		RunE:  runUninstall,
	}
	cmd.Flags().BoolVar(&uninstallForce, "force", false, "Drop the record even when a removal step fails")
	return cmd
}

func runUninstall(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 0 {
		results, err := s.engine.Detector().DetectAll(cmd.Context(), s.engine.Catalog.IDs(), detect.Thorough)
		if err != nil {
			return err
		}
		writeUninstallListing(cmd.OutOrStdout(), results)
		return nil
	}

	ids := removalOrder(s.engine.Catalog, toolArgs(args, s.engine.Catalog))
	opts := engine.UninstallOptions{Force: uninstallForce}
	outcomes, err := runBatch(cmd, s, "Removing", ids, func(ctx context.Context) []engine.Outcome {
		var out []engine.Outcome
		for _, id := range ids {
			if ctx.Err() != nil {
				out = append(out, engine.Outcome{Tool: id, Kind: engine.KindCanceled, Err: fmt.Errorf("%s: %w", id, ctx.Err())})
				continue
			}
			o, _ := s.engine.Uninstall(ctx, id, opts)
			out = append(out, o)
		}
		return out
	})
	if err != nil {
		return err
	}
	return reportOutcomes(cmd, outcomes)
}

// writeUninstallListing groups a thorough detection pass into what
// uninstall can remove, records whose install went missing, and tools that
// belong to someone else.
func writeUninstallListing(out io.Writer, results []detect.Result) {
	var removable, stale, external []detect.Result
	for _, r := range results {
		switch {
		case r.Stale:
			stale = append(stale, r)
		case r.Managed():
			removable = append(removable, r)
		case r.State == detect.InstalledExternal:
			external = append(external, r)
		}
	}
	if len(removable)+len(stale)+len(external) == 0 {
		fmt.Fprintln(out, "hudo manages no tools")
		return
	}

	if len(removable) > 0 {
		fmt.Fprintln(out, "Tools hudo can remove:")
		for _, r := range removable {
			fmt.Fprintf(out, "  %-8s %-12s %s\n", r.ToolID, tui.NonEmptyOrDash(r.Version), r.Path)
		}
	}
	if len(stale) > 0 {
		fmt.Fprintln(out, "Stale records (install missing; `hudo uninstall --force <tool>` drops them):")
		for _, r := range stale {
			version, path := "", ""
			if r.Record != nil {
				version, path = r.Record.Version, r.Record.InstallPath
			}
			fmt.Fprintf(out, "  %-8s %-12s %s\n", r.ToolID, tui.NonEmptyOrDash(version), tui.NonEmptyOrDash(path))
		}
	}
	if len(external) > 0 {
		fmt.Fprintln(out, "Installed outside hudo (left alone):")
		for _, r := range external {
			fmt.Fprintf(out, "  %-8s %-12s %s\n", r.ToolID, tui.NonEmptyOrDash(r.Version), tui.NonEmptyOrDash(r.Path))
		}
	}
}

// removalOrder puts dependents before their prerequisites. Unknown ids keep
// their place at the front so they are reported.
func removalOrder(catalog installer.Catalog, ids []string) []string {
	var known, unknown []string
	requested := map[string]bool{}
	for _, id := range ids {
		if _, err := catalog.Lookup(id); err != nil {
			unknown = append(unknown, id)
			continue
		}
		known = append(known, id)
		requested[id] = true
	}
	order, err := catalog.Order(known)
	if err != nil {
		return ids
	}
	out := unknown
	for i := len(order) - 1; i >= 0; i-- {
		if requested[order[i]] {
			out = append(out, order[i])
		}
	}
	return out
}
