package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hudo/internal/detect"
	"hudo/internal/installer"
	"hudo/internal/tui"
)

var (
	listAll   bool
	listProbe bool
)

var categoryOrder = []installer.Category{
	installer.CategoryTool,
	installer.CategoryLanguage,
	installer.CategoryDatabase,
	installer.CategoryIDE,
}

var categoryTitles = map[installer.Category]string{
	installer.CategoryTool:     "Tools",
	installer.CategoryLanguage: "Languages",
	installer.CategoryDatabase: "Databases",
	installer.CategoryIDE:      "Editors",
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show managed tools",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	cmd.Flags().BoolVar(&listAll, "all", false, "Show every tool hudo knows about")
	cmd.Flags().BoolVar(&listProbe, "probe", false, "Probe the machine instead of reading hudo's records")
	return cmd
}

type listEntry struct {
	Tool       string `json:"tool"`
	Category   string `json:"category"`
	State      string `json:"state"`
	Version    string `json:"version,omitempty"`
	Path       string `json:"path,omitempty"`
	Configured bool   `json:"configured"`
	Stale      bool   `json:"stale,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	catalog := s.engine.Catalog
	ids := catalog.IDs()
	if !listAll && !listProbe {
		ids = ids[:0]
		for _, rec := range s.engine.Registry.List() {
			if _, err := catalog.Lookup(rec.ToolID); err == nil {
				ids = append(ids, rec.ToolID)
			}
		}
	}

	mode := detect.Fast
	if listProbe {
		mode = detect.Thorough
	}

	var status *tui.StatusWriter
	if mode == detect.Thorough && tui.DetectMode(cmd.ErrOrStderr(), plainOutput, outputJSON) == tui.ModeTUI {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
		status.Update(fmt.Sprintf("probing %d tools", len(ids)))
	}
	results, err := s.engine.Detector().DetectAll(cmd.Context(), ids, mode)
	if status != nil {
		status.Stop()
	}
	if err != nil {
		return err
	}
	if listProbe && !listAll {
		results = presentOnly(results)
	}

	entries := make([]listEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, toListEntry(catalog, r))
	}

	if outputJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	writeListTable(cmd.OutOrStdout(), entries)
	return nil
}

func presentOnly(results []detect.Result) []detect.Result {
	out := results[:0]
	for _, r := range results {
		if r.State != detect.NotInstalled || r.Stale || r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func toListEntry(catalog installer.Catalog, r detect.Result) listEntry {
	e := listEntry{
		Tool:       r.ToolID,
		State:      r.State.String(),
		Version:    r.Version,
		Path:       r.Path,
		Configured: r.Configured,
		Stale:      r.Stale,
	}
	if inst, err := catalog.Lookup(r.ToolID); err == nil {
		e.Category = string(inst.Describe().Category)
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// entryStatus folds state, staleness and configuration into one word.
func entryStatus(e listEntry) string {
	switch {
	case e.Error != "":
		return "error"
	case e.Stale:
		return "stale"
	case e.State == detect.InstalledByHudo.String() && !e.Configured:
		return "unconfigured"
	default:
		return e.State
	}
}

func writeListTable(out io.Writer, entries []listEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "hudo manages no tools; run `hudo list --all` to see what it can install")
		return
	}

	byCategory := map[string][]listEntry{}
	for _, e := range entries {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	first := true
	for _, cat := range categoryOrder {
		group := byCategory[string(cat)]
		if len(group) == 0 {
			continue
		}
		if !first {
			fmt.Fprintln(out)
		}
		first = false
		fmt.Fprintln(out, tui.TitleStyle.Render(categoryTitles[cat]))
		fmt.Fprintln(out, tui.HeaderStyle.Render(fmt.Sprintf("  %-8s %-14s %-14s %s", "TOOL", "STATUS", "VERSION", "PATH")))
		for _, e := range group {
			status := entryStatus(e)
			styled := tui.StatusStyle(status).Render(fmt.Sprintf("%-14s", status))
			detail := tui.NonEmptyOrDash(e.Path)
			if e.Error != "" {
				detail = tui.TruncateWithEllipsis(e.Error, 60)
			}
			fmt.Fprintf(out, "  %-8s %s %-14s %s\n", e.Tool, styled, tui.NonEmptyOrDash(e.Version), detail)
		}
	}
}
