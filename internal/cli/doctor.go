package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"hudo/internal/config"
	"hudo/internal/detect"
	"hudo/internal/installer"
	"hudo/internal/paths"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check hudo's records against the machine",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfgPath, cfg, cfgErr := loadConfig()
	if cfgErr != nil {
		return writeDoctorResult(cmd, cfgPath, []healthCheck{{Name: "Config", Status: "error", Summary: cfgErr.Error()}})
	}

	var checks []healthCheck
	checks = append(checks, checkConfig(cfg, installer.KnownTools()))
	checks = append(checks, checkRoot(cfg.RootDir))

	s, err := openSession(cmd)
	if err != nil {
		checks = append(checks, healthCheck{Name: "State", Status: "error", Summary: err.Error()})
		return writeDoctorResult(cmd, cfg.RootDir, checks)
	}
	defer s.Close()

	results, err := s.engine.Detector().DetectAll(cmd.Context(), s.engine.Catalog.IDs(), detect.Thorough)
	if err != nil {
		return err
	}
	checks = append(checks, checkRecords(results)...)
	return writeDoctorResult(cmd, s.engine.Layout.Root, checks)
}

func checkConfig(cfg config.Config, known []string) healthCheck {
	results := cfg.Validate(known)
	if len(results) == 0 {
		return healthCheck{Name: "Config", Status: "ok", Summary: "valid"}
	}
	msgs := make([]string, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, r.Message)
	}
	status := "warning"
	if config.HasErrors(results) {
		status = "error"
	}
	return healthCheck{Name: "Config", Status: status, Summary: strings.Join(msgs, "; ")}
}

func checkRoot(root string) healthCheck {
	layout, err := paths.Resolve(root)
	if err != nil {
		return healthCheck{Name: "Root", Status: "error", Summary: err.Error()}
	}
	exists, err := paths.DirExists(layout.Root)
	if err != nil {
		return healthCheck{Name: "Root", Status: "error", Summary: fmt.Sprintf("stat %s: %v", layout.Root, err)}
	}
	if !exists {
		return healthCheck{Name: "Root", Status: "warning", Summary: fmt.Sprintf("%s does not exist yet; it is created on first install", layout.Root)}
	}
	probe, err := os.CreateTemp(layout.Root, ".doctor-*")
	if err != nil {
		return healthCheck{Name: "Root", Status: "error", Summary: fmt.Sprintf("%s is not writable: %v", layout.Root, err)}
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return healthCheck{Name: "Root", Status: "ok", Summary: layout.Root}
}

// checkRecords turns a thorough detection pass into findings: managed
// tools, stale records, unconfigured installs and probe failures.
func checkRecords(results []detect.Result) []healthCheck {
	var managed, external, stale, unconfigured, failed []string
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed = append(failed, fmt.Sprintf("%s (%v)", r.ToolID, r.Err))
		case r.Stale:
			stale = append(stale, r.ToolID)
		case r.State == detect.InstalledByHudo && !r.Configured:
			unconfigured = append(unconfigured, r.ToolID)
		case r.State == detect.InstalledByHudo:
			managed = append(managed, r.ToolID)
		case r.State == detect.InstalledExternal:
			external = append(external, r.ToolID)
		}
	}

	tools := healthCheck{Name: "Tools", Status: "ok", Summary: "no tools installed by hudo"}
	if len(managed) > 0 {
		tools.Summary = fmt.Sprintf("%d managed: %s", len(managed), joinComma(managed))
	}
	checks := []healthCheck{tools}

	if len(external) > 0 {
		checks = append(checks, healthCheck{
			Name:    "External",
			Status:  "ok",
			Summary: fmt.Sprintf("left alone: %s", joinComma(external)),
		})
	}
	if len(stale) > 0 {
		checks = append(checks, healthCheck{
			Name:    "Stale",
			Status:  "warning",
			Summary: fmt.Sprintf("recorded but not found where hudo put them: %s (reinstall or `hudo uninstall --force`)", joinComma(stale)),
		})
	}
	if len(unconfigured) > 0 {
		checks = append(checks, healthCheck{
			Name:    "Configure",
			Status:  "warning",
			Summary: fmt.Sprintf("installed but not configured: %s (run `hudo configure %s`)", joinComma(unconfigured), strings.Join(unconfigured, " ")),
		})
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		checks = append(checks, healthCheck{
			Name:    "Probe",
			Status:  "warning",
			Summary: joinComma(failed),
		})
	}
	return checks
}

func writeDoctorResult(cmd *cobra.Command, root string, checks []healthCheck) error {
	if outputJSON {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("HUDO HEALTH:")+" "+root)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}
