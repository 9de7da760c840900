package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"hudo/internal/engine"
	"hudo/internal/tui"
)

type outcomeView struct {
	Tool    string `json:"tool"`
	Result  string `json:"result"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

func viewOutcome(o engine.Outcome) outcomeView {
	v := outcomeView{Tool: o.Tool, Result: string(o.Kind), Version: o.Version, Path: o.Path}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	return v
}

// runBatch runs work under the output mode picked for the command: a live
// table on a terminal, one line per stage otherwise, and nothing but the
// final JSON with --json.
func runBatch(cmd *cobra.Command, s *session, title string, ids []string, work func(ctx context.Context) []engine.Outcome) ([]engine.Outcome, error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	switch tui.DetectMode(cmd.OutOrStdout(), plainOutput, outputJSON) {
	case tui.ModeJSON:
		return work(ctx), nil
	case tui.ModePlain:
		s.engine.Observer = plainObserver(cmd.ErrOrStderr())
		return work(ctx), nil
	}

	var outcomes []engine.Outcome
	done := make(chan struct{})
	err := tui.RunWithWork(cmd.OutOrStdout(), tui.NewToolTable(title, ids), func(send func(tea.Msg)) {
		defer close(done)
		s.engine.Observer = tui.Observer(send)
		outcomes = work(ctx)
	})
	// An interrupted table returns before the work does.
	cancel()
	<-done
	return outcomes, err
}

func plainObserver(w io.Writer) func(engine.Event) {
	return func(ev engine.Event) {
		if ev.Stage == engine.StageDownload && ev.Done > 0 {
			return
		}
		line := fmt.Sprintf("%-8s %-12s %s", ev.Tool, ev.Stage, ev.Version)
		if ev.Err != nil {
			line += "  " + ev.Err.Error()
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// reportOutcomes prints a summary and returns the joined fatal errors.
func reportOutcomes(cmd *cobra.Command, outcomes []engine.Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Kind.Fatal() && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Tool, o.Err))
		}
	}

	if outputJSON {
		views := make([]outcomeView, 0, len(outcomes))
		for _, o := range outcomes {
			views = append(views, viewOutcome(o))
		}
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		cmd.Println(string(data))
		return errors.Join(errs...)
	}

	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		status := kindStyle(o.Kind).Render(fmt.Sprintf("%-20s", o.Kind))
		fmt.Fprintf(out, "  %-8s %s %s\n", o.Tool, status, tui.NonEmptyOrDash(o.Version))
		if !o.Kind.Fatal() {
			continue
		}
		if o.Err != nil {
			fmt.Fprintf(out, "           %s\n", tui.ErrorStyle.Render(o.Err.Error()))
		}
		for _, hint := range engine.Guidance(o.Kind) {
			fmt.Fprintf(out, "           %s\n", tui.FaintStyle.Render(hint))
		}
	}
	return errors.Join(errs...)
}

func kindStyle(k engine.Kind) lipgloss.Style {
	switch {
	case k == engine.KindExternal:
		return tui.WarnStyle
	case k.Fatal():
		return tui.ErrorStyle
	default:
		return tui.OKStyle
	}
}
