package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hudo/internal/selfupdate"
)

var selfUpdateCheck bool

func newSelfUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Replace this hudo binary with the latest release",
		Args:  cobra.NoArgs,
		RunE:  runSelfUpdate,
	}
	cmd.Flags().BoolVar(&selfUpdateCheck, "check", false, "Only report whether an update is available")
	return cmd
}

type selfUpdateResult struct {
	Current   string `json:"current"`
	Latest    string `json:"latest"`
	Available bool   `json:"available"`
	Updated   bool   `json:"updated"`
}

func runSelfUpdate(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	u, err := selfupdate.New(Version, s.engine.Env.Fetcher, s.logger)
	if err != nil {
		return err
	}
	latest, newer, err := u.Check(cmd.Context())
	if err != nil {
		return err
	}

	res := selfUpdateResult{Current: Version, Latest: latest, Available: newer}
	if newer && !selfUpdateCheck {
		if err := u.Apply(cmd.Context(), latest); err != nil {
			return err
		}
		res.Updated = true
	}

	if outputJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	switch {
	case res.Updated:
		cmd.Printf("updated hudo %s -> %s\n", res.Current, res.Latest)
	case res.Available:
		cmd.Printf("hudo %s is available (running %s)\n", res.Latest, res.Current)
	default:
		cmd.Printf("hudo %s is up to date\n", res.Current)
	}
	return nil
}
