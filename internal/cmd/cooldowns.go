package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var cooldownsJSON bool

var cooldownsCmd = &cobra.Command{
	Use:     "cooldowns",
	GroupID: GroupInspect,
	Short:   "Show endpoint cooldown state",
	Long: `Show per-endpoint availability: which upstream endpoints are cooling
down, why, and for how long.`,
	RunE: runCooldowns,
}

var cooldownsResetCmd = &cobra.Command{
	Use:   "reset <endpoint>",
	Short: "Clear an endpoint's rate-limit cooldown",
	Long: `Clear the active rate-limit cooldown and backoff level for one
endpoint. Connectivity cooldowns (connection resets, timeouts, DNS
failures) are left to expire on their own.`,
	Args: cobra.ExactArgs(1),
	RunE: runCooldownsReset,
}

func init() {
	cooldownsCmd.Flags().BoolVar(&cooldownsJSON, "json", false, "Output as JSON")
	cooldownsCmd.AddCommand(cooldownsResetCmd)
	rootCmd.AddCommand(cooldownsCmd)
}

func runCooldowns(cmd *cobra.Command, args []string) error {
	cfg, stateDir, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl := newController(cfg, stateDir, quietLogger())
	report := ctrl.ConnectionStatus()

	if cooldownsJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s %d/%d endpoints available\n\n",
		ui.Bold.Render("Cooldowns:"),
		report.Summary.AvailableConnections, report.Summary.TotalConnections)

	tbl := ui.NewTable(
		ui.Column{Name: "Endpoint", Width: 24},
		ui.Column{Name: "State", Width: 12},
		ui.Column{Name: "Reason", Width: 18},
		ui.Column{Name: "Remaining", Width: 10, Align: ui.AlignRight},
	)
	for _, e := range cooldown.AllEndpoints() {
		cs := report.Connections[e]
		if cs.Available {
			tbl.AddRow(string(e), ui.Success.Render("available"), "", "")
			continue
		}
		remaining := time.Duration(cs.RemainingMS) * time.Millisecond
		tbl.AddRow(
			string(e),
			ui.Warning.Render("cooling"),
			string(cs.Reason),
			remaining.Round(time.Second).String(),
		)
	}
	fmt.Print(tbl.Render())

	if report.Summary.AvailableConnections == 0 && report.Summary.NextAvailableInMS > 0 {
		next := time.Duration(report.Summary.NextAvailableInMS) * time.Millisecond
		fmt.Printf("\nNext endpoint available in %s\n", next.Round(time.Second))
	}
	return nil
}

func runCooldownsReset(cmd *cobra.Command, args []string) error {
	cfg, stateDir, err := loadConfig()
	if err != nil {
		return err
	}

	var endpoint cooldown.Endpoint
	for _, e := range cooldown.AllEndpoints() {
		if string(e) == args[0] {
			endpoint = e
			break
		}
	}
	if endpoint == "" {
		return fmt.Errorf("unknown endpoint %q (one of %v)", args[0], cooldown.AllEndpoints())
	}

	ctrl := newController(cfg, stateDir, quietLogger())
	ctrl.ResetOnSuccess(endpoint)
	fmt.Printf("%s Cleared rate-limit cooldown for %s\n", ui.Success.Render("✓"), endpoint)
	return nil
}
