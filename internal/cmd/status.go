package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/store"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupInspect,
	Short:   "Show local queue and worker health",
	Long: `Show the local check queue, deferred work, endpoint availability, and
when configured, the shared queue service stats.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, stateDir, err := loadConfig()
	if err != nil {
		return err
	}
	logger := quietLogger()

	qc, err := newQueueClient(cfg, stateDir, logger)
	if err != nil {
		return err
	}
	st := newStore(stateDir, logger, qc)
	ctrl := newController(cfg, stateDir, logger)

	stats := st.Stats()
	deferred := st.DeferredStats()
	healthy := st.IsHealthy(ctrl)
	report := ctrl.ConnectionStatus()

	var queueStats map[string]any
	if qc != nil {
		queueStats = qc.Stats(cmd.Context())
	}

	if statusJSON {
		out := struct {
			Healthy      bool                  `json:"healthy"`
			Profiles     int                   `json:"profiles"`
			ByStatus     map[checks.Status]int `json:"by_status"`
			Deferred     store.DeferredStats   `json:"deferred"`
			Connections  cooldown.Summary      `json:"connections"`
			QueueService map[string]any        `json:"queue_service,omitempty"`
		}{
			Healthy:      healthy,
			Profiles:     stats.TotalProfiles,
			ByStatus:     stats.ByStatus,
			Deferred:     deferred,
			Connections:  report.Summary,
			QueueService: queueStats,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(ui.Bold.Render("Steam ID processor"))
	fmt.Println()

	if healthy {
		fmt.Printf("Health:    %s\n", ui.Success.Render("ready to claim"))
	} else {
		fmt.Printf("Health:    %s\n", ui.Warning.Render("not claiming (deferred work or cooldowns)"))
	}
	fmt.Printf("Profiles:  %d\n", stats.TotalProfiles)
	fmt.Printf("Endpoints: %d/%d available\n",
		report.Summary.AvailableConnections, report.Summary.TotalConnections)
	if deferred.TotalDeferred > 0 {
		fmt.Printf("Deferred:  %s\n", ui.Warning.Render(fmt.Sprintf(
			"%d checks across %d profiles", deferred.TotalDeferred, deferred.ProfilesWithDeferred)))
	}

	if stats.TotalProfiles > 0 {
		fmt.Println()
		tbl := ui.NewTable(
			ui.Column{Name: "Status", Width: 10},
			ui.Column{Name: "Checks", Width: 6, Align: ui.AlignRight},
		)
		for _, s := range checks.AllStatuses() {
			tbl.AddRow(
				ui.StatusStyle(s).Render(string(s)),
				strconv.Itoa(stats.ByStatus[s]),
			)
		}
		fmt.Print(tbl.Render())
	}

	if qc != nil {
		fmt.Println()
		fmt.Println(ui.Bold.Render("Queue service"))
		if queueStats == nil {
			fmt.Println(ui.Dim.Render("  unreachable"))
		} else {
			keys := make([]string, 0, len(queueStats))
			for k := range queueStats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s: %v\n", k, queueStats[k])
			}
		}
	}
	return nil
}
