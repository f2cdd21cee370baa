package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/queueclient"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var queueStatsJSON bool

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: GroupQueue,
	Short:   "Inspect the shared queue service",
	RunE:    requireSubcommand,
	Long: `Inspect and manage this worker's standing on the shared queue
service.`,
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue service stats",
	Long:  `Fetch and display stats for this worker's queue from the queue service.`,
	RunE:  runQueueStats,
}

var queueReleaseInstanceCmd = &cobra.Command{
	Use:   "release-instance",
	Short: "Release every claim held by this instance",
	Long: `Release every item the queue service still considers claimed by this
worker instance. The running worker does this on startup; use it
manually when a worker died without restarting.`,
	RunE: runQueueReleaseInstance,
}

func init() {
	queueStatsCmd.Flags().BoolVar(&queueStatsJSON, "json", false, "Output as JSON")
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueReleaseInstanceCmd)
	rootCmd.AddCommand(queueCmd)
}

// requireQueueClient builds the queue client or fails with a config hint.
func requireQueueClient() (*queueclient.Client, error) {
	cfg, stateDir, err := loadConfig()
	if err != nil {
		return nil, err
	}
	qc, err := newQueueClient(cfg, stateDir, quietLogger())
	if err != nil {
		return nil, err
	}
	if qc == nil {
		return nil, fmt.Errorf("queue service not configured (set queue.url in sip.toml or QUEUE_API_URL)")
	}
	return qc, nil
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	qc, err := requireQueueClient()
	if err != nil {
		return err
	}

	stats := qc.Stats(cmd.Context())
	if stats == nil {
		return fmt.Errorf("queue service unreachable")
	}

	if queueStatsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding stats: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s %s (instance %s)\n\n",
		ui.Bold.Render("Queue:"), qc.QueueName(), qc.InstanceID())
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, stats[k])
	}
	return nil
}

func runQueueReleaseInstance(cmd *cobra.Command, args []string) error {
	qc, err := requireQueueClient()
	if err != nil {
		return err
	}

	released := qc.ReleaseInstance(cmd.Context())
	if released == 0 {
		fmt.Println("No claims held by this instance")
		return nil
	}
	fmt.Printf("%s Released %d claims\n", ui.Success.Render("✓"), released)
	return nil
}
