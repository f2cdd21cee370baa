package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var sweepCmd = &cobra.Command{
	Use:     "sweep",
	GroupID: GroupWorker,
	Short:   "Convert deferred checks back to outstanding",
	Long: `Convert every deferred check back to outstanding so the worker
retries it. The running worker does this on its own schedule; sweep
forces it now, typically after cooldowns have been cleared.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, stateDir, err := loadConfig()
	if err != nil {
		return err
	}

	st := newStore(stateDir, quietLogger(), nil)
	conversions, profiles := st.ConvertDeferredToToCheck()
	if conversions == 0 {
		fmt.Println("No deferred checks")
		return nil
	}
	fmt.Printf("%s Converted %d deferred checks on %d profiles\n",
		ui.Success.Render("✓"), conversions, profiles)
	return nil
}
