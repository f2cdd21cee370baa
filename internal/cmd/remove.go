package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var removeCmd = &cobra.Command{
	Use:     "remove <steam_id>",
	GroupID: GroupQueue,
	Short:   "Remove a profile from the local check queue",
	Long: `Remove a steam id from the local check queue regardless of check
state. When the queue service is configured the item is completed
there as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	if !st.RemoveProfile(cmd.Context(), args[0]) {
		return fmt.Errorf("steam id %s not tracked", args[0])
	}
	fmt.Printf("%s Removed %s\n", ui.Success.Render("✓"), args[0])
	return nil
}
