package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/store"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var enqueueUsername string

var enqueueCmd = &cobra.Command{
	Use:     "enqueue <steam_id>",
	GroupID: GroupQueue,
	Short:   "Add a profile to the local check queue",
	Long: `Add a steam id to the local check queue with every check outstanding.

This bypasses the queue service claim path; the worker picks the
profile up on its next cycle. The downstream existence probe is not
consulted.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueUsername, "username", "", "Profile username (defaults to Professor)")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	_, stateDir, err := loadConfig()
	if err != nil {
		return err
	}

	st := newStore(stateDir, quietLogger(), nil)
	profile, outcome, err := st.AddProfile(cmd.Context(), args[0], enqueueUsername, nil)
	if err != nil {
		return fmt.Errorf("adding profile: %w", err)
	}

	switch outcome {
	case store.Added:
		fmt.Printf("%s Enqueued %s (%s)\n", ui.Success.Render("✓"), profile.SteamID, profile.Username)
	case store.AlreadyPresent:
		fmt.Printf("%s already tracked\n", profile.SteamID)
	default:
		fmt.Printf("%s not enqueued (%s)\n", args[0], outcome)
	}
	return nil
}
