package cmd

import (
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/tui/watch"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: GroupInspect,
	Short:   "Live dashboard of profiles and cooldowns",
	Long: `Open a live dashboard showing tracked profiles with per-check status
and endpoint cooldowns, refreshed once per second.

Read-only: run it next to a working 'sip run'.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return fmt.Errorf("watch requires an interactive terminal")
	}

	cfg, stateDir, err := loadConfig()
	if err != nil {
		return err
	}

	// Warnings would tear the alternate screen; drop them for the TUI.
	logger := log.New(io.Discard, "", 0)
	st := newStore(stateDir, logger, nil)
	ctrl := newController(cfg, stateDir, logger)

	m := watch.NewModel(st, ctrl)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
