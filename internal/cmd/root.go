// Package cmd provides CLI commands for the sip tool.
package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "sip",
	Short:   "Steam ID processor - profile check worker",
	Version: version.String(),
	Long: `sip runs profile checks against Steam for ids claimed from a shared
queue service.

Each profile carries a set of named checks (avatar decorations, level,
friends, inventory). The worker claims ids, runs the outstanding
checks, and completes finished profiles back on the queue. Endpoint
rate limits and connectivity failures put individual endpoints on
cooldown instead of stopping the worker.`,
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if !ui.ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if err := rootCmd.Execute(); err != nil {
		// Errors already printed by cobra
		return 1
	}
	return 0
}

// Command group IDs - used by subcommands to organize help output
const (
	GroupWorker  = "worker"
	GroupQueue   = "queue"
	GroupInspect = "inspect"
)

// cfgFile is the --config override shared by all commands.
var cfgFile string

func init() {
	// Enable prefix matching for subcommands (e.g., "sip cool" -> "sip cooldowns")
	cobra.EnablePrefixMatching = true

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWorker, Title: "Worker:"},
		&cobra.Group{ID: GroupQueue, Title: "Queue:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection:"},
	)

	rootCmd.SetHelpCommandGroupID(GroupInspect)
	rootCmd.SetCompletionCommandGroupID(GroupInspect)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default sip.toml)")
}

// buildCommandPath walks the command hierarchy to build the full command path.
// For example: "sip queue stats", "sip status", etc.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands like "sip queue foobar", masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
