package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: GroupInspect,
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sip " + version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
