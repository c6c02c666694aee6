package cli

import (
	"github.com/spf13/cobra"
)

// Version is the tool version stamped into cache entries; ldflags may
// override it at build time.
var Version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the coqu version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("coqu %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
