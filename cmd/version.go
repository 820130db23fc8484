package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X ...cmd.Version=v1.2.3".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the campusmind version",
	Run: func(*cobra.Command, []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
