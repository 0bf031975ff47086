package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mofa-org/dorabridge/cmd/mofa-bridge/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output") {
			return output(build.Get())
		}
		fmt.Println(build.String())
		if verbose {
			if cfg, err := GetConfig(); err == nil {
				fmt.Printf("  config: %s\n", cfg.Dir)
			} else {
				fmt.Printf("  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	addOutputFlags(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
