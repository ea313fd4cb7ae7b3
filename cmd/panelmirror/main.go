package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/panelmirror/internal/config"
)

// Build info - injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "panelmirror",
	Short:        "Game panel mirror",
	Long:         `panelmirror keeps a local copy of a remote game-server panel in sync through webhooks and exposes unit-conversion helpers.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("panelmirror %s (commit %s, built %s)\n", Version, Commit, BuildTime))
}

func loadConfig() (*config.Config, error) {
	return config.LoadFrom(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
