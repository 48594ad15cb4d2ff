package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/essayfeed-backend/internal/app"
	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "feedctl",
	Short:         "Operate essay feedback feeds from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: $ESSAYFEED_CONFIG_PATH or ./config/config.yaml)")
	rootCmd.AddCommand(migrateCmd, runCmd, previewCmd, enqueueCmd, feedsCmd, keysCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// loadApp wires the full application without starting background loops. Logs go to stderr at
// warn level so streamed output stays readable.
func loadApp() (*app.App, error) {
	if configPath != "" {
		if err := os.Setenv("ESSAYFEED_CONFIG_PATH", configPath); err != nil {
			return nil, err
		}
	}
	if os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", "warn")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	return app.NewWithLogger(cfg, log)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("schema up to date"))
		return nil
	},
}
