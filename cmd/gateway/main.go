package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	logger     *slog.Logger
	configPath string
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:          "rx-gateway",
		Short:        "Streaming inference gateway for prescription analysis and chat",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (optional)")

	root.AddCommand(serveCmd())
	root.AddCommand(analyzeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
