package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/lecture-analysis/internal/config"
)

const (
	configPathEnv     = "ANALYSIS_SERVICE_CONFIG_PATH"
	defaultConfigPath = "configs/analysis-service/config.yaml"
)

var version = "dev"

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultPath := os.Getenv(configPathEnv)
	if defaultPath == "" {
		defaultPath = defaultConfigPath
	}

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "analysis-service",
		Short:   "Lecture video analysis job service",
		Version: version,
		Long: `Accepts lecture video uploads, extracts their audio, sends it to the
analysis service and serves the resulting transcript, graph,
cognitive-load and structured-data artifacts.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the analysis workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid (upload_dir=%s, workers=%d, queue=%d)\n",
				configPath, cfg.Storage.UploadDir, cfg.Worker.Concurrency, cfg.Worker.QueueSize)
			return nil
		},
	})

	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
