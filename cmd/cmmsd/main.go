package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "cmmsd",
		Short:         "Maintenance management backend over a shared machines workbook",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml" // Default path for local development
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML configuration file")

	root.AddCommand(newServeCmd(), newUserCmd(), newSyncCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("cmmsd: %v", err)
	}
}
