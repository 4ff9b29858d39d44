// Paddockd is the F1 regulations assistant daemon.
//
// This binary starts the paddockd HTTP server with full service
// initialization: the passage store, embeddings, the LLM clients, the
// race-results source, and the answer pipeline.
//
// Configuration is loaded from a YAML file and PADDOCKD_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	paddockd
//
//	# Configure via file and environment
//	paddockd --config /etc/paddockd/config.yaml
//	PADDOCKD_SERVER_PORT=9000 paddockd
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "paddockd",
	Short: "F1 regulations assistant daemon",
	Long: `paddockd answers questions about Formula 1 regulations and race
results over HTTP, retrieving from an embedded vector store with input
and output guardrails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("paddockd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (optional)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func runDaemon(ctx context.Context) error {
	if err := run(ctx, configPath); err != nil {
		return err
	}
	log.Println("Server shutdown complete")
	return nil
}
