package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/api"
	"github.com/adishahh/indian-market-ml-platform/internal/api/handlers"
	"github.com/adishahh/indian-market-ml-platform/internal/inference"
	"github.com/adishahh/indian-market-ml-platform/pkg/config"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

var apiPort string

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the prediction API",
	Long: `Starts the HTTP prediction service.

Endpoints:
  POST /predict               - Buy/Sell prediction for a symbol
  GET  /predictions/{symbol}  - Logged predictions
  POST /model/reload          - Reload the active model
  GET  /health                - Health and model state
  GET  /metrics               - Prometheus metrics

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)
	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	app, err := inference.NewAppContext(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.DB.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	h := handlers.NewPredictionHandler(app.Service, app.Logs, app.Artifacts, log)
	server := api.New(cfg, log, api.NewRouter(h, app.Stream, app.Metrics, log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	version, loaded := app.Service.ModelVersion()
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	if loaded {
		fmt.Printf("   Model: %s\n", version)
	} else {
		PrintWarning("No model loaded; /predict answers 503 until `quant train` and POST /model/reload")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
