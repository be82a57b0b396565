package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fx-compliance-engine/cmd/fxcompliance/config"
	"fx-compliance-engine/internal/api"
	"fx-compliance-engine/internal/monitoring"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/reconciler"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP for the compliance dashboard",
	Long: `Serve exposes analysis, penalty calculation and resolution tracking as a
JSON API, plus Prometheus metrics.

Endpoints:
  GET    /healthz
  GET    /metrics
  POST   /api/v1/analysis
  POST   /api/v1/penalty
  GET    /api/v1/resolutions
  PUT    /api/v1/resolutions
  GET    /api/v1/audit

Examples:
  fxcompliance serve --addr :8080 --state-db state.db
  FXCOMPLIANCE_LOG_FORMAT=json fxcompliance serve`,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag(config.KeyServerAddr, serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("server")

	state, err := openState(appConfig, log)
	if err != nil {
		return err
	}
	defer state.Close()

	metrics := monitoring.NewMetrics()

	service, err := reconciler.NewReconciliationService(
		appConfig.ReconcilerConfig(),
		reconciler.WithTracker(state.tracker),
		reconciler.WithMetrics(metrics),
		reconciler.WithLogger(logger.GetGlobalLogger().WithComponent("reconciler")),
	)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Service: service,
		Tracker: state.tracker,
		Penalty: penalty.NewCalculator(appConfig.Penalty),
		Audit:   state.audit,
		Metrics: metrics,
		Logger:  logger.GetGlobalLogger(),
	}
	if state.auditLog != nil {
		deps.AuditLog = state.auditLog
	}

	server := &http.Server{
		Addr:              appConfig.ServerAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(logger.Fields{
			"addr":       appConfig.ServerAddr,
			"persistent": state.persistent(),
		}).Info("listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, config.KeyServerAddr, appConfig.ServerAddr, err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "server shutdown", err)
	}
	return nil
}
