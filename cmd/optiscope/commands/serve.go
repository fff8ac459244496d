package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/optiscope/internal/api"
	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/inspector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inspection API over HTTP",
	Long: `Serve page inspection over HTTP.

  POST /api/inspect  {"url": "https://shop.example.com/", "runningOnly": false}
  GET  /healthz

Responses are JSON. Any origin may call the API.

Example:
  optiscope serve --addr :8080 --fetch-mode dynamic --screenshot`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.Bool("screenshot", false, "include a viewport screenshot in responses (dynamic mode)")
	flags.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	addFetchFlags(flags)

	_ = viper.BindPFlag("serve.addr", flags.Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	screenshot, _ := cmd.Flags().GetBool("screenshot")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	insp, err := newInspector(cmd.Flags(), inspector.WithScreenshot(screenshot))
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = insp.Close() }()

	addr := viper.GetString("serve.addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(api.NewHandler(insp)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2*timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving inspection API", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "grace", shutdownTimeout)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
