package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Brownie44l1/fabric-inspector/internal/handlers"
	"github.com/Brownie44l1/fabric-inspector/internal/logging"
	"github.com/spf13/cobra"
)

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload and classification web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Port = flagPort
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Port to listen on (default 8080, or $PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h := handlers.NewHandler(a.processor, a.model, a.history, handlers.Options{
		AnnotatedDir:   cfg.AnnotatedDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logging.For(logger, "http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return listen(ctx, srv, 15*time.Second)
}

// listen serves until ctx is cancelled, then shuts down gracefully.
func listen(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
