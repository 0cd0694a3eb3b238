package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bstardust/photo-ingest/internal/api"
	"github.com/bstardust/photo-ingest/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	annotate(cmd.Flags(), "addr", "server.addr")
	cmd.Flags().Int64("max-upload-size", 200<<20, "Largest accepted request body in bytes")
	annotate(cmd.Flags(), "max-upload-size", "server.max_upload_size")

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(a.pipeline, a.uploader, a.resolver, a.config, api.Options{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		KeepExif:      !cfg.Upload.StripExif,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
