package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/menta2k/embedviz/internal/httpapi"
)

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the embedding and annotation sessions over HTTP under /api/v1.

Examples:
  embedviz serve
  embedviz serve --addr 127.0.0.1:9000 --backend local`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	insp, cfg, log, err := newInspector()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	router := httpapi.NewRouter(r, log)
	router.Init(insp, int64(cfg.Server.MaxUploadMB)<<20)

	srv := httpapi.NewServer(r, addr)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s (backend %s)", srv.Addr(), cfg.Backend.Mode)
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var runErr error
	select {
	case runErr = <-errCh:
		log.Errorf("HTTP server failed: %v", runErr)
	case <-shutdown:
		log.Infof("Received shutdown signal, stopping gracefully...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		log.Infof("HTTP server stopped")
	}
	return runErr
}
