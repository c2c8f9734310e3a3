package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webpreempt/sage/internal/httpapi"
	"github.com/webpreempt/sage/internal/service"
)

// newServeCommand starts the SPARQL 1.1 protocol HTTP endpoint, grounded on
// the teacher's cmd/trigo "serve" subcommand and on roach88-nysm's run.go
// for the signal-driven graceful shutdown shape.
func newServeCommand(root *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SPARQL 1.1 protocol HTTP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(root, addr, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "listen address")
	return cmd
}

func runServe(root *RootOptions, addr string, cmd *cobra.Command) error {
	registry, err := root.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading manifest", err)
	}
	logger := root.Logger()
	svc := service.New(registry, logger)
	handler := httpapi.New(svc, logger)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Mux(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			_ = srv.Shutdown(ctx)
		case <-ctx.Done():
		}
	}()

	for _, d := range registry.Manifest.Datasets {
		if d.Publish {
			fmt.Printf("dataset %q available at http://%s/sparql/%s\n", d.Name, addr, d.Name)
		}
	}
	fmt.Printf("listening on %s, press Ctrl-C to stop\n", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}
