package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cschleiden/go-workflow-tasks/diag"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func (c *cli) serveCommand() *cobra.Command {
	var seed string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diagnostics API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if seed != "" {
				if _, err := seedFromFile(ctx, a, seed); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			go a.roles.StartEviction(ctx)

			srv := &http.Server{
				Addr:              a.cfg.Serve.Addr,
				Handler:           a.handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			return serve(ctx, a, srv)
		}),
	}

	cmd.Flags().String("addr", "", "listen address")
	c.bind(cmd.Flags(), "serve.addr", "addr")
	cmd.Flags().StringVar(&seed, "seed", "", "seed file to apply before serving")

	return cmd
}

func (a *app) handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := diag.NewRouter(a.manager, a.logger)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, a *app, srv *http.Server) error {
	errc := make(chan error, 1)

	go func() {
		a.logger.Info("Serving", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serving: %w", err)

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	a.logger.Info("Stopped serving")

	return nil
}
