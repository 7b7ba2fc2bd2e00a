package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/canvas-sync/internal/canvas"
	"github.com/rickgao/canvas-sync/internal/chunk"
	"github.com/rickgao/canvas-sync/internal/client"
	"github.com/rickgao/canvas-sync/internal/metrics"
	"github.com/rickgao/canvas-sync/internal/status"
	"github.com/rickgao/canvas-sync/internal/version"
)

// runCmd mirrors the configured viewport until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mirror the configured viewport and serve status endpoints",
	Long: `Connect to the canvas server, keep every chunk around the configured
viewport loaded and apply live pixel updates to an in-memory canvas.

When status.enabled is set, health, debug, metrics and websocket status
endpoints are served on status.port.`,
	Args: cobra.NoArgs,
	RunE: runMirror,
}

func runMirror(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting canvas client", append(version.LogAttrs(), "addr", cfg.Server.Addr)...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := canvas.NewMemory()
	c := client.New(clientConfig(cfg), store, m, logger)
	v := viewport(cfg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(ctx) })
	g.Go(func() error { return keepViewportLoaded(ctx, c, v, cfg.Chunks.ThrottleInterval) })

	if cfg.Status.Enabled {
		srv := status.New(status.Config{
			Addr:         fmt.Sprintf(":%d", cfg.Status.Port),
			PushInterval: time.Second,
			Version:      version.String(),
		}, c, reg, logger.With("component", "status"))
		g.Go(func() error { return srv.Run(ctx) })
	}

	err := g.Wait()
	st := c.Status()
	logger.Info("canvas client stopped",
		"pixels", st.Pixels,
		"chunks_loaded", st.Chunks.Loaded,
		"pending", st.Queue.Count,
	)
	return err
}

// keepViewportLoaded re-evaluates chunk needs for a fixed viewport. The
// tracker is cleared on every reconnect, so a periodic EnsureLoaded is what
// brings the chunks back.
func keepViewportLoaded(ctx context.Context, c *client.Client, v chunk.Viewport, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !c.IsConnected() {
				continue
			}
			if n := c.EnsureLoaded(v); n > 0 {
				logger.Debug("requested chunks", "count", n, "line", c.Status().Line)
			}
		}
	}
}
