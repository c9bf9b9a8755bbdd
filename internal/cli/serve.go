package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleet-visualizer/internal/dispatch"
	"fleet-visualizer/internal/feed"
	"fleet-visualizer/internal/hub"
	"fleet-visualizer/internal/poller"
	"fleet-visualizer/internal/reconcile"
	"fleet-visualizer/internal/server"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		pf   pollFlags
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live fleet map",
		Long: `Polls the backend and serves the dashboard. Browser clients connect to /ws
and receive marker create/move/update/destroy operations for the robots and
locations layers. Clicking a marker selects a robot; navigate and control
commands go to the selection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			if err := pf.apply(cmd, cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			client := newClient(cfg)
			src, err := newSource(cfg, client)
			if err != nil {
				return err
			}

			sel := &dispatch.Selection{}
			disp := dispatch.New(sel, client, log.With("component", "dispatch"))
			h := hub.New(disp, log.With("component", "hub"))
			h.SetSelection(sel.Get)
			sel.OnChange(func(id string) {
				h.Broadcast(hub.SelectionMessage{Type: hub.TypeSelection, ID: id})
			})

			poll := poller.New(src, poller.Options{
				Interval:     cfg.Poll.Interval,
				FetchTimeout: cfg.Poll.FetchTimeout,
				DiscardStale: cfg.Poll.DiscardStale,
				Logger:       log.With("component", "poller"),
				OnFrame: func(seq uint64, f feed.Frame) {
					if f.Summary != nil {
						log.Debug("summary received", "seq", seq, "total", f.Summary.Total())
						h.Broadcast(hub.SummaryMessage{Type: hub.TypeSummary, Seq: seq, Summary: *f.Summary})
					}
				},
			})
			for _, layer := range []string{feed.LayerRobots, feed.LayerLocations} {
				poll.AddView(layer, reconcile.New(h.Layer(layer), reconcile.Options{
					MinMoveMeters: cfg.Poll.MinMoveMeters,
					Logger:        log.With("layer", layer),
				}))
			}

			srvHandler, err := server.New(server.Config{
				Hub:        h,
				Dispatcher: disp,
				Stats:      poll.Stats,
				StaticDir:  cfg.Server.StaticDir,
				Logger:     log.With("component", "http"),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           srvHandler.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("server starting", "url", fmt.Sprintf("http://localhost:%d/", cfg.Server.Port),
					"backend", client.BaseURL(), "source", cfg.Poll.Source, "interval", cfg.Poll.Interval)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			pollDone := make(chan struct{})
			go func() {
				poll.Run(ctx)
				close(pollDone)
			}()

			select {
			case <-ctx.Done():
				log.Info("shutdown initiated")
			case err := <-errCh:
				stop()
				<-pollDone
				return fmt.Errorf("server error: %w", err)
			}
			<-pollDone
			h.Close()

			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn("HTTP server shutdown error", "error", err)
				return err
			}
			log.Info("HTTP server shut down successfully")
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")
	return cmd
}
