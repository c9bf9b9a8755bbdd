package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleet-visualizer/internal/feed"
	"fleet-visualizer/internal/poller"
	"fleet-visualizer/internal/reconcile"
	"fleet-visualizer/internal/table"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		pf    pollFlags
		layer string
		once  bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a live table of robots or locations",
		Long: `Polls the backend and keeps a terminal table in step with each snapshot.
The table is reprinted whenever a row is added, moved, updated or removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			if err := pf.apply(cmd, cfg); err != nil {
				return err
			}
			if layer != feed.LayerRobots && layer != feed.LayerLocations {
				return fmt.Errorf("unknown layer %q", layer)
			}
			src, err := newSource(cfg, newClient(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tbl := table.New()
			rec := reconcile.New(tbl, reconcile.Options{
				MinMoveMeters: cfg.Poll.MinMoveMeters,
				Logger:        log.With("layer", layer),
			})

			if once {
				return watchOnce(cmd.Context(), src, layer, rec, tbl, out, cfg.Poll.FetchTimeout)
			}

			poll := poller.New(src, poller.Options{
				Interval:     cfg.Poll.Interval,
				FetchTimeout: cfg.Poll.FetchTimeout,
				DiscardStale: cfg.Poll.DiscardStale,
				Logger:       log,
				OnChange: func(layer string, seq uint64, ch reconcile.Changes) {
					fmt.Fprintf(out, "\n[%d] %s (%s)\n", seq, layer, ch)
					_ = tbl.Render(out)
				},
			})
			poll.AddView(layer, rec)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			poll.Run(ctx)
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&layer, "layer", feed.LayerRobots, "layer to show: robots or locations")
	cmd.Flags().BoolVar(&once, "once", false, "fetch a single snapshot, print it and exit")
	return cmd
}

func watchOnce(ctx context.Context, src feed.Source, layer string, rec *reconcile.Reconciler, tbl *table.Table, out io.Writer, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	f, err := src.Fetch(cctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	snap, ok := f.Layer(layer)
	if !ok {
		return fmt.Errorf("source does not provide the %s layer", layer)
	}
	live, ch := rec.Reconcile(nil, snap)
	if ch.Skipped > 0 {
		fmt.Fprintf(out, "skipped %d malformed entities\n", ch.Skipped)
	}
	if err := tbl.Render(out); err != nil {
		return err
	}
	ids := live.IDs()
	sort.Strings(ids)
	fmt.Fprintf(out, "%d live: %s\n", len(ids), strings.Join(ids, ", "))
	if f.Summary != nil {
		fmt.Fprintf(out, "total detections: %g\n", f.Summary.Total())
	}
	return nil
}
