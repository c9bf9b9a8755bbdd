// Package cli implements the fleet-visualizer command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleet-visualizer/internal/api"
	"fleet-visualizer/internal/config"
	"fleet-visualizer/internal/feed"
	"fleet-visualizer/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

type globalFlags struct {
	configPath string
	backendURL string
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "fleet-visualizer",
		Short: "Live map and control relay for a trash-collecting robot fleet",
		Long: `fleet-visualizer polls the robot dashboard backend, keeps map markers and
table rows in step with each snapshot, and relays navigate/control commands
to the selected robot.`,
		SilenceUsage: true,
	}
	root.Version = Version
	root.SetVersionTemplate("fleet-visualizer version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "fleet-visualizer.yaml", "path to YAML config file")
	pf.StringVar(&g.backendURL, "backend", "", "backend base URL (overrides backend.base_url)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	root.AddCommand(
		newServeCmd(g),
		newWatchCmd(g),
		newRobotCmd(g),
		newDetectCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the config file and applies global flag overrides.
func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.BaseURL = g.backendURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	log := logging.New(cmd.ErrOrStderr(), level)
	return cfg, log, nil
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
}

func newSource(cfg *config.Config, client *api.Client) (feed.Source, error) {
	switch cfg.Poll.Source {
	case config.SourceSummary:
		return feed.NewSummarySource(client), nil
	case config.SourceRobots:
		return feed.NewRobotListSource(client), nil
	case config.SourceGtfsRt:
		return feed.NewGtfsRtSource(cfg.Poll.GtfsRtURL, cfg.Poll.FetchTimeout), nil
	}
	return nil, fmt.Errorf("unknown poll source %q", cfg.Poll.Source)
}

// pollFlags are shared by serve and watch.
type pollFlags struct {
	interval time.Duration
	source   string
	gtfsURL  string
}

func (p *pollFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.DurationVar(&p.interval, "interval", 0, "poll interval (overrides poll.interval)")
	f.StringVar(&p.source, "source", "", "poll source: summary, robots, gtfsrt (overrides poll.source)")
	f.StringVar(&p.gtfsURL, "gtfsrt-url", "", "GTFS-RT vehicle positions URL (overrides poll.gtfsrt_url)")
}

func (p *pollFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("interval") {
		cfg.Poll.Interval = p.interval
	}
	if f.Changed("source") {
		cfg.Poll.Source = p.source
	}
	if f.Changed("gtfsrt-url") {
		cfg.Poll.GtfsRtURL = p.gtfsURL
	}
	return config.Validate(cfg)
}
