// Command loadtest runs the conference engine against simulated callers and
// prints mixing statistics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/konference"
	"github.com/Raikerian/go-konference/internal/observe"
	"github.com/Raikerian/go-konference/internal/simulate"
	"github.com/Raikerian/go-konference/internal/sounds"
	"github.com/Raikerian/go-konference/pkg/infrastructure"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	conferences int
	members     int
	duration    time.Duration
	formats     []string
	flags       string
	logLevel    string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Mix simulated conferences and print statistics",
		Long: `Run the conference engine against in-memory callers. Callers take turns
talking with a tone of their own pitch and regularly all talk at once.
Settings come from the config file when given, overridden by flags.`,
		Example: `  loadtest --conferences 20 --members 8 --duration 30s
  loadtest -c config.yaml --formats slin,ulaw,opus --flags R`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "optional YAML configuration file")
	f.IntVar(&opts.conferences, "conferences", 0, "number of conferences (overrides config)")
	f.IntVar(&opts.members, "members", 0, "callers per conference (overrides config)")
	f.DurationVarP(&opts.duration, "duration", "d", 10*time.Second, "how long callers stay connected")
	f.StringSliceVar(&opts.formats, "formats", nil, "caller formats, e.g. slin,ulaw,opus")
	f.StringVar(&opts.flags, "flags", "", "member flags appended to every join")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	return cmd
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %q not found", opts.configPath)
			}
			return nil, err
		}
	}

	sim := &cfg.Simulation
	if opts.conferences > 0 {
		sim.Conferences = opts.conferences
	}
	if opts.members > 0 {
		sim.MembersPerConference = opts.members
	}
	if len(opts.formats) > 0 {
		sim.Formats = opts.formats
	}
	if opts.flags != "" {
		sim.Flags = opts.flags
	}
	sim.Duration = opts.duration
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := infrastructure.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	var library *sounds.Library
	if cfg.Sounds.Directory != "" {
		if library, err = sounds.NewLibrary(logger.Named("sounds"), cfg.Sounds.Directory, cfg.Sounds.CacheSize); err != nil {
			return fmt.Errorf("failed to open sound library: %w", err)
		}
	}

	engine := konference.NewEngine(cfg, logger.Named("konference"), events.NewZapPublisher(logger), metrics, library)

	simulator, err := simulate.NewSimulator(cfg.Simulation, cfg.Conference.Interval, engine, logger.Named("simulate"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := simulator.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Stop(stopCtx); err != nil {
		logger.Warn("Engine did not stop cleanly", zap.Error(err))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(stopCtx, &rm); err != nil {
		logger.Warn("Failed to collect metrics", zap.Error(err))
	}
	printReport(out, report, rm)

	if runErr != nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}
	return nil
}

func printReport(w io.Writer, r simulate.Report, rm metricdata.ResourceMetrics) {
	fmt.Fprintf(w, "members:          %d (completed %d, kicked %d, refused %d)\n", r.Members, r.Completed, r.Kicked, r.Refused)
	fmt.Fprintf(w, "frames sent:      %d\n", r.FramesSent)
	fmt.Fprintf(w, "frames received:  %d\n", r.FramesReceived)

	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					label := m.Name
					for _, kv := range dp.Attributes.ToSlice() {
						label += fmt.Sprintf("{%s=%s}", kv.Key, kv.Value.Emit())
					}
					lines = append(lines, fmt.Sprintf("%-48s %d", label, dp.Value))
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					if dp.Count == 0 {
						continue
					}
					avg := time.Duration(dp.Sum / float64(dp.Count) * float64(time.Second))
					lines = append(lines, fmt.Sprintf("%-48s avg %s over %d", m.Name, avg, dp.Count))
				}
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
