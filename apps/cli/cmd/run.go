package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/control/packages/core/config"
	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/runner"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/abdul-hamid-achik/control/packages/export/metrics"
	"github.com/abdul-hamid-achik/control/packages/logging"
	"github.com/abdul-hamid-achik/control/packages/notify"
	"github.com/abdul-hamid-achik/control/packages/output"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the registered suites",
	Long: `Run every registered suite and report the results.

Examples:
  control run
  control run --output junit --output-file report.xml
  control run --verbose --no-color
  control run --watch --watch-path ./testdata
  control run --metrics prometheus --metrics-file control.prom
  control run --metrics-addr :9090 --watch
  control run --notify slack --slack-webhook $SLACK_URL --notify-on recovery`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

var (
	configFlag     string
	outputFlag     string
	outputFileFlag string
	noColorFlag    bool
	verboseFlag    bool
	logLevelFlag   string
	logFormatFlag  string
	languageFlag   string
	watchFlag      bool
	watchPathFlag  string
	envFlag        string
	envFileFlag    string

	// Metrics flags
	metricsFlag       string
	metricsFileFlag   string
	metricsAddrFlag   string
	datadogAPIKeyFlag string
	datadogSiteFlag   string
	datadogTagsFlag   string

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Core flags
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("CONTROL_CONFIG", ""), "Path to config file (env: CONTROL_CONFIG)")
	runCmd.Flags().StringVar(&languageFlag, "language", getEnvString("CONTROL_LANGUAGE", ""), "Collation language used to order contexts, e.g. en or de (env: CONTROL_LANGUAGE)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("CONTROL_ENV_FILE", ""), "Dotenv file exported before the run (env: CONTROL_ENV_FILE)")
	runCmd.Flags().StringVar(&envFlag, "env", getEnvString("CONTROL_ENV", ""), "Environment name shown in notifications (env: CONTROL_ENV)")

	// Output flags
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("CONTROL_OUTPUT", ""), "Output format: "+strings.Join(output.Formats, ", ")+" (env: CONTROL_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("CONTROL_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: CONTROL_OUTPUT_FILE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("CONTROL_NO_COLOR", false), "Disable colored output (env: CONTROL_NO_COLOR)")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("CONTROL_VERBOSE", false), "Show before and after hook timing per test (env: CONTROL_VERBOSE)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", getEnvString("CONTROL_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: CONTROL_LOG_LEVEL)")
	runCmd.Flags().StringVar(&logFormatFlag, "log-format", getEnvString("CONTROL_LOG_FORMAT", ""), "Log format: text, json (env: CONTROL_LOG_FORMAT)")

	// Watch flags
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run the suites")
	runCmd.Flags().StringVar(&watchPathFlag, "watch-path", getEnvString("CONTROL_WATCH_PATH", ""), "Paths to watch (comma-separated, default: .) (env: CONTROL_WATCH_PATH)")

	// Metrics flags
	runCmd.Flags().StringVar(&metricsFlag, "metrics", getEnvString("CONTROL_METRICS", ""), "Export metrics: "+strings.Join(metrics.Formats, ", ")+" (env: CONTROL_METRICS)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("CONTROL_METRICS_FILE", ""), "Write metrics to file (env: CONTROL_METRICS_FILE)")
	runCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", getEnvString("CONTROL_METRICS_ADDR", ""), "Serve Prometheus metrics on this address, e.g. :9090 (env: CONTROL_METRICS_ADDR)")
	runCmd.Flags().StringVar(&datadogAPIKeyFlag, "datadog-api-key", getEnvString("DD_API_KEY", ""), "DataDog API key (env: DD_API_KEY)")
	runCmd.Flags().StringVar(&datadogSiteFlag, "datadog-site", getEnvString("DD_SITE", ""), "DataDog site, e.g. datadoghq.eu (env: DD_SITE)")
	runCmd.Flags().StringVar(&datadogTagsFlag, "datadog-tags", getEnvString("DD_TAGS", ""), "DataDog tags (comma-separated) (env: DD_TAGS)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("CONTROL_NOTIFY", ""), "Send notifications: slack, teams (comma-separated) (env: CONTROL_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("CONTROL_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: CONTROL_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("CONTROL_SLACK_WEBHOOK", ""), "Slack incoming webhook URL (env: CONTROL_SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("CONTROL_SLACK_CHANNEL", ""), "Slack channel override (env: CONTROL_SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("CONTROL_TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: CONTROL_TEAMS_WEBHOOK)")
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		return val == "yes"
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// flagConfig turns the flags that were given into a config overlay.
func flagConfig(cmd *cobra.Command) *config.Config {
	c := &config.Config{
		Output:     outputFlag,
		OutputFile: outputFileFlag,
		LogLevel:   logLevelFlag,
		LogFormat:  logFormatFlag,
		Language:   languageFlag,
		EnvFile:    envFileFlag,
	}

	// an env default of true counts as set
	if cmd.Flags().Changed("no-color") || noColorFlag {
		c.NoColor = config.BoolPtr(noColorFlag)
	}
	if cmd.Flags().Changed("verbose") || verboseFlag {
		c.Verbose = config.BoolPtr(verboseFlag)
	}

	if paths := splitList(watchPathFlag); len(paths) > 0 {
		c.Watch = &config.WatchConfig{Paths: paths}
	}
	if metricsFlag != "" || metricsFileFlag != "" {
		c.Metrics = &config.MetricsConfig{Format: metricsFlag, File: metricsFileFlag}
	}
	if notifyFlag != "" || notifyOnFlag != "" || slackWebhookFlag != "" || slackChannelFlag != "" || teamsWebhookFlag != "" {
		c.Notify = &config.NotifyConfig{
			Services:     splitList(notifyFlag),
			On:           notifyOnFlag,
			SlackWebhook: slackWebhookFlag,
			SlackChannel: slackChannelFlag,
			TeamsWebhook: teamsWebhookFlag,
		}
	}
	return c
}

// resolveConfig loads the config file and lays the flags over it.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	cfg := fileConfig.Merge(flagConfig(cmd))

	if cfg.Output != "" && !slices.Contains(output.Formats, cfg.Output) {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown output format %q (expected one of %s)", cfg.Output, strings.Join(output.Formats, ", ")))
	}
	if cfg.Metrics != nil && cfg.Metrics.Format != "" && !slices.Contains(metrics.Formats, cfg.Metrics.Format) {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown metrics format %q (expected one of %s)", cfg.Metrics.Format, strings.Join(metrics.Formats, ", ")))
	}
	return cfg, nil
}

// session holds what survives between the runs of one invocation.
type session struct {
	cmd      *cobra.Command
	cfg      *config.Config
	logger   *slog.Logger
	notifier *notify.Manager
	server   *metrics.PrometheusExporter
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnvironment(); err != nil {
		return withExitCode(ExitConfigError, err)
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	logger.Debug("configuration resolved",
		"output", cfg.Output,
		"outputFile", cfg.OutputFile,
		"language", cfg.Language,
	)

	notifyManager, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	s := &session{
		cmd:      cmd,
		cfg:      cfg,
		logger:   logger,
		notifier: notifyManager,
	}

	if metricsAddrFlag != "" {
		s.server = metrics.NewPrometheusExporter()
		addr, err := s.server.ListenAndServe(metricsAddrFlag)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer s.server.Close()
		logger.Info("serving metrics", "addr", addr.String())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := s.run(ctx)
	if err != nil {
		return err
	}

	if watchFlag {
		return s.watch(ctx)
	}

	if !summary.OK() {
		return withExitCode(ExitTestFailure, nil)
	}
	return nil
}

// run loads a fresh tree, runs it once and publishes the results.
func (s *session) run(ctx context.Context) (output.Summary, error) {
	root, err := suite.Load(definitions...)
	if err != nil {
		return output.Summary{}, withExitCode(ExitLoadError, err)
	}

	w, closeOutput, err := s.outputWriter()
	if err != nil {
		return output.Summary{}, withExitCode(ExitConfigError, err)
	}
	defer closeOutput()

	results := output.NewResults()
	formatter, err := output.New(s.cfg.Output, results, output.Options{
		Writer:  w,
		Verbose: s.cfg.GetVerbose(),
		NoColor: s.cfg.GetNoColor(),
	})
	if err != nil {
		return output.Summary{}, withExitCode(ExitUsageError, err)
	}

	bus := event.NewBus()
	bus.OnAll(results)
	bus.OnAll(formatter)

	r := runner.NewRunner(bus, &runner.Config{
		Logger:   s.logger,
		Language: s.cfg.Language,
	})
	if err := r.Run(ctx, root); err != nil {
		return output.Summary{}, err
	}

	// Flush output for formatters that accumulate results
	if err := formatter.Flush(); err != nil {
		return output.Summary{}, fmt.Errorf("error writing output: %w", err)
	}

	s.exportMetrics(results)
	s.notify(ctx, results)

	return results.Summary(), nil
}

func (s *session) outputWriter() (io.Writer, func(), error) {
	if s.cfg.OutputFile == "" {
		return s.cmd.OutOrStdout(), func() {}, nil
	}

	f, err := os.Create(s.cfg.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output file: %w", err)
	}

	var w io.Writer = f
	if s.cfg.Output == "" || s.cfg.Output == "console" {
		w = output.StripANSI(f)
	}
	return w, func() { _ = f.Close() }, nil
}

func (s *session) exportMetrics(results *output.Results) {
	var exporters []metrics.Exporter
	if s.cfg.Metrics != nil && s.cfg.Metrics.Format != "" {
		exp, err := newExporter(s.cfg.Metrics, s.cmd.OutOrStdout())
		if err != nil {
			s.logger.Warn("metrics export disabled", "error", err)
		} else {
			exporters = append(exporters, exp)
		}
	}
	if s.server != nil {
		exporters = append(exporters, s.server)
	}
	if len(exporters) == 0 {
		return
	}

	collector := metrics.NewCollector(exporters...)
	collector.RecordResults(results)
	if err := collector.Flush(); err != nil {
		fmt.Fprintf(s.cmd.ErrOrStderr(), "warning: failed to export metrics: %v\n", err)
	}
}

func newExporter(cfg *config.MetricsConfig, w io.Writer) (metrics.Exporter, error) {
	if cfg.Format != "datadog" {
		return metrics.NewExporter(cfg.Format, cfg.File, w)
	}

	var opts []metrics.DataDogOption
	if datadogAPIKeyFlag != "" {
		opts = append(opts, metrics.WithDataDogAPIKey(datadogAPIKeyFlag))
	}
	if datadogSiteFlag != "" {
		opts = append(opts, metrics.WithDataDogSite(datadogSiteFlag))
	}
	if tags := splitList(datadogTagsFlag); len(tags) > 0 {
		opts = append(opts, metrics.WithDataDogTags(tags))
	}
	return metrics.NewDataDogExporter(opts...), nil
}

func (s *session) notify(ctx context.Context, results *output.Results) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notify.NewRunSummary(results, envFlag)); err != nil {
		fmt.Fprintf(s.cmd.ErrOrStderr(), "warning: failed to send notification: %v\n", err)
	}
}
