// Command peak-switch drives a switch from the daily tariff classification:
// ON during the peak window on highest-cost days, OFF otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/peak-switch/internal/config"
	"github.com/sweeney/peak-switch/internal/engine"
	"github.com/sweeney/peak-switch/internal/fetch"
	"github.com/sweeney/peak-switch/internal/gpio"
	"github.com/sweeney/peak-switch/internal/metrics"
	"github.com/sweeney/peak-switch/internal/mqtt"
	"github.com/sweeney/peak-switch/internal/notify"
	"github.com/sweeney/peak-switch/internal/status"
	"github.com/sweeney/peak-switch/internal/store"
	"github.com/sweeney/peak-switch/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs after flag parsing.
type app struct {
	v       *viper.Viper
	cfgFile string
	debug   bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var bindErr error

	root := &cobra.Command{
		Use:   "peak-switch",
		Short: "Switch a relay on during peak hours of highest-cost tariff days",
		Long: `peak-switch fetches the daily tariff classification once a day, keeps it
in a local database, and drives a GPIO switch: ON during the configured peak
window when today is a highest-cost (TIER3) day, OFF otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if bindErr != nil {
				return fmt.Errorf("bind flags: %w", bindErr)
			}
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDaemon(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.peak-switch/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().String("db", config.Default().DBPath, "database path")
	root.Flags().String("http", config.Default().HTTP, "HTTP status address (empty to disable)")
	root.Flags().String("broker", config.Default().MQTT.Broker, "MQTT broker address")

	bindErr = errors.Join(
		a.v.BindPFlag(config.KeyDB, root.PersistentFlags().Lookup("db")),
		a.v.BindPFlag(config.KeyHTTP, root.Flags().Lookup("http")),
		a.v.BindPFlag(config.KeyMQTTBroker, root.Flags().Lookup("broker")),
	)

	root.AddCommand(a.stateCmd())
	root.AddCommand(a.fetchCmd())
	root.AddCommand(a.setCmd())
	root.AddCommand(a.overridesCmd())

	return root
}

// setup configures logging and reads the config file.
func (a *app) setup() error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	config.SetDefaults(a.v)
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locating home directory: %w", err)
		}
		a.v.AddConfigPath(filepath.Join(home, ".peak-switch"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		a.logger.Debug("no config file found, using defaults and environment")
	} else {
		a.logger.Debug("config file loaded", "path", a.v.ConfigFileUsed())
	}
	return nil
}

// open opens the store and resolves the effective configuration.
func (a *app) open() (config.Config, *store.SQLiteStore, error) {
	path := a.v.GetString(config.KeyDB)
	st, err := store.Open(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := resolveConfig(a.v, st, a.logger)
	if err != nil {
		st.Close()
		return config.Config{}, nil, err
	}
	return cfg, st, nil
}

// resolveConfig applies stored overrides on top of viper and validates the result.
func resolveConfig(v *viper.Viper, settings store.Settings, logger *slog.Logger) (config.Config, error) {
	cfg := config.FromViper(v)

	stored, err := settings.ListSettings(config.OverridePrefix)
	if err != nil {
		return cfg, fmt.Errorf("loading overrides: %w", err)
	}
	applied, ignored, err := config.ApplyOverrides(&cfg, stored)
	if len(applied) > 0 {
		logger.Info("applied stored overrides", "keys", applied)
	}
	for _, k := range ignored {
		logger.Info("ignoring unknown stored setting", "key", k)
	}
	if err != nil {
		logger.Warn("skipped invalid stored overrides", "err", err)
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("config warning", "detail", w)
	}
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) runDaemon(ctx context.Context) error {
	cfg, st, err := a.open()
	if err != nil {
		return err
	}
	defer st.Close()
	logger := a.logger

	sw, err := gpio.NewRealSwitch(cfg.GPIO.Chip, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer sw.Close()

	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if last, ok, err := st.LastFetch(); err != nil {
		logger.Warn("failed to read last fetch time", "err", err)
	} else if ok {
		tracker.SetLastFetch(last)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	channels, err := buildChannels(cfg, publisher)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(cfg.Notifications.Enabled, cfg.Notifications.Prefix, channels,
		notify.WithLogger(logger),
		notify.WithObserver(m.Notification))

	fetcher := fetch.NewHTTPFetcher(cfg.Source.URL, cfg.Source.Format, cfg.Source.Timeout)

	eng := engine.New(cfg, st, fetcher, sw, dispatcher,
		engine.WithLogger(logger),
		engine.WithEvents(publisher),
		engine.WithTracker(tracker),
		engine.WithConnectionStatus(publisher),
		engine.WithMetrics(m))

	publishLifecycle(publisher, publisher, tracker, "STARTUP", "", logger)

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "err", err)
			}
		}()
		defer stopServer(srv, 5*time.Second, logger)
		logger.Info("http status server listening", "addr", cfg.HTTP)
	}

	logger.Info("started",
		"switch", cfg.SwitchID,
		"peak", fmt.Sprintf("%02d-%02d", cfg.PeakStartHour, cfg.PeakEndHour),
		"refresh_hour", cfg.DailyRefreshHour,
		"fallback", cfg.FallbackPolicy,
		"broker", cfg.MQTT.Broker)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go watchSignals(ctx, cancel, logger)

	err = eng.Run(ctx)
	publishLifecycle(publisher, publisher, tracker, "SHUTDOWN", shutdownReason(ctx), logger)
	return err
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		SwitchID:             cfg.SwitchID,
		PeakStartHour:        cfg.PeakStartHour,
		PeakEndHour:          cfg.PeakEndHour,
		DailyRefreshHour:     cfg.DailyRefreshHour,
		RetryDelaySeconds:    cfg.RetryDelaySeconds,
		FallbackPolicy:       string(cfg.FallbackPolicy),
		SourceURL:            cfg.Source.URL,
		NotificationsEnabled: cfg.Notifications.Enabled,
		Broker:               cfg.MQTT.Broker,
		HTTPAddr:             cfg.HTTP,
	}
}

// buildChannels returns the enabled notification channels.
func buildChannels(cfg config.Config, bus notify.RawPublisher) ([]notify.Channel, error) {
	var channels []notify.Channel
	if wh := cfg.Notifications.Webhook; wh.Enabled {
		ch, err := notify.NewWebhookChannel(wh.URL, wh.Method)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if b := cfg.Notifications.Bus; b.Enabled {
		ch, err := notify.NewBusChannel(bus, b.Topic)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// publishLifecycle publishes a retained system event carrying a status snapshot.
func publishLifecycle(publisher mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string, logger *slog.Logger) {
	if conn != nil {
		tracker.SetMQTTConnected(conn.IsConnected())
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		logger.Warn("failed to publish system event", "event", event, "err", err)
		return
	}
	logger.Info("published system event", "event", event)
}

// stopServer shuts srv down, waiting up to timeout for in-flight requests.
func stopServer(srv interface{ Shutdown(context.Context) error }, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown", "err", err)
	}
}

// signalError is the cancellation cause recorded when a signal arrives.
type signalError struct {
	sig os.Signal
}

func (e signalError) Error() string {
	return "received " + e.sig.String()
}

func watchSignals(ctx context.Context, cancel context.CancelCauseFunc, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case s := <-sigCh:
		logger.Info("shutting down", "signal", s)
		cancel(signalError{sig: s})
	case <-ctx.Done():
	}
}

// shutdownReason names the signal that cancelled ctx.
func shutdownReason(ctx context.Context) string {
	var se signalError
	if errors.As(context.Cause(ctx), &se) {
		return signalName(se.sig)
	}
	return "UNKNOWN"
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
