// Package app wires the pvpoll components from the settings and runs them
// until the context is cancelled.
package app

import (
	"context"
	"time"

	"github.com/solarwindow/pvpoll/internal/api"
	"github.com/solarwindow/pvpoll/internal/buildinfo"
	"github.com/solarwindow/pvpoll/internal/conf"
	"github.com/solarwindow/pvpoll/internal/datastore"
	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/mqtt"
	"github.com/solarwindow/pvpoll/internal/notification"
	"github.com/solarwindow/pvpoll/internal/observability"
	"github.com/solarwindow/pvpoll/internal/scheduler"
	"github.com/solarwindow/pvpoll/internal/sink"
	"github.com/solarwindow/pvpoll/internal/solaredge"
	"github.com/solarwindow/pvpoll/internal/telemetry"
)

const (
	shutdownTimeout    = 15 * time.Second
	mqttRetryInterval  = 30 * time.Second
	ledgerRetentionDay = 30

	// requests per second towards met.no
	sunriseRateLimit = 2
)

// GetLogger returns the app module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App owns every long running component
type App struct {
	settings *conf.Settings
	log      logger.Logger

	metrics   *observability.Metrics
	clients   []*httpclient.Client
	sources   *Sources
	fetcher   scheduler.Fetcher
	scheduler *scheduler.Scheduler
	store     *datastore.Store
	reporter  *telemetry.Reporter
	server    *api.Server

	mqttClient mqtt.Client
	mqttSink   *sink.MQTTSink
	discovery  *mqtt.Publisher
}

// Option configures optional collaborators
type Option func(*App)

// WithFetcher replaces the SolarEdge client
func WithFetcher(f scheduler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithMQTTClient replaces the paho based MQTT client
func WithMQTTClient(c mqtt.Client) Option {
	return func(a *App) { a.mqttClient = c }
}

// New builds every component enabled in settings. Nothing is started.
func New(settings *conf.Settings, opts ...Option) (*App, error) {
	a := &App{settings: settings, log: GetLogger()}
	for _, opt := range opts {
		opt(a)
	}

	reporter, err := telemetry.New(telemetry.Config{
		Enabled: settings.Sentry.Enabled,
		DSN:     settings.Sentry.DSN,
		Release: buildinfo.Get().Release(),
	})
	if err != nil {
		return nil, err
	}
	a.reporter = reporter

	a.metrics, err = observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	sunriseClient := a.newHTTPClient(&httpclient.Config{
		DefaultTimeout: settings.Sunrise.Timeout,
		UserAgent:      settings.Sunrise.UserAgent,
		Component:      "sunrise",
		RateLimit:      sunriseRateLimit,
		Burst:          2,
	})
	a.sources, err = BuildSources(settings, sunriseClient, a.metrics.Ephemeris)
	if err != nil {
		return nil, err
	}

	if a.fetcher == nil {
		if err := settings.RequireSolarEdge(); err != nil {
			return nil, err
		}
		client, err := solaredge.NewClient(solaredge.Config{
			SiteID:  settings.SolarEdge.SiteID,
			APIKey:  settings.SolarEdge.APIKey,
			BaseURL: settings.SolarEdge.BaseURL,
			Timeout: settings.SolarEdge.Timeout,
		}, a.newHTTPClient(&httpclient.Config{
			DefaultTimeout: settings.SolarEdge.Timeout,
			Component:      "solaredge",
		}))
		if err != nil {
			return nil, err
		}
		a.fetcher = client
	}

	sinks := sink.Fanout{sink.NewLogSink(nil)}
	if settings.MQTT.Enabled {
		a.buildMQTT()
		sinks = append(sinks, a.mqttSink)
	}

	schedOpts := []scheduler.Option{scheduler.WithObserver(a.metrics.Scheduler)}
	if settings.Budget.Persist {
		a.store, err = datastore.Open(settings.Database.Path)
		if err != nil {
			return nil, err
		}
		schedOpts = append(schedOpts, scheduler.WithStore(a.store))
	}
	if len(settings.Notification.URLs) > 0 {
		notifier, err := notification.New(notification.Config{
			URLs:        settings.Notification.URLs,
			TitlePrefix: "[pvpoll]",
		})
		if err != nil {
			return nil, err
		}
		schedOpts = append(schedOpts, scheduler.WithNotifier(notifier))
	}

	a.scheduler = scheduler.New(scheduler.Config{
		DailyBudget:      settings.Budget.Daily,
		FetchTimeout:     settings.Scheduler.FetchTimeout,
		FollowupInterval: settings.Scheduler.FollowupInterval,
		FailureThreshold: settings.Scheduler.FailureThreshold,
		PauseDuration:    settings.Scheduler.PauseDuration,
		StartupFetch:     settings.Scheduler.StartupFetch,
		Location:         a.sources.Location,
	}, a.sources.Model, a.fetcher, sinks, schedOpts...)

	if settings.API.Enabled {
		a.server = api.New(api.Config{
			Listen:      settings.API.Listen,
			DailyBudget: settings.Budget.Daily,
		}, a.scheduler, a.sources.Model,
			api.WithMetricsHandler(a.metrics.Handler()),
			api.WithLocation(a.sources.Location))
	}
	return a, nil
}

func (a *App) newHTTPClient(cfg *httpclient.Config) *httpclient.Client {
	c := httpclient.New(cfg)
	c.SetAfterResponseHook(a.metrics.HTTPClient.ObserveResponse)
	a.clients = append(a.clients, c)
	return c
}

func (a *App) buildMQTT() {
	s := a.settings.MQTT
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.Broker
	cfg.ClientID = s.ClientID
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Topic = s.Topic
	cfg.Retain = s.Retain

	if a.mqttClient == nil {
		a.mqttClient = mqtt.NewClient(cfg, a.metrics.MQTT)
	}
	a.mqttSink = sink.NewMQTTSink(a.mqttClient, cfg.Topic)

	if s.HomeAssistant.Enabled {
		nodeID := a.settings.SolarEdge.SiteID
		if nodeID == "" {
			nodeID = s.ClientID
		}
		a.discovery = mqtt.NewDiscoveryPublisher(a.mqttClient, &mqtt.DiscoveryConfig{
			DiscoveryPrefix: s.HomeAssistant.DiscoveryPrefix,
			BaseTopic:       cfg.Topic,
			DeviceName:      s.HomeAssistant.DeviceName,
			NodeID:          nodeID,
			Version:         buildinfo.Get().Version,
		})
	}
}

// Scheduler returns the polling scheduler
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run starts every component, blocks until ctx is cancelled or the HTTP
// server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.reporter.Install()
	defer errors.SetTelemetryReporter(nil)

	if a.store != nil {
		if _, err := a.store.Prune(ctx, time.Now().In(a.sources.Location), ledgerRetentionDay); err != nil {
			a.log.Warn("failed to prune budget ledgers", logger.Error(err))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mqttDone := make(chan struct{})
	if a.mqttSink != nil {
		a.mqttSink.Start()
		go func() {
			defer close(mqttDone)
			a.connectMQTT(runCtx)
		}()
	} else {
		close(mqttDone)
	}

	if err := a.scheduler.Start(runCtx); err != nil {
		cancel()
		<-mqttDone
		return err
	}

	var serverErr <-chan error
	if a.server != nil {
		a.server.Start()
		serverErr = a.server.Err()
	}

	a.log.Info("pvpoll running",
		logger.String("version", buildinfo.Get().String()),
		logger.Int("daily_budget", a.settings.Budget.Daily),
		logger.Bool("mqtt", a.mqttSink != nil),
		logger.Bool("api", a.server != nil),
		logger.Bool("persist", a.store != nil))

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-serverErr:
	}

	cancel()
	<-mqttDone
	a.shutdown()
	return runErr
}

// connectMQTT retries until the first connection succeeds; paho reconnects
// on its own afterwards
func (a *App) connectMQTT(ctx context.Context) {
	ticker := time.NewTicker(mqttRetryInterval)
	defer ticker.Stop()
	for {
		err := a.mqttClient.Connect(ctx)
		if err == nil {
			if a.discovery != nil {
				if err := a.discovery.PublishDiscovery(ctx); err != nil {
					a.log.Warn("Home Assistant discovery incomplete", logger.Error(err))
				}
			}
			return
		}
		a.log.Warn("MQTT connection failed, retrying",
			logger.Error(err),
			logger.Duration("retry_in", mqttRetryInterval))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("HTTP server shutdown failed", logger.Error(err))
		}
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.log.Warn("scheduler did not stop in time", logger.Error(err))
	}
	if a.mqttSink != nil {
		if err := a.mqttSink.Stop(ctx); err != nil {
			a.log.Warn("MQTT sink did not stop in time", logger.Error(err))
		}
		a.mqttClient.Disconnect()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close database", logger.Error(err))
		}
	}
	for _, c := range a.clients {
		c.Close()
	}
	a.reporter.Flush(2 * time.Second)
	a.log.Info("pvpoll stopped")
}
