package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GoCodeAlone/modular"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/config"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/httpapi"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository/sqlitestore"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/scheduler"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/secretbox"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/subscriber"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/telemetry"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/worker"
)

// engineModule assembles and runs the whole task-scheduling engine as one
// modular.Module: the two schedulers, the WebSub/RSS subscriber front ends,
// and the HTTP surface that fronts them all. Grounded on
// examples/basic-app/webserver/webserver.go's Start/Stop goroutine shape
// (ListenAndServe in one goroutine, ctx.Done()-triggered Shutdown in
// another) and modules/scheduler/module.go's Init-constructs-everything
// pattern, collapsed into a single module because this application's top-
// level config is one unified struct rather than per-module sections
// (examples/basic-app/main.go's AppConfig idiom).
type engineModule struct {
	app modular.Application
	cfg *config.Config

	store *sqlitestore.Store
	pair  *scheduler.Pair
	rss   *subscriber.RSS

	server *http.Server
}

func newEngineModule() *engineModule { return &engineModule{} }

func (m *engineModule) Name() string { return "easyrepostd" }

func (m *engineModule) Init(app modular.Application) error {
	m.app = app
	cfg, ok := app.ConfigProvider().GetConfig().(*config.Config)
	if !ok {
		return fmt.Errorf("easyrepostd: config provider did not yield *config.Config")
	}
	m.cfg = cfg
	logger := app.Logger()

	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("easyrepostd: open sqlite store: %w", err)
	}
	m.store = store

	downloadBus := eventbus.New()
	uploadBus := eventbus.New()
	factory := worker.FactoryFunc(newSimulatedWorker)

	downloadSched := scheduler.New(task.KindDownload, store.TaskRepositoryFor(task.KindDownload), downloadBus, factory, nil,
		scheduler.Config{
			MaxConcurrent:     cfg.Download.MaxConcurrent,
			RetryDelaySeconds: cfg.Download.RetryDelay * 60,
			AutoRetry:         cfg.Download.AutoRetry,
			AutoWaitSeconds:   cfg.Download.AutoWaitSeconds,
		}, logger)
	uploadSched := scheduler.New(task.KindUpload, store.TaskRepositoryFor(task.KindUpload), uploadBus, factory, nil,
		scheduler.Config{
			MaxConcurrent:     cfg.Upload.MaxConcurrent,
			RetryDelaySeconds: cfg.Upload.RetryDelay * 60,
			AutoRetry:         cfg.Upload.AutoRetry,
			AutoWaitSeconds:   cfg.Upload.AutoWaitSeconds,
		}, logger)

	downloadSched.BindAutoRetry()
	uploadSched.BindAutoRetry()

	if target := cfg.CloudEventsTarget; target != "" {
		sink, err := telemetry.NewHTTPSink(target)
		if err != nil {
			return fmt.Errorf("easyrepostd: build cloudevents sink: %w", err)
		}
		downloadSched.SetEmitter(telemetry.NewCloudEventEmitter(cfg.CloudEventsSource+"/download", sink))
		uploadSched.SetEmitter(telemetry.NewCloudEventEmitter(cfg.CloudEventsSource+"/upload", sink))
	} else {
		downloadSched.SetEmitter(telemetry.NewCloudEventEmitter(cfg.CloudEventsSource+"/download", telemetry.NopSink{}))
		uploadSched.SetEmitter(telemetry.NewCloudEventEmitter(cfg.CloudEventsSource+"/upload", telemetry.NopSink{}))
	}

	m.pair = scheduler.NewPair(downloadSched, uploadSched)

	box := secretbox.New(cfg.WebHubSecretKey)
	subscriptionBus := eventbus.New()
	hubClient := subscriber.NewHubClient(nil)
	core := subscriber.NewCore(
		store.SubscriptionRepository(),
		store.HubRepository(),
		subscriptionBus,
		box,
		downloadSched,
		hubClient,
		logger,
		cfg.CallBackURL,
		cfg.SubscriptionToken,
		time.Duration(cfg.ValidationIntervalSeconds)*time.Second,
		cfg.WebSubLeaseSeconds,
	)
	ws := subscriber.NewWebSub(core)
	m.rss = subscriber.NewRSS(core, subscriber.NewFeedFetcher(nil))

	router := httpapi.NewRouter(httpapi.Deps{
		Download:      downloadSched,
		Upload:        uploadSched,
		WebSub:        ws,
		RSS:           m.rss,
		Hubs:          store.HubRepository(),
		Subscriptions: store.SubscriptionRepository(),
		AppToken:      cfg.AppToken,
		Logger:        logger,
	})
	m.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("easyrepostd initialized", "http_addr", cfg.HTTPAddr, "sqlite_path", cfg.SQLitePath)
	return nil
}

func (m *engineModule) Start(ctx context.Context) error {
	if err := m.pair.LoadAll(ctx); err != nil {
		return fmt.Errorf("easyrepostd: load tasks: %w", err)
	}
	if err := m.rss.Rearm(ctx); err != nil {
		m.app.Logger().Warn("easyrepostd: rearm rss subscriptions failed", "error", err)
	}

	go m.pair.Run(ctx)
	if m.cfg.Auto.Subscription {
		m.rss.Start()
	}

	go func() {
		m.app.Logger().Info("easyrepostd http server starting", "addr", m.cfg.HTTPAddr)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.app.Logger().Error("easyrepostd http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		m.app.Logger().Info("easyrepostd stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			m.app.Logger().Error("easyrepostd http server shutdown error", "error", err)
		}
		m.rss.Stop()
		if err := m.store.Close(); err != nil {
			m.app.Logger().Error("easyrepostd: close sqlite store", "error", err)
		}
	}()

	return nil
}

func (m *engineModule) Stop(ctx context.Context) error {
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("easyrepostd: shutdown http server: %w", err)
	}
	return nil
}
