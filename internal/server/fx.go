// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/api"
	"github.com/JakeFAU/docbridge/internal/bridge"
	"github.com/JakeFAU/docbridge/internal/clock/system"
	"github.com/JakeFAU/docbridge/internal/config"
	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/dispatcher"
	"github.com/JakeFAU/docbridge/internal/id/uuid"
	"github.com/JakeFAU/docbridge/internal/logging"
	"github.com/JakeFAU/docbridge/internal/logstream"
	"github.com/JakeFAU/docbridge/internal/metrics"
	"github.com/JakeFAU/docbridge/internal/hash/sha256"
	"github.com/JakeFAU/docbridge/internal/pdf"
	"github.com/JakeFAU/docbridge/internal/policy/ratelimit"
	"github.com/JakeFAU/docbridge/internal/progress"
	progresssinks "github.com/JakeFAU/docbridge/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/docbridge/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/docbridge/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/docbridge/internal/queue/memory"
	"github.com/JakeFAU/docbridge/internal/service"
	gcsstorage "github.com/JakeFAU/docbridge/internal/storage/gcs"
	localstorage "github.com/JakeFAU/docbridge/internal/storage/local"
	memoryStorage "github.com/JakeFAU/docbridge/internal/storage/memory"
	pgstore "github.com/JakeFAU/docbridge/internal/storage/postgres"
	"github.com/JakeFAU/docbridge/internal/store"
	"github.com/JakeFAU/docbridge/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	stream       *logstream.Broadcaster
	apiServer    *api.Server
	pool         *dispatcher.Dispatcher
	bridge       *bridge.Dispatcher
	service      *service.Service
	progressHub  *progress.Hub
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	storage      *storage.Client
	runStore     store.RunRepository
	pgStore      *pgstore.RunStore
	tracer       *sdktrace.TracerProvider
	ready        []api.ReadyFunc

	poolCancel context.CancelFunc
	poolDone   chan struct{}
	closeOnce  sync.Once
}

// Options adjust Build for embedding callers such as the CLI.
type Options struct {
	// Logger replaces the configured logger. It must already be teed into
	// Stream, which is then required too.
	Logger *zap.Logger
	Stream *logstream.Broadcaster
	// Registerer receives the progress metrics; defaults to the global registry.
	Registerer prometheus.Registerer
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Define a struct for logging only non-sensitive config fields
	type SanitizedConfig struct {
		ServerPort     int    `json:"server_port"`
		Workers        int    `json:"workers"`
		StorageBackend string `json:"storage_backend"`
		Database       bool   `json:"database"`
		PubSub         bool   `json:"pubsub"`
	}
	safeCfg := SanitizedConfig{
		ServerPort:     cfg.Server.Port,
		Workers:        cfg.Convert.Workers,
		StorageBackend: cfg.Storage.Backend,
		Database:       cfg.Database.DSN != "",
		PubSub:         cfg.PubSub.TopicName != "",
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Service exposes the tool service for in-process callers.
func (a *App) Service() *service.Service {
	return a.service
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Start launches the worker pool in the background. Close stops it.
func (a *App) Start(ctx context.Context) {
	if a.poolDone != nil {
		return
	}
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.poolCancel = cancel
	a.poolDone = make(chan struct{})
	go func() {
		defer close(a.poolDone)
		a.logger.Info("worker pool started", zap.Int("workers", a.pool.Size()))
		a.pool.Run(poolCtx)
	}()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application. In-flight conversions finish
// before the progress hub flushes, so their terminal events are persisted.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.stopPool(ctx)
		a.closeInfrastructure(ctx)
		if err := a.logger.Sync(); err != nil {
			a.logger.Debug("logger sync failed", zap.Error(err))
		}
		a.logger.Info("shutdown complete")
	})
	return nil
}

func (a *App) stopPool(ctx context.Context) {
	if a.poolCancel == nil {
		return
	}
	a.poolCancel()
	select {
	case <-a.poolDone:
	case <-ctx.Done():
		a.logger.Warn("worker pool did not stop before shutdown deadline")
	}
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	stream := opts.Stream
	logger := opts.Logger
	if logger == nil {
		stream = logstream.NewBroadcaster()
		var err error
		logger, err = logging.New(
			cfg.Logging.Development,
			logstream.Tee(stream, logstream.ParseLevel(cfg.LogStream.Level)),
		)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	if stream == nil {
		return nil, errors.New("a log stream is required with a custom logger")
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	app.stream = stream
	metrics.Init()

	app.logger.Info("building application dependencies")
	if cfg.Tracing.Enabled {
		app.tracer, err = telemetry.InitTracing(ctx, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		app.logger.Info("tracing enabled",
			zap.String("service", cfg.Tracing.ServiceName),
			zap.Bool("cloud_trace", cfg.Tracing.ProjectID != ""),
		)
	}

	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}

	if err = setupDatabase(ctx, app); err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	progressEmitter, err := setupProgress(ctx, app, registerer)
	if err != nil {
		return nil, err
	}

	if err = setupBridge(app, progressEmitter); err != nil {
		return nil, err
	}

	app.service, err = service.New(service.Config{
		InputDir:       cfg.Convert.InputDir,
		Topic:          cfg.PubSub.TopicName,
		ArtifactPrefix: cfg.Storage.Prefix,
	}, service.Deps{
		Runner:    app.bridge,
		Converter: pdf.NewConverter(nil),
		Inspector: pdf.NewInspector(nil),
		Unlocker:  pdf.NewUnlocker(cfg.Convert.TempDir),
		Blobs:     blobStore,
		Publisher: publisher,
		Hasher:    sha256.New(),
		IDs:       uuid.New(),
		Clock:     system.New(),
		Logger:    logger.Named("service"),
	})
	if err != nil {
		return nil, fmt.Errorf("service init failed: %w", err)
	}

	apiOpts := api.Options{
		Tools:  app.service,
		Runs:   app.runStore,
		Auth:   cfg.Auth,
		Ready:  app.ready,
		Logger: logger.Named("api"),
	}
	if cfg.RateLimit.Enabled() {
		apiOpts.Limiter = ratelimit.New(cfg.RateLimit)
		app.logger.Info("tool call rate limit enabled",
			zap.Float64("rps", cfg.RateLimit.RPS),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}
	app.apiServer = api.NewServer(apiOpts)

	return app, nil
}

func setupStorage(ctx context.Context, app *App) (conversion.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		app.logger.Info("using GCS storage backend")
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err := gcsstorage.New(app.storage, gcsstorage.Config{
			Bucket: app.cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS storage backend", zap.String("bucket", app.cfg.Storage.Bucket))
		return blobStore, nil
	case "local":
		app.logger.Info("using local storage backend")
		blobStore, err := localstorage.New(app.cfg.Storage.Local)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local storage backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		return blobStore, nil
	case "memory":
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	default:
		app.logger.Info("artifact upload disabled")
		return nil, nil
	}
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.Database.DSN == "" {
		app.logger.Warn("No DSN specified for database, keeping conversion runs in memory")
		app.runStore = memoryStorage.NewRunStore()
		return nil
	}
	pg, err := pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{
		DSN:             app.cfg.Database.DSN,
		Table:           app.cfg.Database.Table,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: app.cfg.Database.MaxConnLifetime,
		Migrate:         app.cfg.Database.Migrate,
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	app.pgStore = pg
	app.runStore = pg
	app.ready = append(app.ready, pg.Ping)
	app.logger.Info("run store initialized", zap.String("table", app.cfg.Database.Table))
	return nil
}

func setupPublisher(ctx context.Context, app *App) (conversion.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient, map[string]string{"source": "docbridge"})
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.publisher, nil
}

func setupProgress(
	ctx context.Context,
	app *App,
	registerer prometheus.Registerer,
) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return nil, nil
	}
	sinkList := []progress.Sink{
		progresssinks.NewStoreSink(app.runStore, app.logger.Named("progress_store")),
	}
	promSink, err := progresssinks.NewPrometheusSink(registerer)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if app.cfg.Progress.LogEnabled {
		sinkList = append(
			sinkList,
			progresssinks.NewLogSink(app.logger.Named("progress_log")),
		)
		app.logger.Debug("Added progress log sink")
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}

func setupBridge(app *App, emitter progress.Emitter) error {
	queue := queueMemory.NewQueue(app.cfg.Convert.QueueDepth)
	app.pool = dispatcher.NewPool(queue, app.cfg.Convert.Workers, app.logger.Named("worker"))
	var err error
	app.bridge, err = bridge.NewDispatcher(bridge.Config{
		Stream:  app.stream,
		Pool:    app.pool,
		IDs:     uuid.New(),
		Clock:   system.New(),
		Emitter: emitter,
		Logger:  app.logger.Named("convert"),
	})
	if err != nil {
		return fmt.Errorf("bridge init failed: %w", err)
	}
	app.logger.Info("conversion bridge ready",
		zap.Int("workers", app.pool.Size()),
		zap.Int("queue_depth", app.cfg.Convert.QueueDepth),
	)
	return nil
}
