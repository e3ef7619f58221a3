package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"example.com/brandevents/internal/cache"
	"example.com/brandevents/internal/config"
	"example.com/brandevents/internal/diagnostics"
	"example.com/brandevents/internal/events"
	"example.com/brandevents/internal/hydrate"
	"example.com/brandevents/internal/idempotency"
	"example.com/brandevents/internal/lock"
	"example.com/brandevents/internal/logger"
	"example.com/brandevents/internal/qr"
	"example.com/brandevents/internal/storage/memory"
	spg "example.com/brandevents/internal/storage/postgres"
	"example.com/brandevents/internal/tenant"
	transport "example.com/brandevents/internal/transport/http"
	"example.com/brandevents/internal/worker"
)

// backend bundles the store-specific collaborators.
type backend struct {
	rows     events.RowStore
	sponsors hydrate.SponsorResolver
	markers  idempotency.Cache
	sink     diagnostics.Sink
	querier  diagnostics.Querier
	locker   events.Locker
	pinger   transport.Pinger
	close    func()
}

func main() {
	configDir := flag.String("config", ".", "directory searched for config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, _, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("events-api stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	dir, err := tenant.NewDirectory(cfg.Tenants)
	if err != nil {
		return fmt.Errorf("tenants: %w", err)
	}

	pool, err := worker.New("hydrate", cfg.Events.HydratePoolSize, logger.Component(log, "worker"))
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release(cfg.Server.ShutdownTimeout)

	reporter := diagnostics.NewReporter(be.sink,
		cfg.Diagnostics.QueueMaxSize, cfg.Diagnostics.BatchMaxSize, cfg.Diagnostics.BatchMaxWait,
		logger.Component(log, "diagnostics"))
	reporter.Start(ctx)

	qrClient := qr.New(cfg.QR.Endpoint, cfg.QR.Size, cfg.QR.Timeout)
	svc := events.New(events.Deps{
		Store:       be.rows,
		Locker:      be.locker,
		Directory:   dir,
		Hydrator:    hydrate.New(qrClient, be.sponsors, logger.Component(log, "hydrate")),
		Guard:       idempotency.NewGuard(be.markers, cfg.Idempotency.TTL),
		Diagnostics: reporter,
		Pool:        pool,
		Logger:      logger.Component(log, "events"),
		LockTimeout: cfg.Lock.Timeout,
	})

	deps := &transport.ServerDeps{
		Cfg:         cfg.Server,
		Service:     svc,
		Directory:   dir,
		Diagnostics: be.querier,
		Store:       be.pinger,
		Pool:        pool,
		APIKeys:     cfg.APIKeySet(),
		Logger:      logger.Component(log, "http"),
		Now:         func() time.Time { return time.Now().UTC() },
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Backend),
			zap.String("lock", cfg.Lock.Mode),
			zap.Int("tenants", len(cfg.Tenants)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	select {
	case <-reporter.Done():
	case <-shutdownCtx.Done():
		log.Warn("diagnostics flush did not finish before shutdown timeout")
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	if cfg.Store.Backend == config.BackendMemory {
		store := memory.New()
		sink := diagnostics.NewMemorySink()
		var locker events.Locker = lock.NewManager()
		if cfg.Lock.Mode == config.LockGlobal {
			locker = lock.NewGlobal()
		}
		log.Info("store: in memory")
		return &backend{
			rows:     store,
			sponsors: store,
			markers:  cache.NewMemory(nil),
			sink:     sink,
			querier:  sink,
			locker:   locker,
			pinger:   store,
			close:    func() {},
		}, nil
	}

	db, err := spg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	log.Info("db: connected")
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	log.Info("db: migrations applied")

	var locker events.Locker
	switch cfg.Lock.Mode {
	case config.LockAdvisory:
		locker = spg.NewAdvisoryLocker(db)
	case config.LockGlobal:
		locker = lock.NewGlobal()
	default:
		locker = lock.NewManager()
	}

	markers := spg.NewMarkerCache(db)
	go purgeMarkers(ctx, markers, cfg.Idempotency.TTL, logger.Component(log, "idempotency"))

	writer := spg.NewDiagnosticsWriter(db)
	return &backend{
		rows:     spg.NewRowStore(db),
		sponsors: spg.NewSponsorStore(db),
		markers:  markers,
		sink:     writer,
		querier:  writer,
		locker:   locker,
		pinger:   db,
		close:    db.Close,
	}, nil
}

// purgeMarkers deletes expired idempotency markers once per TTL.
func purgeMarkers(ctx context.Context, c *spg.MarkerCache, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge expired markers", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired markers", zap.Int64("count", n))
			}
		}
	}
}
