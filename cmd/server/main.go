package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"dispatch/internal/api"
	"dispatch/internal/api/handlers"
	"dispatch/internal/auth"
	"dispatch/internal/broadcast"
	"dispatch/internal/config"
	"dispatch/internal/geo"
	"dispatch/internal/logging"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/repository/redis"
	"dispatch/internal/services"
	"dispatch/internal/session"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	envFile := pflag.String("env-file", "", "path to a .env file (default: nearest .env upwards)")
	addr := pflag.String("addr", "", "listen address, overrides server.port")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Port = *addr
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// backends holds the clients shared between the store and the sync
// transport so each is opened once.
type backends struct {
	redis *goredis.Client
	pg    *pgxpool.Pool
}

func (b *backends) close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.pg != nil {
		b.pg.Close()
	}
}

func (b *backends) redisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if b.redis == nil {
		rdb, err := redis.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
		if err != nil {
			return nil, err
		}
		b.redis = rdb
	}
	return b.redis, nil
}

func (b *backends) pgPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if b.pg == nil {
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		b.pg = pool
	}
	return b.pg, nil
}

func openStore(ctx context.Context, cfg *config.Config, b *backends) (repository.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		rdb, err := b.redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redis.NewStore(rdb), nil
	case config.BackendPostgres:
		pool, err := b.pgPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(ctx, pool)
	default:
		return memory.NewStore(), nil
	}
}

// openNotifier returns the change signal and, for shared backends, the
// bridge that must be run to hear other processes.
func openNotifier(ctx context.Context, cfg *config.Config, b *backends, logger *zap.Logger) (broadcast.Notifier, *broadcast.Bridge, error) {
	local := broadcast.NewLocal()

	var transport broadcast.Transport
	switch cfg.Sync.Backend {
	case config.BackendRedis:
		rdb, err := b.redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		transport = broadcast.NewRedisTransport(rdb, cfg.Sync.Channel)
	case config.BackendPostgres:
		pool, err := b.pgPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		transport = broadcast.NewPostgresTransport(pool, cfg.Sync.Channel)
	case config.BackendAMQP:
		t, err := broadcast.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, nil, err
		}
		transport = t
	default:
		return local, nil, nil
	}

	bridge := broadcast.NewBridge(local, transport, logger)
	bridge.SetRetryDelay(cfg.Sync.RetryDelay)
	return bridge, bridge, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	b := &backends{}
	defer b.close()

	store, err := openStore(ctx, cfg, b)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	notifier, bridge, err := openNotifier(ctx, cfg, b, logger)
	if err != nil {
		return fmt.Errorf("open %s sync: %w", cfg.Sync.Backend, err)
	}
	if bridge != nil {
		defer bridge.Close()
		go bridge.Run(ctx)
	}

	repo := repository.New(store, notifier, cfg.Storage.KeyPrefix, logger)

	gate, err := auth.NewAdminGate(cfg.Admin.Passphrase, cfg.Admin.TokenSecret, cfg.Admin.TokenTTL)
	if err != nil {
		return err
	}
	estimator := geo.NewEstimator(geo.Coordinates{Lat: cfg.Kitchen.Lat, Lng: cfg.Kitchen.Lng})

	// Initialize services
	notificationService := services.NewNotificationService(nil, nil, logger)
	dispatchService := services.NewDispatchService(repo, logger)
	deliveryService := services.NewDeliveryService(repo, logger)

	sessions := session.NewManager(repo, logger, notificationService.Watch)
	defer sessions.Close()

	// Initialize handlers
	adminHandler := handlers.NewAdminHandler(gate, dispatchService, logger)
	riderHandler := handlers.NewRiderHandler(deliveryService, notificationService, estimator, logger)
	geoHandler := handlers.NewGeoHandler(estimator)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	api.NewRouter(adminHandler, riderHandler, geoHandler, gate, sessions, logger, cfg.Server.CORSOrigins).Setup(engine)

	httpServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("sync", cfg.Sync.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
