package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	pgstore "live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/infra/sqlite"
	"live-quiz-service/internal/logger"
	transport "live-quiz-service/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config, instanceID string) *slog.Logger {
	return logger.New(logger.Config{
		Service:    cfg.Logging.Service,
		Version:    cfg.Logging.Version,
		InstanceID: instanceID,
		Env:        logger.ParseEnv(cfg.Logging.Env),
		Backend:    logger.Backend(cfg.Logging.Backend),
		Debug:      cfg.Logging.Debug,
		AddSource:  cfg.Logging.AddSource,
	})
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	instanceID := uuid.NewString()
	log := newLogger(cfg, instanceID)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var (
		loader   memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
		archiver app.Archiver      = memory.NewArchive(100)
	)
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgstore.NewQuizLoader(pool)
		archiver = pgstore.NewArchive(pool)
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		loader = store
		archiver = store
	default:
		log.Warn("no catalog database configured, serving built-in sample quizzes")
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	hub := memory.NewHub(log)
	var (
		quizRepo    app.QuizRepository
		roomStore   app.RoomStore
		broadcaster app.Broadcaster = hub
		relay       *redisinfra.Relay
	)
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL, log)
		roomStore = redisinfra.NewRoomStore(redisClient, redisTTL, instanceID, log)
		relay = redisinfra.NewRelay(hub, redisClient, 0, log)
		broadcaster = relay
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		roomStore = memory.NewRoomStore()
	}

	registry := app.NewRegistry(roomStore, quizRepo, broadcaster,
		app.WithArchiver(archiver),
		app.WithCodeLength(cfg.Room.CodeLength),
		app.WithLogger(log),
	)
	idleTimeout := config.Duration(cfg.Room.IdleTimeout, time.Hour)
	sweepInterval := config.Duration(cfg.Room.SweepInterval, time.Minute)
	if redisClient != nil && sweepInterval > redisTTL/2 {
		// reservations are refreshed by the sweep, so it must run well inside the TTL
		sweepInterval = redisTTL / 2
	}
	sweeper := app.NewSweeper(registry, sweepInterval, idleTimeout, log)

	var authenticator auth.Authenticator = auth.Open{}
	if cfg.Auth.JWTSecret != "" {
		authenticator = auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		log.Warn("auth.jwtSecret not set, accepting unsigned role:identity tokens")
	}

	router := transport.NewRouter(
		transport.NewWSHandler(registry, authenticator,
			transport.WithSendBuffer(cfg.Server.SendBuffer),
			transport.WithPingInterval(config.Duration(cfg.Server.PingInterval, 30*time.Second)),
			transport.WithWSLogger(log),
		),
		transport.NewRoomsHandler(registry, cfg.Server.PublicURL, log),
	)
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		for _, room := range registry.Rooms() {
			if cerr := registry.CloseRoom(shutdownCtx, room.Code(), "shutdown"); cerr != nil {
				log.Debug("close on shutdown skipped", "room", room.Code(), "err", cerr)
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "err", err)
		return err
	}
	return nil
}
