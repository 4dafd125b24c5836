package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	pgstore "live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	"live-quiz-service/internal/infra/sqlite"
)

type quizSaver interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// NewMigrateCmd applies database migrations and optionally seeds the sample quizzes.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg, "")
			return runMigrate(cmd.Context(), cfg, seed, log)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the built-in sample quizzes")
	return cmd
}

func runMigrate(ctx context.Context, cfg config.Config, seed bool, log *slog.Logger) error {
	var saver quizSaver
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		if seed {
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()
			saver = pgstore.NewQuizLoader(pool)
		}
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info("sqlite schema applied", "path", cfg.SQLite.Path)
		saver = store
	default:
		return fmt.Errorf("neither postgres.url nor sqlite.path is configured")
	}

	if saver == nil {
		return nil
	}
	for _, quiz := range sampleQuizzes() {
		if err := saver.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
	}
	log.Info("sample quizzes seeded", "count", len(sampleQuizzes()))
	return nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Info("database schema up to date")
		return nil
	}
	log.Info("migrations applied", "group", group.String())
	return nil
}
