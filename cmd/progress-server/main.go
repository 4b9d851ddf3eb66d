package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/healthprogress/internal/config"
	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/domain/postnatal"
	"github.com/ehr/healthprogress/internal/domain/progress"
	"github.com/ehr/healthprogress/internal/platform/db"
	"github.com/ehr/healthprogress/internal/platform/events"
	"github.com/ehr/healthprogress/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "progress-server",
		Short: "Health progress intake and aggregation API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(conditionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	config.LoadDotEnv()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	var publisher events.Publisher
	if cfg.KafkaEnabled() {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing entry events to kafka")
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	registry := condition.MustRegistry(condition.Catalog()...)
	e := newServer(cfg, logger, registry, deps{
		pinger:    pool,
		poolStats: db.PoolStatsFunc(pool),
		entries:   progress.NewStorePG(pool, cfg.StorageTimeout),
		profiles:  postnatal.NewRepoPG(pool, cfg.StorageTimeout),
		publisher: publisher,
	})
	logger.Info().Int("conditions", registry.Len()).Msg("routes registered")

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// migrationSource reads migrations from dir when it exists on disk and
// falls back to the SQL embedded in the binary.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(cmd *cobra.Command, run func(ctx context.Context, m *db.Migrator, schema string) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		schema, _ := cmd.Flags().GetString("schema")
		if schema == "" {
			schema = cfg.DBSchema
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.MigrationsDir
		}

		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()

		return run(ctx, db.NewMigrator(pool, migrationSource(dir)), schema)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("Migration status for schema: %s\n", schema)
				printStatus(os.Stdout, statuses)
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
		c.Flags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR, then the embedded set)")
		cmd.AddCommand(c)
	}
	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func conditionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conditions",
		Short: "List registered condition types and their routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			printConditions(cmd.OutOrStdout(), condition.MustRegistry(condition.Catalog()...))
			return nil
		},
	}
}

func printConditions(w io.Writer, registry *condition.Registry) {
	fmt.Fprintf(w, "%-16s %-36s %-10s %s\n", "CONDITION", "PREFIX", "URGENCY", "KEYS")
	fmt.Fprintln(w, strings.Repeat("-", 75))
	for _, spec := range registry.Specs() {
		keys := "permissive"
		if spec.Strict {
			keys = "strict"
		}
		fmt.Fprintf(w, "%-16s %-36s %-10s %s\n", spec.Type, spec.Prefix, spec.UrgencySource, keys)
	}
}
