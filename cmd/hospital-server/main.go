package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/config"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-server",
		Short: "Veterinary hospitalization API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the hospitalization API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// connect opens the pool for commands that only make sense against Postgres.
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

// sourceFS reads migrations from dir, or from the binary when dir is empty.
func sourceFS(dir string) fs.FS {
	if dir == "" {
		return db.Migrations
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, sourceFS(dir))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, sourceFS(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinic schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply the embedded migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating clinic schema: %s\n", db.SchemaName(name))
			if err := db.CreateClinicSchema(ctx, pool, name, db.Migrations); err != nil {
				return err
			}
			fmt.Println("Clinic created.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic identifier (letters, digits, underscore)")

	cmd.AddCommand(createCmd)
	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the classified dose schedule for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientFlag, _ := cmd.Flags().GetString("patient")
			dateFlag, _ := cmd.Flags().GetString("date")
			clinic, _ := cmd.Flags().GetString("clinic")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

			ctx := auth.WithUser(context.Background(), "cli", []string{auth.RoleAdmin})
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.pool != nil {
				if clinic == "" {
					clinic = cfg.DefaultClinic
				}
				var release func()
				if ctx, release, err = db.WithClinic(ctx, a.pool, clinic); err != nil {
					return err
				}
				defer release()
			} else if cfg.SeedDemoData {
				if err := seedDemo(ctx, a); err != nil {
					return err
				}
			}

			date := a.schedule.Today()
			if dateFlag != "" {
				if date, err = time.ParseInLocation(time.DateOnly, dateFlag, a.loc); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			var ids []uuid.UUID
			if patientFlag != "" {
				id, err := uuid.Parse(patientFlag)
				if err != nil {
					return fmt.Errorf("--patient must be a patient id: %w", err)
				}
				ids = append(ids, id)
			} else if ids, err = a.admittedPatients(ctx); err != nil {
				return err
			}

			for _, id := range ids {
				day, err := a.schedule.DaySchedule(ctx, id, date)
				if err != nil {
					return err
				}
				printDay(cmd.OutOrStdout(), day)
			}
			return nil
		},
	}
	cmd.Flags().String("patient", "", "Patient id (default: every admitted patient)")
	cmd.Flags().String("date", "", "Day to print as YYYY-MM-DD (default: today in CLINIC_TIMEZONE)")
	cmd.Flags().String("clinic", "", "Clinic schema for the remote backend (default: DEFAULT_CLINIC)")
	return cmd
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise storage")
	}
	defer a.Close()
	logger.Info().Str("backend", string(a.backend)).Str("timezone", a.loc.String()).Msg("storage ready")

	if a.pool == nil && cfg.SeedDemoData {
		seedCtx := auth.WithUser(ctx, "seed", []string{auth.RoleAdmin})
		if err := seedDemo(seedCtx, a); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed demo data")
		}
		logger.Info().Msg("demo patients loaded into memory")
	}

	e := newServer(a)

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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
