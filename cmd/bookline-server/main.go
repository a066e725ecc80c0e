package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bookline/bookline/internal/config"
	"github.com/bookline/bookline/internal/domain/appointment"
	"github.com/bookline/bookline/internal/domain/catalog"
	"github.com/bookline/bookline/internal/domain/customer"
	"github.com/bookline/bookline/internal/domain/provider"
	"github.com/bookline/bookline/internal/platform/db"
	"github.com/bookline/bookline/internal/platform/hours"
	"github.com/bookline/bookline/internal/platform/metrics"
	"github.com/bookline/bookline/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookline-server",
		Short: "Appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Write a new forward migration that reverts the change instead.")
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample data for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			return runSeed(ctx, pool)
		},
	}
}

// runSeed populates an empty database with a small demo dataset: two
// providers, a few catalog services, two customers and two bookings
// tomorrow morning so the calendar has something to show. It refuses to
// touch a database that already has providers.
func runSeed(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)

		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM provider`).Scan(&n); err != nil {
			return fmt.Errorf("check existing data: %w", err)
		}
		if n > 0 {
			fmt.Println("Database already has providers, skipping seed.")
			return nil
		}

		var marta, jorge int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO provider (full_name, specialty) VALUES ($1, $2) RETURNING id`,
			"Marta López", "Hair stylist").Scan(&marta); err != nil {
			return fmt.Errorf("seed providers: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO provider (full_name, specialty) VALUES ($1, $2) RETURNING id`,
			"Jorge Fuentes", "Barber").Scan(&jorge); err != nil {
			return fmt.Errorf("seed providers: %w", err)
		}

		var haircut, trim int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO service (name, duration_minutes, price) VALUES ($1, $2, $3) RETURNING id`,
			"Haircut", 30, 25.00).Scan(&haircut); err != nil {
			return fmt.Errorf("seed services: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO service (name, duration_minutes, price) VALUES ($1, $2, $3) RETURNING id`,
			"Beard trim", 15, 12.00).Scan(&trim); err != nil {
			return fmt.Errorf("seed services: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO service (name, duration_minutes, price)
			 VALUES ('Full color', 90, 75.00), ('Kids haircut', 20, 15.00)`); err != nil {
			return fmt.Errorf("seed services: %w", err)
		}

		var ana, pablo int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO customer (full_name, phone, email) VALUES ($1, $2, $3) RETURNING id`,
			"Ana Torres", "+34 600 111 222", "ana.torres@example.com").Scan(&ana); err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO customer (full_name, phone, email) VALUES ($1, $2, $3) RETURNING id`,
			"Pablo Ruiz", "+34 600 333 444", "pablo.ruiz@example.com").Scan(&pablo); err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO appointment (customer_id, service_id, provider_id, start_at, duration_minutes, end_at, status, booking_channel)
VALUES
  ($1, $2, $3, date_trunc('day', now()) + interval '1 day 10 hours', 30,
   date_trunc('day', now()) + interval '1 day 10 hours 30 minutes', 'scheduled', 'online'),
  ($4, $5, $6, date_trunc('day', now()) + interval '1 day 11 hours', 15,
   date_trunc('day', now()) + interval '1 day 11 hours 15 minutes', 'confirmed', 'phone')`,
			ana, haircut, marta, pablo, trim, jorge); err != nil {
			return fmt.Errorf("seed appointments: %w", err)
		}

		fmt.Println("Seeded 2 providers, 4 services, 2 customers and 2 appointments.")
		return nil
	})
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = logger.Level(logLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load scheduling timezone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Business hours
	hoursSrc, err := hours.New(hours.Config{
		DefaultOpen:  cfg.DefaultOpen,
		DefaultClose: cfg.DefaultClose,
		File:         cfg.HoursFile,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid default business hours")
	}
	if err := hoursSrc.Load(); err != nil {
		logger.Fatal().Err(err).Msg("failed to load business hours file")
	}

	// SIGHUP reloads the hours file without a restart
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := hoursSrc.Load(); err != nil {
				logger.Error().Err(err).Msg("business hours reload failed")
				continue
			}
			logger.Info().Msg("business hours reloaded")
		}
	}()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", appointment.ScopeHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second))

	// API group
	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Domain wiring
	customerSvc := customer.NewService(customer.NewRepoPG(pool))
	customer.NewHandler(customerSvc).RegisterRoutes(apiV1)

	providerSvc := provider.NewService(provider.NewRepoPG(pool))
	provider.NewHandler(providerSvc).RegisterRoutes(apiV1)

	catalogSvc := catalog.NewCatalog(catalog.NewRepoPG(pool))
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)

	apptSvc := appointment.NewService(
		appointment.NewRepoPG(pool, loc),
		hoursSrc,
		catalogSvc,
		providerSvc,
		appointment.Config{
			Location:               loc,
			StepMinutes:            cfg.SlotStepMinutes,
			BufferMinutes:          cfg.BufferMinutes,
			DefaultDurationMinutes: cfg.DefaultDuration,
			Transitions:            transitionPolicyFor(cfg.StrictTransitions),
		},
	)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// DB health check endpoint
	e.GET("/health/db", db.HealthHandler(pool))

	// Prometheus metrics
	e.GET("/metrics", metrics.Handler())

	// Pool stats sampler for the connection gauges
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for range t.C {
			st := db.GetPoolStats(pool)
			metrics.SetDBPool(int64(st.AcquiredConns), int64(st.IdleConns), int64(st.TotalConns))
		}
	}()

	// Graceful shutdown
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

// logLevel maps the configured level name onto zerolog's scale. Unknown
// names fall back to info rather than failing startup.
func logLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// transitionPolicyFor picks the status transition rules the service runs
// with. Permissive matches historical behavior; strict enforces the
// forward-only lifecycle.
func transitionPolicyFor(strict bool) appointment.TransitionPolicy {
	if strict {
		return appointment.StrictTransitions
	}
	return appointment.PermissiveTransitions
}
