package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentalhub/dentalhub/internal/config"
	"github.com/dentalhub/dentalhub/internal/domain/identity"
	"github.com/dentalhub/dentalhub/internal/domain/messaging"
	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
	"github.com/dentalhub/dentalhub/internal/platform/db"
	"github.com/dentalhub/dentalhub/internal/platform/events"
	"github.com/dentalhub/dentalhub/internal/platform/middleware"
	"github.com/dentalhub/dentalhub/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dental-server",
		Short: "Dental marketplace API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
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
			})
		},
	})

	return cmd
}

func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
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

	m, err := db.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(ctx, m)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// authMiddleware picks dev or bearer authentication. Public paths skip
// verification.
func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}

	if cfg.IsDev() {
		logger.Warn().Msg("development auth enabled: unauthenticated requests run as admin")
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// buildPublisher fans events out to websocket clients and, when configured,
// an external broker. The returned close func releases the broker.
func buildPublisher(cfg *config.Config, hub *websocket.Hub, logger zerolog.Logger) (events.Publisher, func(), error) {
	switch cfg.EventsBackend {
	case config.EventsBackendKafka:
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka events enabled")
		return events.Fanout{hub, kp}, func() { _ = kp.Close() }, nil
	case config.EventsBackendRabbitMQ:
		ap, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("exchange", cfg.RabbitMQExchange).Msg("rabbitmq events enabled")
		return events.Fanout{hub, ap}, func() { _ = ap.Close() }, nil
	default:
		return events.Fanout{hub}, func() {}, nil
	}
}

// newServer wires middleware, services and routes onto a fresh echo
// instance.
func newServer(cfg *config.Config, pool *pgxpool.Pool, pub events.Publisher, hub *websocket.Hub, logger zerolog.Logger) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevUserHeader},
	}))
	e.Use(middleware.BodyLimit(middleware.DefaultBodyLimits()))
	e.Use(authMiddleware(cfg, logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	tx := db.NewTransactor(pool)

	// Directory
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewDentistRepoPG(pool),
		logger.With().Str("component", "identity").Logger(),
	)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Availability engine
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), identitySvc, tx, scheduling.Options{
		Granularity:   cfg.SlotGranularity(),
		QuickLeadTime: cfg.QuickBookingLeadTime,
		FullLeadTime:  cfg.BookingLeadTime,
		Location:      loc,
		Publisher:     pub,
		Logger:        logger.With().Str("component", "scheduling").Logger(),
	})
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	// Conversation resolver
	msgLogger := logger.With().Str("component", "messaging").Logger()
	resolver, err := messaging.NewResolver(identitySvc, cfg.ParticipantCacheSize)
	if err != nil {
		return nil, err
	}
	messagingSvc := messaging.NewService(
		messaging.NewConversationRepoPG(pool),
		messaging.NewMessageRepoPG(pool),
		resolver,
		tx,
		messaging.Options{
			Notifier: messaging.NewEventNotifier(pub, msgLogger),
			Logger:   msgLogger,
		},
	)
	messaging.NewHandler(messagingSvc).RegisterRoutes(apiV1)

	// Realtime
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	pub, closePub, err := buildPublisher(cfg, hub, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start event publisher")
	}
	defer closePub()

	e, err := newServer(cfg, pool, pub, hub, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
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
	}
	logger.Info().Msg("server stopped")
	return nil
}
