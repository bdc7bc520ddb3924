package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medicore/hms/internal/config"
	"github.com/medicore/hms/internal/domain/appointments"
	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/domain/clinical"
	"github.com/medicore/hms/internal/domain/documents"
	"github.com/medicore/hms/internal/domain/history"
	"github.com/medicore/hms/internal/domain/identity"
	"github.com/medicore/hms/internal/domain/labs"
	"github.com/medicore/hms/internal/domain/scheduling"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/internal/platform/blobstore"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/middleware"
	"github.com/medicore/hms/internal/platform/notification"
	"github.com/medicore/hms/internal/platform/ocr"
	"github.com/medicore/hms/internal/platform/otp"
	"github.com/medicore/hms/internal/platform/reporting"
	"github.com/medicore/hms/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital Management API Server",
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
			count, err := migrator.Up(ctx, "public")
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

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
			statuses, err := migrator.Status(ctx, "public")
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	logger.Info().Msg("connected to redis")

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		// Development fallback: tokens do not survive a restart.
		buf := make([]byte, 32)
		if _, err := crypto_rand.Read(buf); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate dev JWT secret")
		}
		jwtSecret = hex.EncodeToString(buf)
		logger.Warn().Msg("JWT_SECRET not set, generated an ephemeral one")
	}
	jwtCfg := auth.JWTConfig{SigningKey: []byte(jwtSecret), TokenTTL: cfg.TokenTTL}

	var blobs blobstore.Store
	if cfg.StorageDir != "" {
		blobs, err = blobstore.NewLocalStore(cfg.StorageDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open document storage")
		}
	} else {
		logger.Warn().Msg("STORAGE_DIR not set, documents are stored in memory")
		blobs = blobstore.NewMemoryStore()
	}

	// Notification stack. Delivery providers are external; the log senders
	// keep the template path live until one is configured.
	notifier := notification.NewNotificationManager(
		notification.NewLogEmailSender(logger),
		notification.NewLogSMSSender(logger),
		notification.NewTemplateEngine(),
	)

	otpStore := otp.NewRedisStore(redisClient, cfg.OTPTTL)

	ocrClient := ocr.NewGeminiClient(cfg.OCREndpoint, cfg.OCRAPIKey, cfg.OCRModel, logger)
	ocrProcessor := ocr.NewProcessor(ocrClient, logger)

	// Repositories
	patientRepo := identity.NewPatientRepoPG(pool)
	staffRepo := identity.NewStaffRepoPG(pool)
	roleRepo := identity.NewRoleRepoPG(pool)
	shiftRepo := scheduling.NewShiftRepoPG(pool)
	slotRepo := scheduling.NewSlotRepoPG(pool)
	scheduleRepo := scheduling.NewScheduleRepoPG(pool)
	apptRepo := appointments.NewAppointmentRepoPG(pool)
	vitalsRepo := appointments.NewVitalsRepoPG(pool)
	ratingRepo := appointments.NewRatingRepoPG(pool)
	diagnosisRepo := clinical.NewDiagnosisRepoPG(pool)
	prescriptionRepo := clinical.NewPrescriptionRepoPG(pool)
	medicineRepo := clinical.NewMedicineRepoPG(pool)
	organRepo := clinical.NewTargetOrganRepoPG(pool)
	labTypeRepo := labs.NewLabTypeRepoPG(pool)
	labRepo := labs.NewLabRepoPG(pool)
	labTestTypeRepo := labs.NewLabTestTypeRepoPG(pool)
	labTestRepo := labs.NewLabTestRepoPG(pool)
	docRepo := documents.NewDocRepoPG(pool)
	historyRepo := history.NewRepoPG(pool)

	// Services
	identitySvc := identity.NewService(patientRepo, staffRepo, roleRepo,
		otpStore, notifier, jwtCfg, cfg.OTPTTL, logger)
	schedulingSvc := scheduling.NewService(shiftRepo, slotRepo, scheduleRepo,
		scheduling.NewBookingLookupPG(pool), staffRepo, pool)
	billingSvc := billing.NewService(
		billing.NewAppointmentChargeRepoPG(pool),
		billing.NewLabTestChargeRepoPG(pool),
		billing.NewTransactionRepoPG(pool),
		billing.NewInvoiceRepoPG(pool),
		pool)
	appointmentsSvc := appointments.NewService(apptRepo, vitalsRepo, ratingRepo,
		slotRepo, staffRepo, billingSvc, pool, logger)
	clinicalSvc := clinical.NewService(diagnosisRepo, prescriptionRepo,
		medicineRepo, organRepo, apptRepo, pool)
	labsSvc := labs.NewService(labTypeRepo, labRepo, labTestTypeRepo, labTestRepo,
		diagnosisRepo, billingSvc, pool, logger)
	historySvc := history.NewService(historyRepo)
	documentsSvc := documents.NewService(docRepo, blobs, ocrProcessor, historySvc, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "64M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	tel := telemetry.NewProvider(telemetry.Config{
		ServiceName: "hms-server",
		Environment: cfg.Env,
	})
	defer tel.Shutdown(context.Background())
	e.Use(tel.TracingMiddleware())
	e.Use(tel.MetricsMiddleware())

	// Feed connection pool gauges on the provider's sampling interval.
	go func() {
		rec := tel.HealthMetrics()
		ticker := time.NewTicker(tel.MetricsInterval())
		defer ticker.Stop()
		for {
			select {
			case <-tel.Done():
				return
			case <-ticker.C:
				stat := pool.Stat()
				rec.SetDBPoolActive(int64(stat.AcquiredConns()))
				rec.SetDBPoolIdle(int64(stat.IdleConns()))
			}
		}
	}()
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Registration and OTP login live on the public group; everything else
	// requires a bearer token.
	public := e.Group("/api/v1")
	public.Use(middleware.RateLimit(rateLimitCfg))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.IsDev() && cfg.JWTSecret == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", tel.PrometheusHandler())

	identity.NewHandler(identitySvc).RegisterRoutes(public, apiV1)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)
	appointments.NewHandler(appointmentsSvc).RegisterRoutes(apiV1)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1)
	labs.NewHandler(labsSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	documents.NewHandler(documentsSvc).RegisterRoutes(apiV1)
	history.NewHandler(historySvc).RegisterRoutes(apiV1)
	reporting.NewHandler(pool).RegisterRoutes(apiV1)
	notification.NewNotificationHandler(notifier).RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
