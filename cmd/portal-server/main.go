package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayursutra/portal/internal/config"
	"github.com/ayursutra/portal/internal/domain/cart"
	"github.com/ayursutra/portal/internal/domain/casenotes"
	"github.com/ayursutra/portal/internal/domain/catalog"
	"github.com/ayursutra/portal/internal/domain/emergency"
	"github.com/ayursutra/portal/internal/domain/feedback"
	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/domain/patients"
	"github.com/ayursutra/portal/internal/domain/practitioner"
	"github.com/ayursutra/portal/internal/domain/scheduling"
	"github.com/ayursutra/portal/internal/domain/wellness"
	"github.com/ayursutra/portal/internal/platform/auth"
	"github.com/ayursutra/portal/internal/platform/blobstore"
	"github.com/ayursutra/portal/internal/platform/db"
	"github.com/ayursutra/portal/internal/platform/localstore"
	"github.com/ayursutra/portal/internal/platform/metrics"
	"github.com/ayursutra/portal/internal/platform/middleware"
	"github.com/ayursutra/portal/internal/platform/notification"
	"github.com/ayursutra/portal/internal/platform/websocket"
	"github.com/ayursutra/portal/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Ayursutra clinic portal API server",
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
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (postgres backend only)",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := migrationPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := migrationPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
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
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is not supported by the built-in runner.")
			return nil
		},
	})

	return cmd
}

func migrationPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StorageBackend != config.BackendPostgres {
		return nil, fmt.Errorf("migrations apply to the %q backend only, STORAGE_BACKEND is %q", config.BackendPostgres, cfg.StorageBackend)
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
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

	ctx := context.Background()

	// Storage
	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.close()
	logger.Info().Str("backend", store.backend).Msg("storage ready")

	// Cart
	var carts cart.Store = cart.NewMemoryStore()
	if cfg.RedisURL != "" {
		rdb, err := cart.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		carts = cart.NewRedisStore(rdb, cfg.CartTTL)
		logger.Info().Msg("cart store: redis")
	}

	// Blobs
	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure blob storage")
	}

	key, generated, err := resolveSigningKey(cfg.AuthSigningKey, cfg.IsDev())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using a random key, tokens will not survive a restart")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := newServer(serverDeps{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		carts:      carts,
		blobs:      blobs,
		email:      emailSender(cfg, logger),
		signingKey: key,
		registry:   reg,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer srv.close()
	e := srv.echo

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// storage is the opened persistence backend and the repositories built on it.
type storage struct {
	backend string
	pinger  db.Pinger
	repos   repositories
	close   func()
}

type repositories struct {
	accounts     identity.Repository
	appointments scheduling.Repository
	progress     wellness.Repository
	feedback     feedback.Repository
	emergencies  emergency.Repository
	patients     patients.Repository
	caseNotes    casenotes.Repository
	profiles     practitioner.Repository
}

func pgRepositories(q db.Querier) repositories {
	return repositories{
		accounts:     identity.NewRepoPG(q),
		appointments: scheduling.NewRepoPG(q),
		progress:     wellness.NewRepoPG(q),
		feedback:     feedback.NewRepoPG(q),
		emergencies:  emergency.NewRepoPG(q),
		patients:     patients.NewRepoPG(q),
		caseNotes:    casenotes.NewRepoPG(q),
		profiles:     practitioner.NewRepoPG(q),
	}
}

func localRepositories(s *localstore.Store) repositories {
	return repositories{
		accounts:     identity.NewRepoLocal(s),
		appointments: scheduling.NewRepoLocal(s),
		progress:     wellness.NewRepoLocal(s),
		feedback:     feedback.NewRepoLocal(s),
		emergencies:  emergency.NewRepoLocal(s),
		patients:     patients.NewRepoLocal(s),
		caseNotes:    casenotes.NewRepoLocal(s),
		profiles:     practitioner.NewRepoLocal(s),
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &storage{backend: cfg.StorageBackend, pinger: pool, repos: pgRepositories(pool), close: pool.Close}, nil
	case config.BackendLocal:
		s, err := localstore.Open(cfg.LocalStorePath)
		if err != nil {
			return nil, err
		}
		return &storage{backend: cfg.StorageBackend, pinger: s, repos: localRepositories(s), close: func() { _ = s.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.BlobBackend != config.BlobS3 {
		return blobstore.NewInMemoryBlobStore(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return blobstore.NewS3BlobStore(s3.NewFromConfig(awsCfg), cfg.S3Bucket), nil
}

// emailSender uses SendGrid when an API key is configured and the log
// otherwise.
func emailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if sg := notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.NotifyFromEmail, logger); sg != nil {
		return sg
	}
	return notification.NewLogSender(logger)
}

// resolveSigningKey returns the configured token signing key. In development
// an empty key is replaced by a random one; the second return value reports
// that.
func resolveSigningKey(configured string, dev bool) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	if !dev {
		return nil, false, fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}

type serverDeps struct {
	cfg        *config.Config
	logger     zerolog.Logger
	store      *storage
	carts      cart.Store
	blobs      blobstore.BlobStore
	email      notification.EmailSender
	signingKey []byte
	registry   *prometheus.Registry
}

type server struct {
	echo  *echo.Echo
	close func()
}

func newServer(d serverDeps) (*server, error) {
	cfg, logger := d.cfg, d.logger

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	treatments, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	plans, err := wellness.LoadPlans()
	if err != nil {
		return nil, err
	}

	httpMetrics := metrics.NewHTTPMetrics(d.registry)
	portalMetrics := metrics.NewPortalMetrics(d.registry)

	revocations := auth.NewTokenRevocationStore(time.Minute)
	issuer := auth.NewIssuer(d.signingKey, cfg.AuthIssuer, cfg.AuthTokenTTL)
	hub := websocket.NewHub(logger)
	notifier := notification.NewNotificationManager(d.email, notification.NewTemplateEngine())

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(middleware.Metrics(httpMetrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	jwtCfg := issuer.Config(revocations)
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

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
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	repos := d.store.repos

	// Identity
	identitySvc := identity.NewService(repos.accounts, issuer, revocations, logger)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Catalogue and cart
	catalog.NewHandler(treatments).RegisterRoutes(apiV1)
	cartSvc := cart.NewService(d.carts, treatments)
	cart.NewHandler(cartSvc).RegisterRoutes(apiV1)

	// Scheduling
	schedSvc := scheduling.NewService(repos.appointments, cartSvc, identitySvc, loc, logger)
	schedSvc.SetPublisher(hub)
	schedSvc.SetNotifier(notifier)
	schedSvc.SetMetrics(portalMetrics)
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)

	// Wellness
	wellnessSvc := wellness.NewService(repos.progress, plans, identitySvc, logger)
	wellness.NewHandler(wellnessSvc).RegisterRoutes(apiV1)

	// Feedback
	feedbackSvc := feedback.NewService(repos.feedback, logger)
	feedbackSvc.SetMetrics(portalMetrics)
	feedback.NewHandler(feedbackSvc).RegisterRoutes(apiV1)

	// Emergency
	emergencySvc := emergency.NewService(repos.emergencies, identitySvc, logger)
	emergencySvc.SetPublisher(hub)
	emergencySvc.SetMetrics(portalMetrics)
	if cfg.StaffAlertEmail != "" {
		emergencySvc.SetNotifier(notifier, cfg.StaffAlertEmail)
	} else {
		logger.Warn().Msg("STAFF_ALERT_EMAIL not set; emergencies reach staff over the live feed only")
	}
	emergency.NewHandler(emergencySvc).RegisterRoutes(apiV1)

	// Doctor-side records
	patientsSvc := patients.NewService(repos.patients, schedSvc, logger)
	patients.NewHandler(patientsSvc).RegisterRoutes(apiV1)

	caseNotesSvc := casenotes.NewService(repos.caseNotes, d.blobs, logger)
	casenotes.NewHandler(caseNotesSvc).RegisterRoutes(apiV1)

	practitionerSvc := practitioner.NewService(repos.profiles, identitySvc, d.blobs, logger)
	practitioner.NewHandler(practitionerSvc).RegisterRoutes(apiV1)

	// Blob downloads and staff tooling
	blobstore.NewBlobHandler(d.blobs).RegisterRoutes(apiV1.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor)))
	notification.NewNotificationHandler(notifier).RegisterRoutes(apiV1.Group("", auth.RequireRole(auth.RoleDoctor)))

	// Live feed
	websocket.NewWebSocketHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.store.backend, d.store.pinger))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.registry)))

	return &server{
		echo: e,
		close: func() {
			hub.Close()
			revocations.Close()
		},
	}, nil
}
