package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/ojarva-net/sso-frontend/internal/adapters/cache"
	grpcadapter "github.com/ojarva-net/sso-frontend/internal/adapters/grpc"
	httpadapter "github.com/ojarva-net/sso-frontend/internal/adapters/http"
	"github.com/ojarva-net/sso-frontend/internal/adapters/p0f"
	"github.com/ojarva-net/sso-frontend/internal/adapters/postgres"
	"github.com/ojarva-net/sso-frontend/internal/adapters/security"
	"github.com/ojarva-net/sso-frontend/internal/application"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping sso front-end", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(db)
	ticketSigner, err := security.NewTicketSigner(cfg.TicketKeyID, cfg.TicketPrivateKeyPEM, cfg.TicketPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralTicket {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ticket signer: %w", err)
		}
		logger.Warn("using ephemeral ticket keys for local/dev runtime")
		ticketSigner, err = security.NewEphemeralTicketSigner(cfg.TicketKeyID)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral ticket signer: %w", err)
		}
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ExternalURL:            cfg.ExternalURL,
			LoginPath:              "/login",
			ThrottleWindow:         cfg.ThrottleWindow,
			AuthLevelTTL:           cfg.AuthLevelTTL,
			StrongLevelTTL:         cfg.StrongLevelTTL,
			PendingRequestTTL:      cfg.PendingRequestTTL,
			ConsentTTL:             cfg.ConsentTTL,
			TicketTTL:              cfg.TicketTTL,
			AssociationTTL:         cfg.AssociationTTL,
			TrustedRootPrefixes:    cfg.TrustedRootPrefixes,
			FailedDiscoveryAsValid: cfg.FailedDiscoveryAsValid,
			AXEnabled:              cfg.AXEnabled,
		},
		Browsers:      repos.Browsers,
		Logins:        repos.Logins,
		BrowserUsers:  repos.BrowserUsers,
		Fingerprints:  repos.Fingerprints,
		Users:         repos.Users,
		Identities:    repos.Identities,
		TrustedRoots:  repos.TrustedRoots,
		UserLog:       repos.UserLog,
		Debounce:      cacheadapter.NewRedisDebounceStore(redisClient),
		Pending:       cacheadapter.NewRedisPendingRequestStore(redisClient),
		Consent:       cacheadapter.NewRedisConsentStore(redisClient),
		Associations:  cacheadapter.NewRedisAssociationStore(redisClient),
		Fingerprinter: p0f.NewClient(cfg.P0fSocketPath, cfg.P0fTimeout),
		Discoverer:    security.NewTrustRootDiscoverer(cfg.DiscoveryTimeout),
		Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
		Tickets:       ticketSigner,
	})

	handler := httpadapter.NewHandler(svc, httpadapter.Config{
		PublicCookieName:  cfg.PublicCookieName,
		SessionCookieName: cfg.SessionCookieName,
		TicketCookieName:  cfg.TicketCookieName,
		PublicCookieTTL:   cfg.PublicCookieTTL,
		SecureCookies:     cfg.SecureCookies,
		ServerHeader:      cfg.ServerHeader,
		TimesyncWindow:    cfg.TimesyncWindow,
	})
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewSessionInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}
