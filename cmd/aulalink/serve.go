package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/config"
	"github.com/aulalink/aulalink/internal/directory"
	"github.com/aulalink/aulalink/internal/domain/repository"
	authctrl "github.com/aulalink/aulalink/internal/httpx/controllers/auth"
	healthctrl "github.com/aulalink/aulalink/internal/httpx/controllers/health"
	studentsctrl "github.com/aulalink/aulalink/internal/httpx/controllers/students"
	"github.com/aulalink/aulalink/internal/httpx/middlewares"
	"github.com/aulalink/aulalink/internal/httpx/router"
	authsvc "github.com/aulalink/aulalink/internal/httpx/services/auth"
	studentssvc "github.com/aulalink/aulalink/internal/httpx/services/students"
	jwtx "github.com/aulalink/aulalink/internal/jwt"
	"github.com/aulalink/aulalink/internal/metrics"
	"github.com/aulalink/aulalink/internal/observability/logger"
	"github.com/aulalink/aulalink/internal/rate"
	"github.com/aulalink/aulalink/internal/revocation"
	memstore "github.com/aulalink/aulalink/internal/store/memory"
	pgstore "github.com/aulalink/aulalink/internal/store/pg"
	"github.com/aulalink/aulalink/internal/token"
)

// storage abstrae el backend elegido por config (postgres o memory).
type storage interface {
	Chains() repository.RefreshChainRepository
	Tenants() repository.TenantRepository
	Users() repository.UserRepository
	Students() repository.StudentRepository
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "aulalink",
	})
	log := logger.L()

	if err := metrics.RegisterAuth(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ─── Storage ───
	var (
		store   storage
		sink    audit.Sink
		pinger  healthctrl.Pinger
		cleanup func()
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := pgstore.New(ctx, cfg.Storage.DSN, pgstore.Config{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: cfg.PostgresConnMaxLifetime(),
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		store, sink, pinger = pg, pg.Audit(), pg
		cleanup = pg.Close
	case "memory":
		log.Warn("using in-memory storage, data dies with the process")
		mem := memstore.New()
		store, sink = mem, audit.NewMemorySink()
		cleanup = func() {}
	default:
		return fmt.Errorf("storage driver desconocido: %q", cfg.Storage.Driver)
	}
	defer cleanup()

	// ─── Redis (revocation + rate). Opcional: sin redis todo queda in-process. ───
	var (
		revStore    revocation.Store
		redisClient *rdb.Client
		redisPinger healthctrl.Pinger
	)
	if cfg.Redis.Addr != "" {
		redisClient = rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		revStore = revocation.NewRedis(redisClient, cfg.Redis.Prefix)
		redisPinger = redisPingAdapter{redisClient}
	} else {
		log.Warn("redis not configured, revocation list is per-process")
		revStore = revocation.NewMemory()
	}

	// ─── JWT ───
	var ks *jwtx.Keystore
	if cfg.JWT.KeySeed != "" {
		ks, err = jwtx.NewKeystoreFromSeed(cfg.JWT.KeySeed)
	} else {
		log.Warn("no signing seed configured, using ephemeral key")
		ks, err = jwtx.NewKeystore()
	}
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, ks, cfg.AccessTTL())

	// ─── Núcleo ───
	authz.SetPrivilegedRole(cfg.Auth.PrivilegedRole)
	recorder := audit.NewRecorder(sink, cfg.AuditWriteTimeout(), cfg.Audit.FailClosed)
	validator := authz.NewValidator(recorder)
	tenantDir := directory.New(store.Tenants(), 0)

	tokenSvc := token.NewService(token.Deps{
		Issuer:      issuer,
		Chains:      store.Chains(),
		Revocations: revStore,
		Tenants:     tenantDir,
		Audit:       recorder,
		RefreshTTL:  cfg.RefreshTTL(),
	})

	authService := authsvc.NewService(authsvc.Deps{
		Users:  store.Users(),
		Tokens: tokenSvc,
		Audit:  recorder,
	})
	studentsService := studentssvc.NewService(studentssvc.Deps{
		Repo:      store.Students(),
		Validator: validator,
	})

	// ─── Rate limiting ───
	var loginRate, refreshRate middlewares.Middleware
	if cfg.Rate.Enabled && redisClient != nil {
		loginRate = middlewares.WithRateLimit(rate.NewRedisLimiter(
			redisClient, cfg.Redis.Prefix+"rl:login:", cfg.Rate.Login.Limit, cfg.LoginRateWindow()))
		refreshRate = middlewares.WithRateLimit(rate.NewRedisLimiter(
			redisClient, cfg.Redis.Prefix+"rl:refresh:", cfg.Rate.Refresh.Limit, cfg.RefreshRateWindow()))
	} else {
		if cfg.Rate.Enabled {
			log.Warn("rate limiting enabled but redis not configured, auth endpoints are unlimited")
		}
		noop := middlewares.WithRateLimit(rate.NoopLimiter{})
		loginRate, refreshRate = noop, noop
	}

	// ─── HTTP ───
	handler := router.New(router.Deps{
		Auth: authctrl.NewController(authService, authctrl.CookieConfig{
			Name:     cfg.Auth.Cookie.Name,
			Secure:   cfg.Auth.Cookie.Secure || cfg.App.Env == "prod",
			SameSite: cfg.Auth.Cookie.SameSite,
		}),
		Students: studentsctrl.NewController(studentsService),
		Health: healthctrl.NewController(map[string]healthctrl.Pinger{
			"storage": pinger,
			"redis":   redisPinger,
		}),
		Gate: middlewares.WithTenantGate(middlewares.GateConfig{
			Tokens:      tokenSvc,
			Audit:       recorder,
			ExemptPaths: cfg.Auth.ExemptPaths,
		}),
		LoginRate:   loginRate,
		RefreshRate: refreshRate,
		Metrics:     prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// redisPingAdapter adapta el cliente de redis a healthctrl.Pinger.
type redisPingAdapter struct{ c *rdb.Client }

func (a redisPingAdapter) Ping(ctx context.Context) error {
	return a.c.Ping(ctx).Err()
}
