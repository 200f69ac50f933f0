// Command accounts-server starts the account gRPC service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/accounts/internal/api"
	"github.com/and161185/accounts/internal/clock"
	"github.com/and161185/accounts/internal/config"
	"github.com/and161185/accounts/internal/crypto"
	"github.com/and161185/accounts/internal/idgen"
	"github.com/and161185/accounts/internal/limiter"
	"github.com/and161185/accounts/internal/metrics"
	"github.com/and161185/accounts/internal/migrate"
	"github.com/and161185/accounts/internal/notify"
	"github.com/and161185/accounts/internal/repository/postgres"
	grpcserver "github.com/and161185/accounts/internal/server/grpc"
	"github.com/and161185/accounts/internal/service"
	"github.com/and161185/accounts/internal/sweeper"
	"github.com/and161185/accounts/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves until SIGINT or SIGTERM.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("tokenStrategy", cfg.Token.Strategy),
	)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("db pool: %w", err)
	}
	defer db.Close()

	clk := clock.System{}

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	changeRepo := postgres.NewChangeRepo(db)

	lim := limiter.NewPG(db.Pool, limiter.Policy{
		Window:   cfg.Limiter.Window,
		MaxFails: cfg.Limiter.MaxFails,
		BlockFor: cfg.Limiter.BlockFor,
	}, clk)

	hashParams := crypto.DefaultParams()
	hashParams.Time = cfg.Argon.Time
	hashParams.Memory = cfg.Argon.MemoryK
	hashParams.Threads = cfg.Argon.Threads
	hasher := crypto.NewArgon2Hasher(hashParams)

	var issuer token.Issuer
	switch cfg.Token.Strategy {
	case config.TokenSession:
		issuer = token.NewSessionIssuer(accountRepo, postgres.NewSessionRepo(db), []byte(cfg.Token.Key), cfg.Token.TTL, clk)
	default:
		issuer = token.NewStampIssuer(accountRepo, []byte(cfg.Token.Key), cfg.Token.TTL, clk)
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	// Services
	engine := service.NewConfirmationEngine(accountRepo, changeRepo,
		idgen.New(cfg.IDs.ChangeLength, idgen.Digits, cfg.IDs.RetryLimit), hasher, clk)
	accounts := service.NewAccountService(service.Deps{
		Accounts:   accountRepo,
		Engine:     engine,
		AccountIDs: idgen.New(cfg.IDs.AccountLength, idgen.Alphanumeric, cfg.IDs.RetryLimit),
		Hasher:     hasher,
		Tokens:     issuer,
		Notifier:   notifier,
		Limiter:    lim,
		Messages:   messages(cfg.Email),
		Clock:      clk,
	})

	sw := sweeper.New(engine, sweeper.Config{
		Interval:        cfg.Sweep.Interval,
		ConfirmationTTL: cfg.Sweep.ConfirmationTTL,
	}, logger.Named("sweeper"))
	stopSweeper := sw.Start(ctx)
	defer stopSweeper()

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.MetricsUnary(),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(accounts, api.PublicMethods),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	api.RegisterAccountsServer(s, grpcserver.New(accounts, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	hs.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// graceful shutdown
	hs.Shutdown()
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Stop()
	}
	if metricsSrv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shCtx)
	}
	return runErr
}

// newNotifier picks SMTP delivery when a relay is configured and logging otherwise.
func newNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.SMTP.Relay == "" {
		logger.Warn("no SMTP relay configured, confirmation codes are only logged")
		return notify.NewLog(logger.Named("notify")), nil
	}
	src := notify.DefaultBody
	if cfg.Email.TemplatePath != "" {
		b, err := os.ReadFile(cfg.Email.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("email template: %w", err)
		}
		src = string(b)
	}
	body, err := notify.NewBody(cfg.Email.ServiceName, src)
	if err != nil {
		return nil, err
	}
	m, err := notify.NewMailer(notify.SMTPConfig{
		Relay:    cfg.SMTP.Relay,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	}, body)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func messages(e config.Email) service.Messages {
	return service.Messages{
		Signup:   service.Copy{Subject: e.SignupSubject, Title: e.SignupTitle},
		Login:    service.Copy{Subject: e.LoginSubject, Title: e.LoginTitle},
		Username: service.Copy{Subject: e.UsernameSubject, Title: e.UsernameTitle},
		Password: service.Copy{Subject: e.PasswordSubject, Title: e.PasswordTitle},
		EmailOne: service.Copy{Subject: e.EmailOneSubject, Title: e.EmailOneTitle},
		EmailTwo: service.Copy{Subject: e.EmailTwoSubject, Title: e.EmailTwoTitle},
		Deletion: service.Copy{Subject: e.DeletionSubject, Title: e.DeletionTitle},
	}
}
