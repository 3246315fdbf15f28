package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/app"
	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/jobs/gc"
	"github.com/dropDatabas3/authcore/internal/metrics"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/rate"
	"github.com/dropDatabas3/authcore/internal/security/password"
)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.L().With(logger.Component("serve"))

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("closing runtime", logger.Err(err))
		}
	}()

	m, err := metrics.New()
	if err != nil {
		return err
	}
	if rt.pg != nil {
		if err := m.Register(metrics.NewPoolCollector(rt.pg.Pool)); err != nil {
			return err
		}
	}

	box, err := rt.box()
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	policy, err := passwordPolicy(cfg)
	if err != nil {
		return err
	}

	shared := make(map[string]upstream.Credentials, len(cfg.Providers.Shared))
	for id, sp := range cfg.Providers.Shared {
		shared[id] = upstream.Credentials{ClientID: sp.ClientID, ClientSecret: sp.ClientSecret}
	}
	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost" + cfg.Server.Addr
	}

	a, err := app.New(app.Options{
		Store:           rt.store,
		ServerSecret:    cfg.Auth.ServerSecret,
		JWTIssuer:       cfg.JWT.Issuer,
		AccessTTL:       cfg.AccessTTL(),
		Box:             box,
		Notifier:        notifier,
		Providers:       upstream.NewRegistry(publicURL, shared, &http.Client{Timeout: 10 * time.Second}),
		Policy:          policy,
		ProjectCacheTTL: cfg.Cache.ProjectTTL,
		Limiter:         newLimiter(cfg, rt),
		Metrics:         m,
		SecureCookies:   cfg.Server.SecureCookies,
		TOTPIssuer:      cfg.Auth.TOTPIssuer,
		Passkeys:        flows.WebAuthnVerifier{RequireUserVerification: cfg.Auth.PasskeyUserVerification},
	})
	if err != nil {
		return err
	}

	if cfg.GC.Enabled {
		sw := &gc.Sweeper{Targets: gc.Targets(a.Store, a.Store.OAuthStates()), Observer: m, Grace: cfg.GC.Grace}
		go sw.Run(ctx, cfg.GC.Interval)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", cfg.Server.Addr), logger.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newNotifier(cfg *config.Config, log *zap.Logger) (email.Notifier, error) {
	var sender email.Sender = email.LogSender{}
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(cfg.SMTP)
	} else {
		log.Warn("smtp.host not set; emails are only logged")
	}
	return email.NewTemplateNotifier(sender)
}

func passwordPolicy(cfg *config.Config) (password.Policy, error) {
	pp := cfg.Security.PasswordPolicy
	bl, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
	if err != nil {
		return password.Policy{}, err
	}
	return password.Policy{
		MinLength:     pp.MinLength,
		MaxLength:     pp.MaxLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
		Blacklist:     bl,
	}, nil
}

// newLimiter usa Redis si está configurado (límites compartidos entre réplicas).
func newLimiter(cfg *config.Config, rt *runtime) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if rt.redis != nil {
		return rate.NewRedisLimiter(rt.redis, cfg.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, cfg.Rate.Window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window)
}
