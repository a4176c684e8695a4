package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/career-coach/internal/config"
	"github.com/jonathan/career-coach/internal/db/migrations"
	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/observability"
	"github.com/jonathan/career-coach/internal/server"
	"github.com/jonathan/career-coach/internal/server/middleware"
	"github.com/jonathan/career-coach/internal/server/ratelimit"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that runs career tools over POST /tools/run and streams progress as Server-Sent Events.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	initLogging(cfg)

	shutdownTelemetry, err := observability.Init(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Insecure)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logx.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if serveMigrate {
		applied, err := a.db.RunMigrations(ctx, migrations.FS)
		if err != nil {
			return err
		}
		logx.Info().Strs("applied", applied).Msg("migrations applied")
	}

	auth, err := newTokenValidator(cfg)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	srv, err := server.New(server.Options{
		Port:           cfg.Port,
		Runner:         a.pipeline,
		Store:          a.db,
		Known:          a.tools.Known,
		Auth:           auth,
		Limiter:        limiter,
		RateLimit:      cfg.RateLimit.Limit,
		RateWindow:     cfg.RateLimit.Window,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxInputChars:  cfg.MaxInputChars,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// newTokenValidator prefers the remote identity provider when configured.
func newTokenValidator(cfg config.Config) (middleware.TokenValidator, error) {
	if cfg.IdentityURL != "" {
		logx.Info().Str("url", cfg.IdentityURL).Msg("verifying callers with identity provider")
		return server.NewIdentityClient(cfg.IdentityURL, nil), nil
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return nil, err
	}
	return server.NewJWTVerifier(jwtCfg), nil
}

// newLimiter picks Redis when REDIS_URL is set, otherwise an in-process window.
func newLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func(), error) {
	if !cfg.RateLimit.Enabled {
		logx.Warn().Msg("rate limiting disabled")
		return ratelimit.NoopLimiter{}, func() {}, nil
	}
	if cfg.Redis.Enabled() {
		client, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, err
		}
		logx.Info().Msg("rate limiting via redis")
		return ratelimit.NewRedisLimiter(client, "career-coach:ratelimit:"), func() { _ = client.Close() }, nil
	}
	logx.Warn().Msg("rate limiting in-process; limits are per instance")
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.CleanupInterval), func() {}, nil
}
