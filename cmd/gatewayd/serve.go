package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/browsergate/gateway/internal/cache"
	"github.com/browsergate/gateway/internal/config"
	"github.com/browsergate/gateway/internal/dispatch"
	"github.com/browsergate/gateway/internal/engine"
	"github.com/browsergate/gateway/internal/logging"
	"github.com/browsergate/gateway/internal/pool"
	"github.com/browsergate/gateway/internal/process"
	"github.com/browsergate/gateway/internal/ratelimit"
	"github.com/browsergate/gateway/internal/security"
	"github.com/browsergate/gateway/internal/session"
)

// candidateBrowsers are tried in order when the config doesn't pin an
// executable, mirroring how most BiDi/CDP launchers probe a system Chrome
// before giving up.
var candidateBrowsers = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway's WebSocket dispatch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			process.WithCleanup(func() {
				runServe(port)
			})
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the configured listen port (0 keeps the config value)")
	return cmd
}

func runServe(portOverride int) {
	log := logging.Setup(currentLevel(), !jsonOutput)

	v := viper.New()
	cfg, err := config.Load(v, configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}

	browserPath := cfg.BrowserExecutable
	if browserPath == "" {
		browserPath = resolveBrowserExecutable()
	}

	auth := security.NewAuthenticator(cfg.APIKey)
	limiter := ratelimit.New(cfg.RateLimitPerMinute, cfg.RateLimitRejectThreshold, cfg.RateLimitRejectHorizon(), cfg.RateLimitCooloff())
	saniz := security.NewSanitizer(cfg.AllowNonHTTPURLs)
	resultCache := cache.New(cfg.CacheCapacity, cfg.CacheTTL())

	factory := browserContextFactory(browserPath, cfg)
	p := pool.New(pool.Config{
		WarmTarget:       cfg.PoolWarmTarget,
		HardCeiling:      cfg.SessionHardCeiling,
		AcquireTimeout:   cfg.PoolAcquireTimeout(),
		MaxAgePerContext: cfg.PoolMaxAge(),
		MaintainEvery:    5 * time.Second,
	}, factory, log)

	sessMgr := session.New(p, cfg.SessionIdleTimeout(), 30*time.Second, log)
	handler := dispatch.New(cfg, log, auth, limiter, saniz, resultCache, sessMgr)

	server := dispatch.NewServer(log,
		dispatch.WithHostPort(cfg.Host, cfg.Port),
		dispatch.WithOnConnect(handler.OnConnect),
		dispatch.WithOnMessage(handler.OnMessage),
		dispatch.WithOnClose(handler.OnClose),
	)

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("start dispatch server")
	}
	log.Info().Int("port", server.Port()).Msg("gateway listening")

	sig := process.WaitForSignal()
	log.Info().Stringer("signal", sig).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()

	sessMgr.Shutdown()
	p.Close()
	if err := server.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("dispatch server stop")
	}
}

func currentLevel() logging.Level {
	if verbose {
		return logging.LevelVerbose
	}
	return logging.LevelInfo
}

func resolveBrowserExecutable() string {
	for _, name := range candidateBrowsers {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return candidateBrowsers[0]
}

// browserContextFactory returns a pool.Factory that launches a dedicated
// browser process per pooled context, connects to its BiDi endpoint, and
// opens a fresh browsing context on it — one browser per pooled slot, with
// the pool owning the launch/connect/teardown lifecycle directly.
func browserContextFactory(browserPath string, cfg config.Config) pool.Factory {
	return func(ctx context.Context) (*pool.Context, error) {
		return launchPoolContext(browserPath, cfg)
	}
}

func launchPoolContext(browserPath string, cfg config.Config) (*pool.Context, error) {
	launch, err := engine.Launch(engine.LaunchOptions{
		ExecutablePath: browserPath,
		Headless:       cfg.Headless,
		StartTimeout:   10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	conn, err := engine.Connect(launch.Endpoint)
	if err != nil {
		launch.Kill(2 * time.Second)
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	client := engine.NewClient(conn)
	contextID, err := client.CreateContext(10 * time.Second)
	if err != nil {
		client.Close()
		launch.Kill(2 * time.Second)
		return nil, fmt.Errorf("create browsing context: %w", err)
	}

	page := engine.NewPage(client, contextID)
	return &pool.Context{
		ID:     contextID,
		Client: client,
		Page:   page,
		OnDestroy: func() {
			launch.Kill(2 * time.Second)
		},
	}, nil
}
