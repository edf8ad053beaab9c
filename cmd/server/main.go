// Package main is the entry point for the codeassist gateway: it loads the
// server configuration, wires every subsystem (credential store, pool,
// quota/cooldown ledgers, IP guard, signature cache, transport, image sink)
// into a request executor, and serves the OpenAI/Claude/Gemini-compatible
// HTTP surface over it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/cliforge/codeassist-gateway/internal/api"
	"github.com/cliforge/codeassist-gateway/internal/api/handlers"
	"github.com/cliforge/codeassist-gateway/internal/buildinfo"
	"github.com/cliforge/codeassist-gateway/internal/cache"
	"github.com/cliforge/codeassist-gateway/internal/config"
	"github.com/cliforge/codeassist-gateway/internal/cooldown"
	"github.com/cliforge/codeassist-gateway/internal/executor"
	"github.com/cliforge/codeassist-gateway/internal/imagesink"
	"github.com/cliforge/codeassist-gateway/internal/ipguard"
	"github.com/cliforge/codeassist-gateway/internal/logging"
	"github.com/cliforge/codeassist-gateway/internal/pool"
	"github.com/cliforge/codeassist-gateway/internal/quota"
	"github.com/cliforge/codeassist-gateway/internal/store"
	_ "github.com/cliforge/codeassist-gateway/internal/translator"
	"github.com/cliforge/codeassist-gateway/internal/transport"
	"github.com/cliforge/codeassist-gateway/internal/util"
)

// Version, Commit, and BuildDate are stamped via -ldflags at release build
// time; buildinfo.ResolveFromGit fills them in for a plain local build.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway's YAML configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	showStatus := flag.Bool("status", false, "render a one-shot terminal dashboard of the running server's pool/quota state and exit")
	flag.Parse()

	if wd, err := os.Getwd(); err == nil {
		buildinfo.ResolveFromGit(wd)
	}

	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfigOptional(*configPath, true)
	if err != nil {
		log.Fatalf("server: load config: %v", err)
	}

	if *showStatus {
		if err := runStatusDashboard(cfg); err != nil {
			log.Fatalf("server: status dashboard: %v", err)
		}
		return
	}

	util.SetLogLevel(cfg)
	if err := logging.ConfigureLogOutput(cfg); err != nil {
		log.Fatalf("server: configure log output: %v", err)
	}

	if err := run(cfg, *configPath); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(cfg *config.Config, configPath string) error {
	if len(cfg.APIKeys) == 0 {
		generated := uuid.NewString()
		cfg.APIKeys = []string{generated}
		log.Infof("server: no API key configured; generated one for this boot")
		if err := config.SaveConfigPreserveComments(configPath, cfg); err != nil {
			log.Warnf("server: failed to persist generated API key: %v", err)
		}
		if err := clipboard.WriteAll(generated); err != nil {
			log.Warnf("server: failed to copy generated API key to clipboard: %v", err)
		} else {
			log.Infof("server: generated API key copied to clipboard")
		}
	}

	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return fmt.Errorf("resolve auth dir: %w", err)
	}
	if authDir != "" {
		if err := os.MkdirAll(authDir, 0o755); err != nil {
			return fmt.Errorf("create auth dir: %w", err)
		}
	}

	credStore, err := openStore(cfg, authDir)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	quotaLedger := quota.New(quota.Options{FlushDir: authDir})
	defer quotaLedger.Close()

	cooldownLedger := cooldown.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	credPool, err := pool.New(ctx, pool.Options{
		Store:         credStore,
		Quota:         quotaLedger,
		Cooldown:      cooldownLedger,
		Strategy:      pool.Strategy(cfg.Pool.Strategy),
		RequestCountN: cfg.Pool.RequestCount,
	})
	if err != nil {
		return fmt.Errorf("build credential pool: %w", err)
	}

	guard := ipguard.New(ipguard.Options{
		Window:               time.Duration(cfg.IPGuard.WindowSeconds) * time.Second,
		Threshold:            cfg.IPGuard.Threshold,
		TempBlockDuration:    time.Duration(cfg.IPGuard.TempBlockSeconds) * time.Second,
		CyclePeriod:          time.Duration(cfg.IPGuard.CycleWindowSeconds) * time.Second,
		PermanentAfterCycles: cfg.IPGuard.PermanentBlockCycles,
		Whitelist:            cfg.IPGuard.Whitelist,
	})
	defer guard.Close()

	sigCache := cache.New(cache.Options{
		Mode:       parseCachingMode(cfg.SignatureCache.Mode),
		MaxEntries: cfg.SignatureCache.MaxSize,
		TTL:        time.Duration(cfg.SignatureCache.TTLSeconds) * time.Second,
	})

	sink, localImageDir, err := openImageSink(cfg, authDir)
	if err != nil {
		return fmt.Errorf("open image sink: %w", err)
	}

	client := transport.New(transport.Options{
		UseUTLS:  cfg.UseUTLS,
		ProxyURL: cfg.ProxyURL,
	})

	exec := &executor.Executor{
		Pool:            credPool,
		Quota:           quotaLedger,
		Cooldown:        cooldownLedger,
		SignatureCache:  sigCache,
		Transport:       client,
		ImageSink:       sink,
		MaxRetries:      cfg.MaxRetries,
		HeartbeatMillis: cfg.HeartbeatMillis,
		UpstreamHost:    cfg.UpstreamHost,
		FakeNonStream:   cfg.FakeNonStream,
	}

	var requestLogger logging.RequestLogger
	if cfg.RequestLog {
		logsDir := logging.ResolveLogDirectory(cfg)
		requestLogger = logging.NewFileRequestLogger(true, logsDir, authDir, 20)
	}

	logTail := logging.NewLogTailHub()
	log.AddHook(logTail)

	engine := api.NewRouter(api.RouterConfig{
		Config:        cfg,
		Handler:       handlers.New(exec),
		Guard:         guard,
		RequestLogger: requestLogger,
		LocalImageDir: localImageDir,
		LogTail:       logTail,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	stopWatch, err := cfg.Watch(func(reloaded *config.Config) {
		log.Infof("server: configuration reloaded from %s", configPath)
		util.SetLogLevel(reloaded)
	})
	if err != nil {
		log.Warnf("server: config watch disabled: %v", err)
	} else {
		defer stopWatch()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("server: listening on %s (%s)", srv.Addr, buildinfo.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-sigs:
		log.Infof("server: received %s, shutting down", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}

func openStore(cfg *config.Config, authDir string) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "file":
		dir := authDir
		if dir == "" {
			dir = "."
		}
		path := cfg.Store.Path
		fileName := filepath.Base(path)
		if dir2 := filepath.Dir(path); dir2 != "." && dir2 != "" {
			dir = dir2
		}
		return store.NewFileStore(dir, fileName), nil
	case "postgres":
		return store.NewPostgresStore(context.Background(), store.PostgresStoreConfig{
			DSN:     cfg.Store.DSN,
			SaltDir: authDir,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openImageSink(cfg *config.Config, authDir string) (imagesink.Sink, string, error) {
	localDir := filepath.Join(authDir, "images")
	sink, err := imagesink.New(cfg.ImageBaseURL, localDir, "")
	if err != nil {
		return nil, "", err
	}
	if local, ok := sink.(*imagesink.LocalSink); ok {
		return sink, local.Dir(), nil
	}
	return sink, "", nil
}

func parseCachingMode(mode string) cache.CachingMode {
	switch mode {
	case "always":
		return cache.CacheAlways
	case "never":
		return cache.CacheNever
	default:
		return cache.CacheToolCallsOrImage
	}
}
