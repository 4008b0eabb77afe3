// Command feedsync keeps a live copy of a social feed. It signs in to the
// feed backend, holds the realtime update connection open, refreshes the
// cached feed on every update, forwards events to notification providers
// and serves the cache over a small status API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Guliveer/feedsync-go/internal/api"
	"github.com/Guliveer/feedsync-go/internal/auth"
	"github.com/Guliveer/feedsync-go/internal/config"
	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/feed"
	"github.com/Guliveer/feedsync-go/internal/logger"
	"github.com/Guliveer/feedsync-go/internal/model"
	"github.com/Guliveer/feedsync-go/internal/notify"
	"github.com/Guliveer/feedsync-go/internal/realtime"
	"github.com/Guliveer/feedsync-go/internal/server"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigFile, "Path to the YAML configuration file")
	envFile := flag.String("env-file", config.DefaultEnvFile, "Dotenv file loaded before the configuration")
	port := flag.String("port", "", "Port for the status HTTP server (overrides status.addr and PORT env)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL env)")
	noColor := flag.Bool("no-color", false, "Disable colored output (overrides TTY detection)")
	flag.Parse()

	if err := config.LoadEnvFiles(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if *logLevel != "" {
		level = logger.ParseLevel(*logLevel)
	} else if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = logger.ParseLevel(envLevel)
	}

	statusAddr := cfg.Status.Addr
	if envPort := os.Getenv("PORT"); envPort != "" {
		statusAddr = ":" + envPort
	}
	if *port != "" {
		statusAddr = ":" + *port
	}

	colored := !*noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""

	logCfg := logger.DefaultConfig()
	logCfg.Level = level
	logCfg.Colored = colored
	logCfg.LogDir = cfg.Log.Dir
	logCfg.AccountName = cfg.Account.Username

	log, err := logger.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("🚀 Starting feedsync", "server", cfg.Server.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("Received shutdown signal", "signal", sig.String())
		cancel()

		time.AfterFunc(30*time.Second, func() {
			log.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	dispatcher := notify.NewDispatcher(cfg.Notifications, log)
	if dispatcher.HasNotifiers() {
		log.SetNotifyFunc(dispatcher.NotifyFunc())
	}

	store := auth.NewTokenStore(cfg.TokenPath())
	if auth.TokenFileExists(cfg.TokenPath()) {
		if err := store.Load(); err != nil {
			log.Warn("Ignoring unreadable token file", "path", cfg.TokenPath(), "error", err)
		}
	}

	client, err := api.NewClient(cfg.Server.BaseURL, store, log.Named("api"))
	if err != nil {
		log.Error("Failed to create API client", "error", err)
		os.Exit(1)
	}
	log.Debug("API client ready", "base_url", client.BaseURL())

	user, err := ensureSession(ctx, client, store, cfg.Account, log)
	if err != nil {
		log.Error("Failed to sign in", "error", err)
		os.Exit(1)
	}
	log.Info("🔑 Signed in", "user_id", user.ID.String(), "username", user.Username)

	exhausted := make(chan struct{}, 1)
	rt, err := realtime.NewClient(
		realtime.Config{
			BaseURL:              cfg.Server.BaseURL,
			MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
			ReconnectInterval:    cfg.Realtime.ReconnectInterval.Std(),
			HeartbeatInterval:    cfg.Realtime.HeartbeatInterval.Std(),
			WriteTimeout:         cfg.Realtime.WriteTimeout.Std(),
		},
		client,
		&realtime.WebSocketDialer{
			Header:           userAgentHeader(),
			HandshakeTimeout: constants.DefaultHTTPTimeout,
		},
		log.Named("realtime"),
		realtime.WithStateHook(func(s realtime.State) {
			if s == realtime.StateOpen {
				log.Event(ctx, model.EventRealtimeConnected, "Realtime updates live")
			}
		}),
		realtime.WithExhaustedHook(func() {
			log.Event(ctx, model.EventRealtimeLost, "Realtime updates lost",
				"retry_in", constants.ExhaustedRetryDelay.String())
			select {
			case exhausted <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		log.Error("Failed to create realtime client", "error", err)
		os.Exit(1)
	}

	watcher := feed.NewWatcher(client, rt, log, feed.Config{
		Workers: cfg.Feed.RefreshWorkers,
		Watch:   cfg.WatchPostIDs(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		return retryExhausted(gctx, rt, exhausted, log)
	})
	if statusAddr != "" {
		statusServer := server.NewStatusServer(statusAddr, watcher, rt, log)
		g.Go(func() error {
			return statusServer.Run(gctx)
		})
		log.Info("🌐 Status server enabled", "addr", statusAddr)
	}

	err = g.Wait()
	rt.Close()
	dispatcher.Wait()

	if err != nil && ctx.Err() == nil {
		log.Error("feedsync stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("👋 Shutdown complete")
}

// retryExhausted restarts the realtime connection a while after its
// reconnect attempts ran out.
func retryExhausted(ctx context.Context, rt *realtime.Client, exhausted <-chan struct{}, log *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-exhausted:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(constants.ExhaustedRetryDelay):
		}

		if !rt.Retry() {
			log.Debug("Realtime retry skipped", "state", rt.State().String())
		}
	}
}
