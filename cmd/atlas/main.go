package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlasprotect/atlas/internal/api"
	"github.com/atlasprotect/atlas/internal/ports"
	"github.com/atlasprotect/atlas/internal/session"
	"github.com/atlasprotect/atlas/internal/tracker"
	"github.com/atlasprotect/atlas/internal/utils"
	"github.com/atlasprotect/atlas/pkg/atlasapi"
	"github.com/atlasprotect/atlas/pkg/config"
	"github.com/atlasprotect/atlas/pkg/health"
	"github.com/atlasprotect/atlas/pkg/realtime"
)

type App struct {
	config   *config.Config
	server   *http.Server
	sessions ports.SessionStore
	client   *atlasapi.Client
	assets   ports.AssetCatalog
	channel  *realtime.Channel
	tracker  *tracker.Tracker
}

func NewApp(cfg *config.Config) *App {
	return &App{
		config: cfg,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.setupSessionStore(ctx); err != nil {
		return fmt.Errorf("session store setup failed: %w", err)
	}

	a.setupServices()

	if err := a.setupServer(); err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}

	return nil
}

func (a *App) setupSessionStore(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	store := session.NewStore(rdb, atlasapi.Refresher(a.config.API.BaseURL, nil))
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return fmt.Errorf("failed to ping session storage: %w", err)
	}

	a.sessions = store
	return nil
}

func (a *App) setupServices() {
	a.client = atlasapi.NewClient(
		atlasapi.WithBaseURL(a.config.API.BaseURL),
		atlasapi.WithHTTPClient(&http.Client{Timeout: a.config.API.RequestTimeout}),
		atlasapi.WithCredentials(a.sessions),
	)
	a.assets = a.client

	a.channel = realtime.NewChannel(
		a.config.Realtime.URL,
		realtime.WithTokenProvider(a.sessions.AccessToken),
		realtime.WithMaxReconnectAttempts(a.config.Realtime.MaxReconnectAttempts),
	)

	a.tracker = tracker.New(a.client, a.channel)
}

func (a *App) setupServer() error {
	router := http.NewServeMux()
	const versionPrefix = "/v1"

	router.HandleFunc(versionPrefix+"/health", health.HealthGet(a.channel.State))
	router.HandleFunc(versionPrefix+"/status",
		utils.AllowedMethods(api.StatusHandler(a.tracker, a.channel.State), http.MethodGet))
	router.HandleFunc(versionPrefix+"/assets",
		utils.AllowedMethods(api.AssetsHandler(a.assets), http.MethodGet))

	a.server = &http.Server{
		Addr:         a.config.Server.Address,
		Handler:      router,
		WriteTimeout: a.config.Server.WriteTimeout,
		ReadTimeout:  a.config.Server.ReadTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	// live updates are best-effort: a failed connect leaves the app in
	// degraded mode and the tracker falls back to manual reloads
	a.channel.Connect(ctx)

	if err := a.tracker.Start(ctx); err != nil {
		log.Printf("Initial booking load failed, continuing with empty cache: %v", err)
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("Starting diagnostics server on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-shutdown:
		log.Println("Starting graceful shutdown")
		return a.Shutdown(ctx)
	case <-ctx.Done():
		return a.Shutdown(ctx)
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.tracker.Close()
	a.channel.Disconnect()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if a.sessions != nil {
		a.sessions.Close()
	}

	return nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := NewApp(cfg)
	if err := app.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
