package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	domainauth "fivebear-admin-go/internal/domain/auth"
	"fivebear-admin-go/internal/domain/events"
	platformconfig "fivebear-admin-go/internal/platform/config"
	platformerrors "fivebear-admin-go/internal/platform/errors"
	"fivebear-admin-go/internal/platform/kvstore"
	platformstorage "fivebear-admin-go/internal/platform/storage"
	httptransport "fivebear-admin-go/internal/transport/http"
	wstransport "fivebear-admin-go/internal/transport/ws"
	"fivebear-admin-go/internal/utils"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config      *platformconfig.Config
	logger      *utils.Logger
	db          *gorm.DB
	users       platformstorage.UserRepository
	store       kvstore.Store
	bus         *events.Bus
	authService *domainauth.Service
	hub         *wstransport.Hub
}

// Run drives the whole service lifecycle: configuration, dependency
// initialisation, server startup and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(platformerrors.KindBootstrap,
			"bootstrap state validation", "config/logger not initialised")
	}
	if state.authService == nil || state.hub == nil {
		return platformerrors.New(platformerrors.KindBootstrap,
			"bootstrap state validation", "auth service not initialised")
	}

	defer func() {
		if state.store != nil {
			if err := state.store.Close(context.Background()); err != nil {
				logger.WarnTag("BOOT", "kvstore not closed cleanly: %v", err)
			}
		}
		_ = logger.Close()
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	logger.InfoTag("BOOT", "all services started")
	return waitForShutdown(signalCtx, cancel, logger, group)
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(platformerrors.KindBootstrap, step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the initialisation steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logger",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "kvstore:init",
			Title:     "Initialise key-value store",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindPlatform,
			Execute:   initKVStoreStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "auth:init-service",
			Title:     "Initialise auth service",
			DependsOn: []string{"storage:init-database", "kvstore:init", "events:init-bus"},
			Kind:      platformerrors.KindAuth,
			Execute:   initAuthServiceStep,
		},
		{
			ID:        "ws:init-hub",
			Title:     "Initialise connection hub",
			DependsOn: []string{"auth:init-service"},
			Kind:      platformerrors.KindTransport,
			Execute:   initHubStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	config, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = config
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init", "config not loaded")
	}

	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: state.config.Log.Level,
		LogDir:   state.config.Log.Dir,
		LogFile:  state.config.Log.File,
	})
	if err != nil {
		return err
	}
	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s]", state.config.Log.Level)
	return nil
}

func initDatabaseStep(ctx context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Database.DSN)
	if err != nil {
		return err
	}
	state.db = db
	state.users = platformstorage.NewUserRepository(db)

	adminUser := os.Getenv("FB_ADMIN_USER")
	if adminUser == "" {
		adminUser = "admin"
	}
	adminPassword := os.Getenv("FB_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123"
		state.logger.WarnTag("BOOT", "FB_ADMIN_PASSWORD not set, seeding default admin credential")
	}
	if err := state.users.SeedDefaultAdmin(ctx, adminUser, adminPassword); err != nil {
		return err
	}

	state.logger.InfoTag("BOOT", "database ready at %s", state.config.Database.DSN)
	return nil
}

func initKVStoreStep(ctx context.Context, state *appState) error {
	cfg := kvstore.Config{
		Driver: state.config.Store.Driver,
		Memory: &kvstore.MemoryConfig{GCInterval: state.config.Store.Memory.GCInterval},
		Redis: &kvstore.RedisConfig{
			Addr:     state.config.Store.Redis.Addr,
			Username: state.config.Store.Redis.Username,
			Password: state.config.Store.Redis.Password,
			DB:       state.config.Store.Redis.DB,
			Prefix:   state.config.Store.Redis.Prefix,
		},
	}

	store, err := kvstore.New(cfg)
	if err != nil {
		// The security store is not worth refusing to boot over; fall back
		// to the in-process driver and let operators see the warning.
		state.logger.WarnTag("BOOT", "%s kvstore unavailable (%v), falling back to memory", cfg.Driver, err)
		store = kvstore.NewMemory(cfg)
	} else if err := store.Ping(ctx); err != nil {
		state.logger.WarnTag("BOOT", "kvstore ping failed (%v), falling back to memory", err)
		_ = store.Close(ctx)
		store = kvstore.NewMemory(cfg)
	}

	state.store = store
	state.logger.InfoTag("BOOT", "kvstore ready [%s]", cfg.Driver)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	state.bus = events.NewBus()
	return nil
}

func initAuthServiceStep(_ context.Context, state *appState) error {
	secret := state.config.Token.Secret
	if secret == "" {
		// Sessions will not survive a restart without a configured secret.
		secret = uuid.NewString()
		state.logger.WarnTag("BOOT", "token secret not configured, using an ephemeral one")
	}
	codec := domainauth.NewTokenCodec(secret, state.config.Token.TTL)

	var throttle domainauth.Throttle
	if state.config.Security.Enabled {
		throttle = domainauth.NewThrottle(state.store, domainauth.ThrottleConfig{
			MaxAttempts:   state.config.Security.MaxAttempts,
			FailureWindow: state.config.Security.FailureWindow,
			LockDuration:  state.config.Security.LockDuration,
		})
	} else {
		throttle = domainauth.NoopThrottle{MaxAttempts: state.config.Security.MaxAttempts}
		state.logger.WarnTag("BOOT", "login security disabled, throttle is a no-op")
	}

	registry := domainauth.NewSessionRegistry(state.store, state.config.Security.SessionTTL)
	state.authService = domainauth.NewService(state.users, codec, throttle, registry, state.bus, state.logger)
	return nil
}

func initHubStep(_ context.Context, state *appState) error {
	hub := wstransport.NewHub(state.logger)
	state.hub = hub

	if err := state.bus.SubscribeAsync(events.TopicForceLogout, hub.HandleForceLogout); err != nil {
		return err
	}

	// Keep dashboards in sync with who is online.
	onlineChanged := func(events.ConnectionEventData) {
		hub.Broadcast(events.NewEnvelope(events.TypeOnlineCount, "online count changed", map[string]int{
			"online": hub.OnlineCount(),
		}))
	}
	if err := state.bus.SubscribeAsync(events.TopicWSConnected, onlineChanged); err != nil {
		return err
	}
	return state.bus.SubscribeAsync(events.TopicWSClosed, onlineChanged)
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("failed to start HTTP service: %w", err)
	}
	if state.config.Transport.WebSocket.Enabled {
		startWSServer(state, g, groupCtx)
	}
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	config := state.config
	logger := state.logger

	authHandler := httptransport.NewAuthHandler(state.authService, logger)

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:         config,
		Logger:         logger,
		AuthMiddleware: authHandler.Middleware(),
	})
	if err != nil {
		return err
	}

	authHandler.RegisterRoutes(httpRouter)
	httptransport.NewSystemHandler(state.hub, logger).RegisterRoutes(httpRouter)

	router := httpRouter.Engine
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "api not found", gin.H{})
			return
		}
		if config.Web.Enabled {
			c.File(config.Web.StaticDir + "/index.html")
			return
		}
		c.Status(http.StatusNotFound)
	})

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on %s", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return nil
}

func startWSServer(state *appState, g *errgroup.Group, groupCtx context.Context) {
	config := state.config
	wsServer := wstransport.NewServer(wstransport.ServerConfig{
		Addr: config.Transport.WebSocket.IP + ":" + strconv.Itoa(config.Transport.WebSocket.Port),
		Path: config.Transport.WebSocket.Path,
	}, state.hub, state.authService, state.bus, state.logger)

	g.Go(func() error {
		return wsServer.Start(groupCtx)
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return wsServer.Stop()
	})
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown signal received, cleaning up")

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
