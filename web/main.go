package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/idgen"
	"github.com/devilmonastery/taskboard/internal/pkg/logger"
	"github.com/devilmonastery/taskboard/web/internal/config"
	"github.com/devilmonastery/taskboard/web/internal/handlers"
	"github.com/devilmonastery/taskboard/web/internal/middleware"
	"github.com/devilmonastery/taskboard/web/internal/render"
	"github.com/devilmonastery/taskboard/web/internal/session"
)

// setupWebLogging configures the global logger for the web service
func setupWebLogging(logLevel, logFormat string) error {
	cfg := logger.Config{
		Level:       logger.ParseLevel(logLevel),
		LogToStderr: true, // Web service always logs to stderr
		Format:      logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)

	return nil
}

// sessionSecret picks the session key: env var, then config file, then a
// random key that does not survive restarts
func sessionSecret(cfg *config.WebServerConfig, log *slog.Logger) ([]byte, error) {
	if envSecret := os.Getenv("SESSION_SECRET"); envSecret != "" {
		secret, err := base64.StdEncoding.DecodeString(envSecret)
		if err == nil {
			log.Info("using session secret", slog.String("source", "environment variable"))
			return secret, nil
		}
		log.Warn("failed to decode SESSION_SECRET env var, trying config", slog.Any("error", err))
	}

	if cfg.Session.Secret != "" {
		secret, err := base64.StdEncoding.DecodeString(cfg.Session.Secret)
		if err == nil {
			log.Info("using session secret", slog.String("source", "config file"))
			return secret, nil
		}
		log.Warn("failed to decode session secret from config", slog.Any("error", err))
	}

	log.Warn("no session secret configured, generating random one (sessions won't persist)")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging (must be done before any logging calls)
	if err = setupWebLogging(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	log := logger.Component("web")
	log.Info("starting taskboard web service", slog.String("backend", cfg.Backend.URL))

	if err := idgen.Initialize(int64(os.Getpid() % 1024)); err != nil {
		log.Error("failed to initialize request ids", slog.Any("error", err))
		os.Exit(1)
	}

	templates, err := render.LoadTemplates(cfg.Templates.Path)
	if err != nil {
		log.Error("failed to load templates", slog.Any("error", err))
		os.Exit(1)
	}
	render.LogTemplateNames(templates, log)

	secret, err := sessionSecret(cfg, log)
	if err != nil {
		log.Error("failed to set up sessions", slog.Any("error", err))
		os.Exit(1)
	}
	sessionMgr := session.NewManager(secret, cfg.Session.Secure, cfg.Session.MaxAge)

	storeOpts := []session.StoreOption{
		session.WithTimeout(cfg.Backend.Timeout),
		session.WithTokenOptions(client.WithRefreshTimeout(cfg.Backend.RefreshTimeout)),
	}
	if cfg.Session.Store == config.StoreRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Error("failed to connect to redis", slog.String("addr", cfg.Session.Redis.Addr), slog.Any("error", err))
			os.Exit(1)
		}
		log.Info("storing credentials in redis", slog.String("addr", cfg.Session.Redis.Addr))
		storeOpts = append(storeOpts, session.WithRedis(rdb, cfg.Session.Redis.TTL))
	}
	store := session.NewStore(sessionMgr, cfg.Backend.URL, logger.Component("session"), storeOpts...)

	authMw := middleware.NewAuthMiddleware(store, slog.Default())
	h := handlers.New(store, templates, slog.Default())
	router := handlers.NewRouter(h, authMw, logger.Component("http"))

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown did not complete", slog.Any("error", err))
		}
	}()

	log.Info("listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to start server", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("stopped")
}
