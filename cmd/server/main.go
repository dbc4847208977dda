package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/posport-gateway/backend"
	"github.com/jrsteele09/posport-gateway/events"
	"github.com/jrsteele09/posport-gateway/identity"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/server"
	"github.com/jrsteele09/posport-gateway/server/authflowrepo"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/jrsteele09/posport-gateway/session/repoinmemory"
	"github.com/jrsteele09/posport-gateway/session/reporedis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maintenanceInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env")
	}

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())
	if c.GetEnv() != "DEV" && c.UsesDefaultSessionSecret() {
		log.Warn().Str("env", c.GetEnv()).Msg("SESSION_SECRET is not set, sessions are signed with the development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := newSessionRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepo()

	sealer, err := session.NewSealer(c.GetSessionSecret())
	if err != nil {
		return fmt.Errorf("session.NewSealer: %w", err)
	}
	bus := events.NewBus()
	store := session.NewStore(repo, sealer, c, bus)

	client := backend.New(c.GetBackendURL(), c.GetBackendTimeout())
	profiles := backend.NewProfileCache(client, bus, backend.DefaultProfileTTL)
	defer profiles.Close()

	gateway, err := server.New(c, server.Deps{
		Store:     store,
		Backend:   client,
		Profiles:  profiles,
		Identity:  identity.NewGoogleProvider(c),
		AuthFlows: authflowrepo.NewInMemoryRepo(),
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	go runMaintenance(ctx, gateway, repo, profiles)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: gateway, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// newSessionRepo picks the session backing store named by SESSION_STORE.
func newSessionRepo(ctx context.Context, c config.Config) (session.Repo, func(), error) {
	switch c.GetSessionStore() {
	case config.StoreRedis:
		repo, err := reporedis.Dial(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, fmt.Errorf("reporedis.Dial: %w", err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Sessions stored in redis")
		return repo, func() { closeQuietly(repo) }, nil
	case config.StoreMemory:
		log.Info().Msg("Sessions stored in memory")
		return repoinmemory.NewInMemoryRepo(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q", c.GetSessionStore())
	}
}

// runMaintenance drops abandoned Google sign-ins, stale cached profiles and, for the
// in-memory store, expired sessions.
func runMaintenance(ctx context.Context, gateway *server.Server, repo session.Repo, profiles *backend.ProfileCache) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flows := gateway.PurgeAbandonedAuthFlows()
			cached := profiles.DeleteExpired()
			sessions := 0
			if mem, ok := repo.(*repoinmemory.InMemoryRepo); ok {
				sessions = mem.DeleteExpired()
			}
			if flows > 0 || cached > 0 || sessions > 0 {
				log.Debug().Int("authFlows", flows).Int("profiles", cached).Int("sessions", sessions).Msg("Purged expired entries")
			}
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
