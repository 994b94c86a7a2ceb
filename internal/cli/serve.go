// internal/cli/serve.go
package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/auth"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/config"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/database"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/game"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/handlers"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/match"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/presence"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/quiz"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/room"
)

// NewServeCmd builds the subcommand that runs the engine.
func NewServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trivia engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath)
		},
	}
}

func runServer(ctx context.Context, configPath string) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	members := database.NewMemberStore(pool)

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	hub := events.NewHub()
	var pub events.Publisher = hub
	if cfg.Redis.Enabled {
		redisPub, err := events.NewRedisPublisher(logger, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer redisPub.Close()
		pub = events.NewTee(hub, redisPub)
	}

	source := quiz.NewChatSource(logger, cfg.Quiz.BaseURL, cfg.Quiz.APIKey, cfg.Quiz.Model)
	engine := game.NewEngine(logger, pub, source, members)
	registry := room.NewRegistry(logger, pub)
	queue := match.NewQueue(logger, pub, members)
	tracker := presence.NewTracker(logger, pub)

	// Lifecycle glue between the components.
	registry.OnGameStart = func(r *room.Room) {
		tracker.MarkStarted(r.ID)
		go func() {
			startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := engine.StartGame(startCtx, r.ID, r.Members, r.Category, r.QuestionCount); err != nil {
				logger.WithError(err).WithField("room", r.ID).Error("failed to start room game")
				pub.Broadcast(r.ID, events.ErrorEvent("failed to start game"))
			}
		}()
	}
	queue.OnMatch = tracker.ExpectMatch
	tracker.OnAutoStart = func(roomID string, players []string) {
		go func() {
			startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := engine.StartQuickMatch(startCtx, roomID, players); err != nil {
				logger.WithError(err).WithField("room", roomID).Error("failed to start quick match")
				pub.Broadcast(roomID, events.ErrorEvent("failed to start game"))
			}
		}()
	}
	tracker.OnResend = engine.ResendCurrentQuestion
	tracker.OnEmpty = func(roomID string) {
		engine.ClearRoom(roomID)
		registry.Disband(roomID)
	}
	registry.OnDisband = engine.ClearRoom
	engine.OnSessionEnd = registry.Disband

	server := handlers.NewServer(logger, hub, registry, queue, engine, tracker, verifier)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     server.Handler(),
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		registry.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.Server.Addr).Info("engine listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
