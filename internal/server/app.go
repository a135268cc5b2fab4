// Package server initializes and runs the main application server.
// It wires the store, domain services and HTTP API together and handles
// graceful shutdown on OS signals.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bloomweaver/backend/internal/chats"
	"github.com/bloomweaver/backend/internal/inference"
	"github.com/bloomweaver/backend/internal/kvstore"
	"github.com/bloomweaver/backend/internal/logging"
	"github.com/bloomweaver/backend/internal/memory"
	"github.com/bloomweaver/backend/internal/server/auth"
	"github.com/bloomweaver/backend/internal/server/config"
	"github.com/bloomweaver/backend/internal/server/httpapi"
	"github.com/bloomweaver/backend/internal/stats"
	"github.com/bloomweaver/backend/internal/tiers"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	handler *httpapi.Handler
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON()
	ctx := context.Background()

	store := kvstore.Open(kvstore.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}, logger)

	recorder := stats.NewRecorder(store, logger)
	chatService := chats.NewService(store, recorder, logger)
	policy := tiers.NewPolicy(store, logger, c.LimitsEnabled)
	completer := inference.NewClient(inference.Options{
		APIKey:  c.GroqAPIKey,
		BaseURL: c.GroqBaseURL,
	}, logger)
	identity := auth.NewIdentity([]byte(c.JWTSecret))

	// Long-term memory needs both the embeddings upstream and the vector
	// index; without them a nil service turns recall into a no-op.
	var recall *memory.Service
	if c.OpenAIAPIKey != "" && c.PineconeHost != "" {
		embedder := memory.NewEmbeddingClient(c.OpenAIAPIKey, c.OpenAIBaseURL)
		index := memory.NewPineconeIndex(c.PineconeAPIKey, c.PineconeHost)
		recall = memory.NewService(embedder, index, logger)
	} else {
		logger.Warn(ctx, "long-term memory disabled, embeddings or vector index not configured")
	}

	handler := httpapi.NewHandler(chatService, policy, recorder, completer, recall, identity, logger, c.SystemPrompt)

	return &App{config: c, logger: logger, handler: handler}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "server shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
