package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collab-hub/auth"
	"collab-hub/repositories"
	"collab-hub/runtime"
	"collab-hub/runtime/workers"
	"collab-hub/services"
	"collab-hub/transport"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & realtime core
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	membershipRepository := repositories.NewMembershipRepository(db)
	userRepository := repositories.NewUserRepository(db)

	issuer := auth.NewHandshakeIssuer(log, config.HandshakeTokenTTL)
	registry := runtime.NewRegistry()
	scheduler := runtime.NewScheduler(log, registry, config.FlushDelay, config.DedupWindowSize)
	broker := runtime.NewBroker(log, issuer, membershipRepository, messageRepository, registry, scheduler)

	authService := services.NewAuthService(log, userRepository, config.AuthTokenDuration)
	chatService := services.NewChatService(messageRepository)

	if config.SeedDemo {
		if err := seedDemo(log, authService, userRepository, membershipRepository); err != nil {
			return fmt.Errorf("demo seeding failed: %w", err)
		}
	}

	// 4. Supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		scheduler,
		workers.NewTokenSweeper(log, issuer, config.TokenSweepInterval),
		workers.NewHeartbeatWorker(log, config.HeartbeatInterval, func() map[string]any {
			return map[string]any{
				"connections":    registry.Len(),
				"pending_batch":  scheduler.PendingCount(),
				"pending_tokens": issuer.Pending(),
			}
		}),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 6. HTTP Server Setup
	handler := transport.NewHandler(log, authService, chatService, issuer, broker, config.ConnectionBufferSize)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: handler.Mux()}

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	// Stop taking frames first, then stop the workers: canceling the
	// supervisor triggers the scheduler's final forced flush.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
