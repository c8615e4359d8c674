package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"support-chat/auth"
	"support-chat/domain/chat"
	"support-chat/infrastructure/rest"
	"support-chat/internal"
	"support-chat/moderation"
	"support-chat/observability"
	"support-chat/repositories"
	"support-chat/runtime/workers"
	"support-chat/search"
	"support-chat/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatd terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer (database, index) ahead of os.Exit.
func run(args []string) (int, error) {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	if len(args) > 0 && args[0] == "token" {
		return issueToken(config, args[1:])
	}
	return serve(config, log)
}

// issueToken prints a session token, for scripts and the terminal client.
func issueToken(config internal.Config, args []string) (int, error) {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	user := flags.String("user", "", "user id")
	role := flags.String("role", string(chat.RoleBuyer), "ADMIN, BUYER or SELLER")
	if err := flags.Parse(args); err != nil {
		return exitConfig, err
	}
	actor := chat.Actor{ID: *user, Role: chat.Role(strings.ToUpper(*role))}
	token, err := auth.NewTokens(config.AuthSecret, config.AuthTokenDuration).Generate(actor)
	if err != nil {
		return exitConfig, err
	}
	fmt.Println(token)
	return exitOK, nil
}

func serve(config internal.Config, log *slog.Logger) (int, error) {
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	if err = os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return exitRuntime, fmt.Errorf("upload dir: %w", err)
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = writer.Close()
	}()

	moderator, err := moderation.NewEmbeddedModerator(charReplacement, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderation: %w", err)
	}

	backend := services.NewBackend(
		repositories.NewRoomRepository(db, log),
		repositories.NewMessageRepository(db, log, config.LimitMessages),
		search.NewIndex(writer, log),
		moderator,
		config.Backend(),
		log,
	)
	limiter := rest.NewRateLimiter(config.RateLimitPerMin, config.RateLimitBurst, log)
	monitor := observability.NewMonitor(log, config.StatsInterval)
	server := rest.NewServer(backend, auth.NewTokens(config.AuthSecret, config.AuthTokenDuration), limiter, rest.ServerConfig{
		UploadDir:    config.UploadDir,
		BodyLimit:    int(config.MaxUploadBytes) + 1<<20,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		Monitor:      monitor,
	}, log)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log)
	sup.Add(limiter, monitor)
	go sup.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Listen(config.Address()); err != nil {
			errChan <- fmt.Errorf("rest server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-errChan:
		stop()
		sup.Wait()
		return exitRuntime, err
	}

	if err = server.ShutdownWithTimeout(config.ShutdownTimeout); err != nil {
		log.Error("REST shutdown failed", "error", err)
	}
	sup.Wait()
	log.Info("chatd stopped")
	return exitOK, nil
}
