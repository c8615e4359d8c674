// Command seed fills the chat store with demo rooms, messages and attachments.
package main

import (
	"fmt"
	"os"

	"support-chat/internal"
	"support-chat/moderation"
	"support-chat/repositories"
	"support-chat/search"
	"support-chat/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		color.Red.Printf("seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if err := os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return err
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer writer.Close()

	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewEmbeddedModerator(replacement, log)
	if err != nil {
		return err
	}
	backend := services.NewBackend(
		repositories.NewRoomRepository(db, log),
		repositories.NewMessageRepository(db, log, config.LimitMessages),
		search.NewIndex(writer, log),
		moderator,
		config.Backend(),
		log,
	)

	s := &seeder{backend: backend, log: log}
	r, err := s.run()
	if err != nil {
		return err
	}
	color.Green.Printf("Seeded %d rooms, %d messages (%d rooms already filled)\n", r.Rooms, r.Messages, r.Skipped)
	return nil
}
