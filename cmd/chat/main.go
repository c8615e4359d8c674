package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"support-chat/auth"
	"support-chat/infrastructure/rest"
	"support-chat/services"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	opts, err := config.Options()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	color.Enable = config.Colours

	actor, err := auth.Identify(config.Token)
	if err != nil {
		return err
	}
	client, err := rest.NewClient(config.ServerURL, config.Token, config.Client(), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := services.NewChatService(actor, client, log, opts)
	svc.Start(ctx)
	defer svc.Stop()

	shell := NewShell(svc, out, config.Colours)
	fmt.Fprintf(out, "Signed in as %s %s. /help for commands.\n", actor.Role, actor.ID)
	if err = shell.listRooms(ctx, ""); err != nil {
		fmt.Fprintln(out, shell.paint(color.New(color.FgRed), err.Error()))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := shell.Execute(ctx, line)
			if err != nil {
				fmt.Fprintln(out, shell.paint(color.New(color.FgRed), err.Error()))
			}
			if quit {
				return nil
			}
		}
	}
}
