package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"support-chat/auth"
	"support-chat/domain/chat"
	"support-chat/infrastructure/rest"

	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseChatSuite runs scenarios against a chatd started outside the test.
type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment and skips the suite when no server is configured.
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" || s.Config.AuthSecret == "" {
		s.T().Skip("CHATD_URL and E2E_AUTH_SECRET are required")
	}
}

// As provides a REST client signed in as actor, within a contextual test step.
func (s *BaseChatSuite) As(name string, actor chat.Actor, fn func(ctx context.Context, client *rest.Client)) {
	header := fmt.Sprintf("  ====== %s (%s %s) ======", name, actor.Role, actor.ID)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	token, err := auth.NewTokens(s.Config.AuthSecret, time.Hour).Generate(actor)
	s.Require().NoError(err)
	client, err := rest.NewClient(s.Config.ServerURL, token, rest.DefaultClientConfig(), logs.GetLoggerFromLevel(slog.LevelWarn))
	s.Require().NoError(err, "Failed to build a client for "+s.Config.ServerURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(ctx, client)
}

// Dump logs v as indented JSON when E2E_DEBUG_JSON is enabled.
func (s *BaseChatSuite) Dump(label string, v any) {
	if !s.Config.DebugJSON {
		return
	}
	body, err := json.MarshalIndent(v, "", "  ")
	s.Require().NoError(err)
	s.T().Logf("%s:\n%s", label, body)
}
