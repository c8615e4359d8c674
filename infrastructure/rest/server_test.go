package rest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"support-chat/auth"
	"support-chat/domain/chat"
	"support-chat/moderation"
	"support-chat/observability"
	"support-chat/repositories"
	"support-chat/search"
	"support-chat/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var (
	admin  = chat.Actor{ID: "admin-1", Role: chat.RoleAdmin}
	buyer  = chat.Actor{ID: "buyer-1", Role: chat.RoleBuyer}
	seller = chat.Actor{ID: "seller-1", Role: chat.RoleSeller}
)

type fixture struct {
	server  *Server
	backend *services.Backend
	tokens  auth.Tokens
	monitor *observability.Monitor
}

func newFixture(t *testing.T, limiter *RateLimiter) fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	moderator, err := moderation.NewDefaultModerator(log)
	require.NoError(t, err)

	uploads := t.TempDir()
	backend := services.NewBackend(
		repositories.NewRoomRepository(db, log),
		repositories.NewMessageRepository(db, log, lo.ToPtr(100)),
		search.NewIndex(writer, log),
		moderator,
		services.BackendConfig{UploadDir: uploads, PublicURL: "http://localhost/v1/files"},
		log,
	)
	tokens := auth.NewTokens("test-secret", time.Hour)
	monitor := observability.NewMonitor(log, time.Second)
	server := NewServer(backend, tokens, limiter, ServerConfig{UploadDir: uploads, Monitor: monitor}, log)
	return fixture{server: server, backend: backend, tokens: tokens, monitor: monitor}
}

func (f fixture) request(t *testing.T, actor *chat.Actor, method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		token, err := f.tokens.Generate(*actor)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_RequiresSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	resp := f.request(t, nil, http.MethodGet, "/v1/rooms", nil)

	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	body := decode[errorBody](t, resp)
	req.Equal(codeUnauthorized, body.Code)
}

func TestServer_RoomsAndMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	// Given an RFQ room opened by the admin
	resp := f.request(t, &admin, http.MethodPost, "/v1/rooms/rfq", rfqRoomRequest{RFQID: "rfq-1", BuyerID: buyer.ID, Title: "Steel pipes"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	room := decode[chat.Room](t, resp)

	// When the buyer sends a message
	resp = f.request(t, &buyer, http.MethodPost, "/v1/rooms/"+string(room.ID)+"/messages",
		map[string]string{"clientId": "tmp-1", "content": "200 units please"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	sent := decode[chat.Message](t, resp)
	req.Equal("200 units please", *sent.Content)

	// Then the admin lists it
	resp = f.request(t, &admin, http.MethodGet, "/v1/rooms/"+string(room.ID)+"/messages", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	messages := decode[[]chat.Message](t, resp)
	req.Len(messages, 1)

	// While the seller is not a participant
	resp = f.request(t, &seller, http.MethodGet, "/v1/rooms/"+string(room.ID)+"/messages", nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)
	req.Equal(codeForbidden, decode[errorBody](t, resp).Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	room, err := f.backend.EnsureRFQRoom("rfq-1", buyer.ID, "Steel pipes")
	req.NoError(err)
	m, err := f.backend.As(buyer).SendMessage(context.Background(), contractRequest(room.ID, "hello"))
	req.NoError(err)

	tests := []struct {
		name   string
		actor  chat.Actor
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown message", buyer, http.MethodPatch, "/v1/messages/ghost", editRequest{Content: "x"}, http.StatusNotFound, codeNotFound},
		{"not the author", admin, http.MethodDelete, "/v1/messages/" + string(m.ID), nil, http.StatusForbidden, codeForbidden},
		{"blank edit", buyer, http.MethodPatch, "/v1/messages/" + string(m.ID), editRequest{Content: " "}, http.StatusUnprocessableEntity, codeValidation},
		{"unknown emoji", buyer, http.MethodPost, "/v1/messages/" + string(m.ID) + "/reactions", reactionRequest{Emoji: "🦡"}, http.StatusUnprocessableEntity, codeValidation},
		{"room for another buyer", buyer, http.MethodPost, "/v1/rooms/rfq", rfqRoomRequest{RFQID: "rfq-2", BuyerID: "buyer-2"}, http.StatusForbidden, codeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := tt.actor
			resp := f.request(t, &actor, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, decode[errorBody](t, resp).Code)
		})
	}
}

func TestServer_PinAndUnpin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	room, err := f.backend.EnsureRFQRoom("rfq-1", buyer.ID, "Steel pipes")
	req.NoError(err)
	m, err := f.backend.As(admin).SendMessage(context.Background(), contractRequest(room.ID, "delivery friday"))
	req.NoError(err)

	resp := f.request(t, &buyer, http.MethodPut, "/v1/messages/"+string(m.ID)+"/pin", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.True(decode[chat.Message](t, resp).Pinned)

	resp = f.request(t, &buyer, http.MethodDelete, "/v1/messages/"+string(m.ID)+"/pin", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.False(decode[chat.Message](t, resp).Pinned)
}

func TestServer_RateLimited(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, NewRateLimiter(1, 2, logs.GetLoggerFromLevel(slog.LevelDebug)))

	req.Equal(http.StatusOK, f.request(t, &buyer, http.MethodGet, "/v1/rooms", nil).StatusCode)
	req.Equal(http.StatusOK, f.request(t, &buyer, http.MethodGet, "/v1/rooms", nil).StatusCode)

	resp := f.request(t, &buyer, http.MethodGet, "/v1/rooms", nil)
	req.Equal(http.StatusTooManyRequests, resp.StatusCode)
	req.Equal(codeRateLimited, decode[errorBody](t, resp).Code)

	// Another session has its own budget
	req.Equal(http.StatusOK, f.request(t, &admin, http.MethodGet, "/v1/rooms", nil).StatusCode)
	req.Equal(uint64(1), f.monitor.Latest().RateLimited)
}

func TestServer_Stats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	room, err := f.backend.EnsureRFQRoom("rfq-1", buyer.ID, "Steel pipes")
	req.NoError(err)

	// Given one sent message and one refused request
	resp := f.request(t, &buyer, http.MethodPost, "/v1/rooms/"+string(room.ID)+"/messages",
		map[string]string{"clientId": "tmp-1", "content": "hello"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp = f.request(t, &seller, http.MethodGet, "/v1/rooms/"+string(room.ID)+"/messages", nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	// When a buyer asks for the stats
	resp = f.request(t, &buyer, http.MethodGet, "/v1/stats", nil)

	// Then only admins may read them
	req.Equal(http.StatusForbidden, resp.StatusCode)

	resp = f.request(t, &admin, http.MethodGet, "/v1/stats", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	stats := decode[observability.Stats](t, resp)
	req.Equal(uint64(1), stats.MessagesSent)
	req.Equal(uint64(2), stats.Rejected)
}
