// Package rest exposes the chat backend over HTTP and provides the matching chat gateway client.
package rest

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"support-chat/auth"
	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/observability"
	"support-chat/services"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const (
	SessionCookie = "session"
	actorKey      = "actor"

	// DefaultBodyLimit leaves room for a full size upload and its multipart framing.
	DefaultBodyLimit = 8 << 20
)

type ServerConfig struct {
	UploadDir    string
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Monitor is optional, nil disables counting.
	Monitor *observability.Monitor
}

type Server struct {
	app     *fiber.App
	backend *services.Backend
	tokens  auth.Tokens
	limiter *RateLimiter
	monitor *observability.Monitor
	log     *slog.Logger
}

type editRequest struct {
	Content string `json:"content"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

type rfqRoomRequest struct {
	RFQID   string `json:"rfqId"`
	BuyerID string `json:"buyerId"`
	Title   string `json:"title"`
}

type productRoomRequest struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	Title     string `json:"title"`
}

func NewServer(backend *services.Backend, tokens auth.Tokens, limiter *RateLimiter, cfg ServerConfig, log *slog.Logger) *Server {
	s := &Server{backend: backend, tokens: tokens, limiter: limiter, monitor: cfg.Monitor, log: log}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "support-chat",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes(cfg.UploadDir)
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("REST server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

// ShutdownWithTimeout stops accepting requests and waits up to timeout for the running ones.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) routes(uploadDir string) {
	s.app.Use(s.observe)
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "uptime": s.monitor.Latest().Uptime})
	})

	v1 := s.app.Group("/v1")
	v1.Static("/files", uploadDir)

	handlers := []fiber.Handler{s.session}
	if s.limiter != nil {
		handlers = append(handlers, s.limiter.Handler())
	}
	api := v1.Group("/", handlers...)

	api.Get("/rooms", s.listRooms)
	api.Post("/rooms/rfq", s.ensureRFQRoom)
	api.Post("/rooms/product", s.ensureProductRoom)
	api.Get("/rooms/:room/messages", s.listMessages)
	api.Post("/rooms/:room/messages", s.sendMessage)
	api.Get("/rooms/:room/search", s.search)
	api.Patch("/messages/:id", s.editMessage)
	api.Delete("/messages/:id", s.deleteMessage)
	api.Put("/messages/:id/pin", s.pin(true))
	api.Delete("/messages/:id/pin", s.pin(false))
	api.Post("/messages/:id/reactions", s.toggleReaction)
	api.Post("/messages/:id/read", s.markRead)
	api.Post("/uploads", s.upload)
	api.Get("/stats", s.stats)
}

// observe counts every finished request, including the ones answered by handleError.
func (s *Server) observe(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status, _ = statusOf(err)
	}
	s.monitor.Observe(status)
	return err
}

func (s *Server) stats(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	if actor.Role != chat.RoleAdmin {
		return errors.ErrNotParticipant
	}
	return c.JSON(s.monitor.Latest())
}

// session resolves the actor from the session cookie, or a bearer token for scripts.
func (s *Server) session(c *fiber.Ctx) error {
	token := c.Cookies(SessionCookie)
	if token == "" {
		token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if token == "" {
		return errors.ErrInvalidSession
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.log.Debug("Session refused", "path", c.Path(), "error", err)
		return err
	}
	c.Locals(actorKey, claims.Actor())
	return c.Next()
}

func actorOf(c *fiber.Ctx) (chat.Actor, bool) {
	actor, ok := c.Locals(actorKey).(chat.Actor)
	return actor, ok
}

func (s *Server) listRooms(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	scope := contract.RoomScope{
		Kind:            chat.ContextKind(c.Query("kind")),
		CounterpartRole: chat.Role(strings.ToUpper(c.Query("counterpart"))),
	}
	rooms, err := s.backend.Rooms(actor, scope)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(rooms))
}

// ensureRFQRoom is open to admins and to the buyer the room is for.
func (s *Server) ensureRFQRoom(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	var body rfqRoomRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if actor.Role != chat.RoleAdmin && !(actor.Role == chat.RoleBuyer && actor.ID == body.BuyerID) {
		return errors.ErrNotParticipant
	}
	room, err := s.backend.EnsureRFQRoom(body.RFQID, body.BuyerID, body.Title)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

func (s *Server) ensureProductRoom(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	var body productRoomRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if actor.Role != chat.RoleAdmin && !(actor.Role == chat.RoleSeller && actor.ID == body.SellerID) {
		return errors.ErrNotParticipant
	}
	room, err := s.backend.EnsureProductRoom(body.ProductID, body.SellerID, body.Title)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	messages, err := s.backend.Messages(actor, chat.RoomID(c.Params("room")))
	if err != nil {
		return err
	}
	return c.JSON(nonNil(messages))
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	var body contract.SendRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	body.RoomID = chat.RoomID(c.Params("room"))
	m, err := s.backend.Send(actor, body)
	if err != nil {
		return err
	}
	s.monitor.IncrMessages()
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) search(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	found, err := s.backend.Search(c.UserContext(), actor, chat.RoomID(c.Params("room")), c.Query("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(found))
}

func (s *Server) editMessage(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	var body editRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	m, err := s.backend.Edit(actor, chat.MessageID(c.Params("id")), body.Content)
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	m, err := s.backend.Delete(actor, chat.MessageID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (s *Server) pin(pinned bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, _ := actorOf(c)
		m, err := s.backend.SetPinned(actor, chat.MessageID(c.Params("id")), pinned)
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}

func (s *Server) toggleReaction(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	var body reactionRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	m, err := s.backend.ToggleReaction(actor, chat.MessageID(c.Params("id")), body.Emoji)
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (s *Server) markRead(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	m, err := s.backend.MarkRead(actor, chat.MessageID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (s *Server) upload(c *fiber.Ctx) error {
	actor, _ := actorOf(c)
	header, err := c.FormFile("file")
	if err != nil {
		return errors.ErrMissingField
	}
	f, err := header.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	a, err := s.backend.Upload(actor, header.Filename, data)
	if err != nil {
		return err
	}
	s.monitor.IncrUploads()
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, code := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		s.log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(errorBody{Code: code, Error: err.Error()})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
