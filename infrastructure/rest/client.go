package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

type ClientConfig struct {
	Timeout time.Duration
	// MaxFailures consecutive transport failures open the circuit for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
}

const contentTypeJSON = "application/json"

func DefaultClientConfig() ClientConfig {
	return ClientConfig{Timeout: 10 * time.Second, MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

// Client is the chat gateway of a terminal session talking to a remote backend. Requests are
// never retried; a failure is reported once and the caller decides.
type Client struct {
	base *url.URL
	http *http.Client
	cb   *gobreaker.CircuitBreaker
	log  *slog.Logger
}

var _ contract.IChatGateway = (*Client)(nil)

// NewClient binds the client to the session token through a cookie jar.
func NewClient(baseURL, token string, cfg ClientConfig, log *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(base, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})

	settings := gobreaker.Settings{
		Name:        "chat-backend",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// Only transport failures count against the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, errors.ErrTransport)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: cfg.Timeout},
		cb:   gobreaker.NewCircuitBreaker(settings),
		log:  log,
	}, nil
}

func (c *Client) FetchRooms(ctx context.Context, scope contract.RoomScope) ([]chat.Room, error) {
	query := url.Values{}
	if scope.Kind != "" {
		query.Set("kind", string(scope.Kind))
	}
	if scope.CounterpartRole != "" {
		query.Set("counterpart", string(scope.CounterpartRole))
	}
	var rooms []chat.Room
	err := c.do(ctx, http.MethodGet, "/v1/rooms", query, nil, &rooms)
	return rooms, err
}

func (c *Client) FetchMessages(ctx context.Context, roomID chat.RoomID) ([]chat.Message, error) {
	var messages []chat.Message
	err := c.do(ctx, http.MethodGet, "/v1/rooms/"+string(roomID)+"/messages", nil, nil, &messages)
	return messages, err
}

func (c *Client) SendMessage(ctx context.Context, req contract.SendRequest) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, "/v1/rooms/"+string(req.RoomID)+"/messages", nil, req, &m)
	return m, err
}

func (c *Client) EditMessage(ctx context.Context, id chat.MessageID, content string) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPatch, messagePath(id, ""), nil, editRequest{Content: content}, &m)
	return m, err
}

func (c *Client) DeleteMessage(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodDelete, messagePath(id, ""), nil, nil, &m)
	return m, err
}

func (c *Client) SetPinned(ctx context.Context, id chat.MessageID, pinned bool) (chat.Message, error) {
	method := http.MethodPut
	if !pinned {
		method = http.MethodDelete
	}
	var m chat.Message
	err := c.do(ctx, method, messagePath(id, "/pin"), nil, nil, &m)
	return m, err
}

func (c *Client) ToggleReaction(ctx context.Context, id chat.MessageID, emoji string) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, messagePath(id, "/reactions"), nil, reactionRequest{Emoji: emoji}, &m)
	return m, err
}

func (c *Client) MarkRead(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, messagePath(id, "/read"), nil, nil, &m)
	return m, err
}

func (c *Client) SearchMessages(ctx context.Context, roomID chat.RoomID, query string, limit int) ([]chat.Message, error) {
	values := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	var messages []chat.Message
	err := c.do(ctx, http.MethodGet, "/v1/rooms/"+string(roomID)+"/search", values, nil, &messages)
	return messages, err
}

func (c *Client) EnsureRFQRoom(ctx context.Context, rfqID, buyerID, title string) (chat.Room, error) {
	var room chat.Room
	err := c.do(ctx, http.MethodPost, "/v1/rooms/rfq", nil, rfqRoomRequest{RFQID: rfqID, BuyerID: buyerID, Title: title}, &room)
	return room, err
}

func (c *Client) EnsureProductRoom(ctx context.Context, productID, sellerID, title string) (chat.Room, error) {
	var room chat.Room
	err := c.do(ctx, http.MethodPost, "/v1/rooms/product", nil, productRoomRequest{ProductID: productID, SellerID: sellerID, Title: title}, &room)
	return room, err
}

func (c *Client) UploadAttachment(ctx context.Context, filename string, data []byte) (chat.Attachment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return chat.Attachment{}, errors.Transport(err)
	}
	if _, err = part.Write(data); err != nil {
		return chat.Attachment{}, errors.Transport(err)
	}
	if err = writer.Close(); err != nil {
		return chat.Attachment{}, errors.Transport(err)
	}
	var a chat.Attachment
	err = c.send(ctx, http.MethodPost, "/v1/uploads", nil, body.Bytes(), writer.FormDataContentType(), &a)
	return a, err
}

func messagePath(id chat.MessageID, suffix string) string {
	return "/v1/messages/" + string(id) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if in == nil {
		return c.send(ctx, method, path, query, nil, "", out)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return c.send(ctx, method, path, query, payload, contentTypeJSON, out)
}

// send runs one request through the circuit breaker. Every error it returns is categorized.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string, out any) error {
	target := *c.base
	target.Path += path
	target.RawQuery = query.Encode()

	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Transport(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", contentTypeJSON)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Transport(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Transport(err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			var failure errorBody
			_ = json.Unmarshal(body, &failure)
			return nil, categoryOf(resp.StatusCode, failure)
		}
		if out == nil || len(body) == 0 {
			return nil, nil
		}
		if err = json.Unmarshal(body, out); err != nil {
			return nil, errors.Transport(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
		return nil, nil
	})
	switch {
	case err == nil:
		return nil
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		c.log.Warn("Request short-circuited", "method", method, "path", path)
		return fmt.Errorf("%w: %v", errors.ErrCircuitOpen, err)
	default:
		c.log.Debug("Request failed", "method", method, "path", path, "error", err)
		return err
	}
}
