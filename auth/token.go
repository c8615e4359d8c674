package auth

import (
	"fmt"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenDuration = 24 * time.Hour
	issuer               = "support-chat"
)

// Claims is what the session cookie carries: the actor the chat session is bound to.
type Claims struct {
	UserID string    `json:"user_id"`
	Role   chat.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) Actor() chat.Actor {
	return chat.Actor{ID: c.UserID, Role: c.Role}
}

// Tokens signs and checks session tokens with HMAC-SHA256.
type Tokens struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokens(secret string, duration time.Duration) Tokens {
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return Tokens{secret: []byte(secret), duration: duration, now: time.Now}
}

func (t Tokens) WithClock(now func() time.Time) Tokens {
	t.now = now
	return t
}

// Generate creates a signed token for the actor.
func (t Tokens) Generate(actor chat.Actor) (string, error) {
	if actor.ID == "" {
		return "", errors.ErrMissingField
	}
	if !actor.Role.Valid() {
		return "", errors.ErrInvalidRole
	}
	now := t.now()
	claims := &Claims{
		UserID: actor.ID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate checks signature, expiry and issuer. Every failure is ErrInvalidSession.
func (t Tokens) Validate(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errors.ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || !claims.Role.Valid() {
		return Claims{}, errors.ErrInvalidSession
	}
	return *claims, nil
}

// Identify reads the actor a token was issued for without checking its signature. The
// terminal client uses it to know who it is; the backend still validates every request.
func Identify(token string) (chat.Actor, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return chat.Actor{}, fmt.Errorf("%w: %v", errors.ErrInvalidSession, err)
	}
	actor := claims.Actor()
	if actor.ID == "" || !actor.Role.Valid() {
		return chat.Actor{}, errors.ErrInvalidSession
	}
	return actor, nil
}
