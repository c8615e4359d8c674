package auth

import (
	"testing"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestTokens_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour).WithClock(func() time.Time { return testNow })
	admin := chat.Actor{ID: "admin-1", Role: chat.RoleAdmin}

	token, err := tokens.Generate(admin)
	req.NoError(err)

	claims, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal(admin, claims.Actor())
}

func TestTokens_Rejections(t *testing.T) {
	buyer := chat.Actor{ID: "buyer-1", Role: chat.RoleBuyer}
	signed, err := NewTokens("test-secret", time.Hour).WithClock(func() time.Time { return testNow }).Generate(buyer)
	require.NoError(t, err)

	tests := []struct {
		name   string
		tokens Tokens
		token  string
	}{
		{name: "expired", tokens: NewTokens("test-secret", time.Hour).WithClock(func() time.Time { return testNow.Add(2 * time.Hour) }), token: signed},
		{name: "other secret", tokens: NewTokens("other-secret", time.Hour).WithClock(func() time.Time { return testNow }), token: signed},
		{name: "garbage", tokens: NewTokens("test-secret", time.Hour), token: "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tokens.Validate(tt.token)
			require.ErrorIs(t, err, errors.ErrInvalidSession)
			require.ErrorIs(t, err, errors.ErrForbidden)
		})
	}
}

func TestTokens_GenerateRequiresActor(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", 0)

	_, err := tokens.Generate(chat.Actor{Role: chat.RoleBuyer})
	req.ErrorIs(err, errors.ErrMissingField)

	_, err = tokens.Generate(chat.Actor{ID: "x", Role: "GUEST"})
	req.ErrorIs(err, errors.ErrInvalidRole)
}

func TestIdentify(t *testing.T) {
	req := require.New(t)
	seller := chat.Actor{ID: "seller-1", Role: chat.RoleSeller}
	token, err := NewTokens("server-secret", time.Hour).Generate(seller)
	req.NoError(err)

	// The secret is not needed to know who the token is for
	actor, err := Identify(token)
	req.NoError(err)
	req.Equal(seller, actor)

	_, err = Identify("garbage")
	req.ErrorIs(err, errors.ErrInvalidSession)
}
