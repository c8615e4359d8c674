package chat

import (
	"testing"

	"support-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestSendCommand_Validate(t *testing.T) {
	actor := Actor{ID: "buyer-1", Role: RoleBuyer}

	t.Run("blank content is rejected", func(t *testing.T) {
		req := require.New(t)
		cmd := SendCommand{Room: "r1", Actor: actor, ClientID: "c1", Content: "  \n "}
		req.ErrorIs(cmd.Validate(), errors.ErrEmptyContent)
		req.ErrorIs(cmd.Validate(), errors.ErrValidation)
	})

	t.Run("attachment allows an empty caption", func(t *testing.T) {
		req := require.New(t)
		cmd := SendCommand{
			Room: "r1", Actor: actor, ClientID: "c1",
			Attachment: &Attachment{Type: AttachmentRaw, URL: "https://cdn.example.com/u1_spec.pdf"},
		}
		req.NoError(cmd.Validate())
	})

	t.Run("attachment without url needs text", func(t *testing.T) {
		req := require.New(t)
		cmd := SendCommand{Room: "r1", Actor: actor, ClientID: "c1", Attachment: &Attachment{}}
		req.ErrorIs(cmd.Validate(), errors.ErrEmptyContent)
	})

	t.Run("attachment is checked even with a caption", func(t *testing.T) {
		req := require.New(t)
		for _, a := range []Attachment{
			{Type: "exe", URL: "https://cdn.example.com/x.exe"},
			{Type: AttachmentRaw, URL: "javascript:alert(1)"},
			{Type: AttachmentImage},
		} {
			cmd := SendCommand{Room: "r1", Actor: actor, ClientID: "c1", Content: "see this", Attachment: &a}
			req.ErrorIs(cmd.Validate(), errors.ErrValidation, a.URL)
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		req := require.New(t)
		cmd := SendCommand{Room: "r1", Actor: Actor{ID: "x", Role: "GUEST"}, ClientID: "c1", Content: "hi"}
		req.ErrorIs(cmd.Validate(), errors.ErrValidation)
	})
}

func TestReactCommand_Validate(t *testing.T) {
	req := require.New(t)
	actor := Actor{ID: "admin-1", Role: RoleAdmin}

	req.NoError(ReactCommand{Room: "r1", Actor: actor, Message: "m1", Emoji: "🙏"}.Validate())
	req.ErrorIs(ReactCommand{Room: "r1", Actor: actor, Message: "m1", Emoji: "x"}.Validate(), errors.ErrUnknownEmoji)
}

func TestEditCommand_Validate(t *testing.T) {
	req := require.New(t)
	actor := Actor{ID: "admin-1", Role: RoleAdmin}

	req.ErrorIs(EditCommand{Room: "r1", Actor: actor, Message: "m1"}.Validate(), errors.ErrEmptyContent)
	req.NoError(EditCommand{Room: "r1", Actor: actor, Message: "m1", Content: "fixed"}.Validate())
}
