package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransport(t *testing.T) {
	req := require.New(t)

	req.NoError(Transport(nil))
	req.Equal(ErrEditWindowExpired, Transport(ErrEditWindowExpired))

	wrapped := Transport(context.DeadlineExceeded)
	req.True(Is(wrapped, ErrTransport))
	req.False(Is(wrapped, ErrValidation))

	req.True(Is(Transport(fmt.Errorf("dial: %w", ErrCircuitOpen)), ErrTransport))
}

func TestSpecificErrorsBelongToOneCategory(t *testing.T) {
	req := require.New(t)
	for _, err := range []error{
		ErrEmptyContent, ErrMissingField, ErrInvalidRoomContext, ErrInvalidRole, ErrUnknownEmoji,
		ErrAttachmentRejected, ErrNotEditing, ErrBusy, ErrNotAuthor, ErrEditWindowExpired,
		ErrMessageDeleted, ErrNotParticipant, ErrRoomContextImmutable, ErrInvalidSession,
		ErrRoomNotFound, ErrMessageNotFound, ErrCircuitOpen, ErrNotRunning,
	} {
		matched := 0
		for _, c := range categories {
			if Is(err, c) {
				matched++
			}
		}
		req.Equal(1, matched, err.Error())
	}
}
