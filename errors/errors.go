// Package errors holds the failure taxonomy shared by the chat core, the collaborator backend
// and the REST transport. Every specific error wraps exactly one category so callers only
// need errors.Is against ErrNotFound, ErrForbidden, ErrValidation or ErrTransport.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Categories
var (
	ErrNotFound   = fmt.Errorf("not found")
	ErrForbidden  = fmt.Errorf("forbidden")
	ErrValidation = fmt.Errorf("validation failed")
	ErrTransport  = fmt.Errorf("transport failure")
)

var (
	ErrEmptyContent       = fmt.Errorf("%w: content is empty", ErrValidation)
	ErrMissingField       = fmt.Errorf("%w: missing required field", ErrValidation)
	ErrInvalidRoomContext = fmt.Errorf("%w: room must carry exactly one context key", ErrValidation)
	ErrInvalidRole        = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrUnknownEmoji       = fmt.Errorf("%w: emoji is not part of the palette", ErrValidation)
	ErrAttachmentRejected = fmt.Errorf("%w: attachment type or size not accepted", ErrValidation)
	ErrNotEditing         = fmt.Errorf("%w: no message is in edit mode", ErrValidation)
	ErrBusy               = fmt.Errorf("%w: a send is already in flight", ErrValidation)

	ErrNotAuthor            = fmt.Errorf("%w: only the author may do this", ErrForbidden)
	ErrEditWindowExpired    = fmt.Errorf("%w: edit window expired", ErrForbidden)
	ErrMessageDeleted       = fmt.Errorf("%w: message is deleted", ErrForbidden)
	ErrNotParticipant       = fmt.Errorf("%w: actor is not a participant of the room", ErrForbidden)
	ErrRoomContextImmutable = fmt.Errorf("%w: room context key cannot change", ErrForbidden)
	ErrOwnMessage           = fmt.Errorf("%w: a message is read by the other side", ErrForbidden)
	ErrInvalidSession       = fmt.Errorf("%w: invalid session", ErrForbidden)

	ErrRoomNotFound    = fmt.Errorf("%w: room", ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("%w: message", ErrNotFound)

	ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrTransport)
	ErrNotRunning  = fmt.Errorf("%w: dispatcher is not running", ErrTransport)

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

var categories = []error{ErrNotFound, ErrForbidden, ErrValidation, ErrTransport}

// Is wraps the standard errors.Is so callers importing this package need no alias.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Categorized reports whether err already belongs to one of the four categories.
func Categorized(err error) bool {
	for _, c := range categories {
		if stderrors.Is(err, c) {
			return true
		}
	}
	return false
}

// Transport files an uncategorized failure (network, decoding, cancelled context) under
// ErrTransport. Categorized errors are returned unchanged.
func Transport(err error) error {
	if err == nil || Categorized(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
