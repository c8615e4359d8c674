package chat

import (
	"fmt"
	"strings"

	"support-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Command is a mutation request addressed to the message store of one room.
type Command interface {
	RoomID() RoomID
	Validate() error
}

type SendCommand struct {
	Room       RoomID `validate:"required"`
	Actor      Actor
	ClientID   MessageID   `validate:"required"`
	Content    string      `validate:"max=4000"`
	ReplyTo    *MessageID  `validate:"omitempty"`
	Attachment *Attachment `validate:"omitempty"`
}

func (c SendCommand) RoomID() RoomID { return c.Room }

// Validate requires text unless the message carries an attachment.
func (c SendCommand) Validate() error {
	if err := CheckSendPayload(c.Content, c.Attachment); err != nil {
		return err
	}
	return check(c)
}

// CheckSendPayload requires text unless an attachment with a url is given, and checks the
// attachment type and url.
func CheckSendPayload(content string, a *Attachment) error {
	if (a == nil || a.URL == "") && Blank(content) {
		return errors.ErrEmptyContent
	}
	if a != nil {
		return check(*a)
	}
	return nil
}

type EditCommand struct {
	Room    RoomID `validate:"required"`
	Actor   Actor
	Message MessageID `validate:"required"`
	Content string    `validate:"max=4000"`
}

func (c EditCommand) RoomID() RoomID { return c.Room }

func (c EditCommand) Validate() error {
	if Blank(c.Content) {
		return errors.ErrEmptyContent
	}
	return check(c)
}

type DeleteCommand struct {
	Room    RoomID `validate:"required"`
	Actor   Actor
	Message MessageID `validate:"required"`
}

func (c DeleteCommand) RoomID() RoomID  { return c.Room }
func (c DeleteCommand) Validate() error { return check(c) }

type PinCommand struct {
	Room    RoomID `validate:"required"`
	Actor   Actor
	Message MessageID `validate:"required"`
	Pinned  bool
}

func (c PinCommand) RoomID() RoomID  { return c.Room }
func (c PinCommand) Validate() error { return check(c) }

type ReactCommand struct {
	Room    RoomID `validate:"required"`
	Actor   Actor
	Message MessageID `validate:"required"`
	Emoji   string    `validate:"required"`
}

func (c ReactCommand) RoomID() RoomID { return c.Room }

func (c ReactCommand) Validate() error {
	if !ValidEmoji(c.Emoji) {
		return errors.ErrUnknownEmoji
	}
	return check(c)
}

type MarkReadCommand struct {
	Room    RoomID `validate:"required"`
	Actor   Actor
	Message MessageID `validate:"required"`
}

func (c MarkReadCommand) RoomID() RoomID  { return c.Room }
func (c MarkReadCommand) Validate() error { return check(c) }

func check(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
