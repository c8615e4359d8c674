package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/google/uuid"
)

type ComposeState string

const (
	StateIdle      ComposeState = "idle"
	StateComposing ComposeState = "composing"
	StateSending   ComposeState = "sending"
)

// Key is one keystroke as the terminal reports it. Commit is the enter key; Modified is set
// when it came with a modifier (shift, alt).
type Key struct {
	Rune     rune
	Commit   bool
	Modified bool
}

// Composer owns the outgoing draft of one room view: text, reply target, pending attachment
// and the edit buffer. It never touches stored messages; every mutation goes through the
// dispatcher.
type Composer struct {
	mu         sync.Mutex
	room       chat.RoomID
	actor      chat.Actor
	dispatcher contract.IDispatcher
	log        *slog.Logger
	newID      func() chat.MessageID
	now        func() time.Time

	state      ComposeState
	draft      string
	replyTo    *chat.MessageID
	attachment *chat.Attachment
	editing    *chat.MessageID
	editBuffer string
}

func NewComposer(room chat.RoomID, actor chat.Actor, dispatcher contract.IDispatcher, log *slog.Logger) *Composer {
	return &Composer{
		room:       room,
		actor:      actor,
		dispatcher: dispatcher,
		log:        log.With("room", room, "actor", actor.ID),
		newID:      func() chat.MessageID { return chat.MessageID(uuid.NewString()) },
		now:        time.Now,
		state:      StateIdle,
	}
}

func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}

func (c *Composer) WithIDs(newID func() chat.MessageID) *Composer {
	c.newID = newID
	return c
}

func (c *Composer) State() ComposeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Type replaces the draft. It is refused while a send is in flight so the draft can be
// handed back untouched if that send fails.
func (c *Composer) Type(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		return errors.ErrBusy
	}
	c.draft = text
	c.settleState()
	return nil
}

func (c *Composer) ReplyTarget() (chat.MessageID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replyTo == nil {
		return "", false
	}
	return *c.replyTo, true
}

// ReplyTo targets an existing, not deleted message of the room.
func (c *Composer) ReplyTo(id chat.MessageID) error {
	target, err := c.dispatcher.Lookup(c.room, id)
	if err != nil {
		return err
	}
	if target.Deleted {
		return errors.ErrMessageDeleted
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyTo = &id
	return nil
}

func (c *Composer) CancelReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyTo = nil
}

// Attach sets the attachment sent with the next message. A message with an attachment
// may go out without text.
func (c *Composer) Attach(a chat.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		return errors.ErrBusy
	}
	c.attachment = &a
	c.settleState()
	return nil
}

func (c *Composer) Attachment() (chat.Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachment == nil {
		return chat.Attachment{}, false
	}
	return *c.attachment, true
}

func (c *Composer) ClearAttachment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = nil
	c.settleState()
}

// BeginEdit puts id in edit mode with its current text in the buffer. Another message
// already in edit mode leaves it, its buffer discarded.
func (c *Composer) BeginEdit(id chat.MessageID) error {
	target, err := c.dispatcher.Lookup(c.room, id)
	if err != nil {
		return err
	}
	if err = chat.CheckEdit(target, c.actor, c.now()); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		return errors.ErrBusy
	}
	c.editing = &id
	c.editBuffer = target.Text()
	return nil
}

// Editing returns the message in edit mode and the buffer.
func (c *Composer) Editing() (chat.MessageID, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return "", "", false
	}
	return *c.editing, c.editBuffer, true
}

func (c *Composer) SetEditBuffer(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return errors.ErrNotEditing
	}
	if c.state == StateSending {
		return errors.ErrBusy
	}
	c.editBuffer = text
	return nil
}

// CancelEdit leaves edit mode. The message is not touched.
func (c *Composer) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = nil
	c.editBuffer = ""
}

// HandleKey applies the keyboard contract: a plain commit submits the active mode, a
// modified commit inserts a newline, any other key is appended to the active buffer.
// The boolean reports whether a submission happened.
func (c *Composer) HandleKey(ctx context.Context, key Key) (chat.Message, bool, error) {
	switch {
	case key.Commit && !key.Modified:
		m, err := c.Submit(ctx)
		return m, true, err
	case key.Commit:
		return chat.Message{}, false, c.insert("\n")
	default:
		return chat.Message{}, false, c.insert(string(key.Rune))
	}
}

func (c *Composer) insert(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		return errors.ErrBusy
	}
	if c.editing != nil {
		c.editBuffer += s
		return nil
	}
	c.draft += s
	c.settleState()
	return nil
}

// Submit sends the draft, or saves the edit when a message is in edit mode. It waits for the
// outcome unless ctx ends first; the operation itself is never cancelled and the composer
// settles whenever it completes.
func (c *Composer) Submit(ctx context.Context) (chat.Message, error) {
	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return chat.Message{}, errors.ErrBusy
	}
	if c.editing != nil {
		return c.submitEdit(ctx)
	}
	return c.submitSend(ctx)
}

// submitSend is called with the lock held and releases it.
func (c *Composer) submitSend(ctx context.Context) (chat.Message, error) {
	cmd := chat.SendCommand{
		Room:       c.room,
		Actor:      c.actor,
		ClientID:   c.newID(),
		Content:    strings.TrimSpace(c.draft),
		ReplyTo:    c.replyTo,
		Attachment: c.attachment,
	}
	if err := cmd.Validate(); err != nil {
		c.mu.Unlock()
		return chat.Message{}, err
	}
	c.state = StateSending
	c.mu.Unlock()

	return c.await(ctx, c.dispatcher.Dispatch(cmd), func(res contract.Result) {
		if res.Err != nil {
			c.log.Warn("Send failed, draft restored", "error", res.Err)
			c.state = StateComposing
			return
		}
		c.draft = ""
		c.replyTo = nil
		c.attachment = nil
		c.state = StateIdle
	})
}

// submitEdit is called with the lock held and releases it.
func (c *Composer) submitEdit(ctx context.Context) (chat.Message, error) {
	cmd := chat.EditCommand{Room: c.room, Actor: c.actor, Message: *c.editing, Content: strings.TrimSpace(c.editBuffer)}
	if err := cmd.Validate(); err != nil {
		c.mu.Unlock()
		return chat.Message{}, err
	}
	previous := c.state
	c.state = StateSending
	c.mu.Unlock()

	return c.await(ctx, c.dispatcher.Dispatch(cmd), func(res contract.Result) {
		c.state = previous
		if res.Err != nil {
			c.log.Warn("Edit failed, buffer kept", "message", cmd.Message, "error", res.Err)
			return
		}
		c.editing = nil
		c.editBuffer = ""
	})
}

func (c *Composer) await(ctx context.Context, pending <-chan contract.Result, settle func(contract.Result)) (chat.Message, error) {
	apply := func(res contract.Result) {
		c.mu.Lock()
		defer c.mu.Unlock()
		settle(res)
	}
	select {
	case res := <-pending:
		apply(res)
		return res.Message, res.Err
	case <-ctx.Done():
		go func() { apply(<-pending) }()
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrTransport, ctx.Err())
	}
}

// settleState moves between idle and composing from the draft content. Must hold the lock.
func (c *Composer) settleState() {
	if c.state == StateSending {
		return
	}
	if chat.Blank(c.draft) && c.attachment == nil {
		c.state = StateIdle
		return
	}
	c.state = StateComposing
}
