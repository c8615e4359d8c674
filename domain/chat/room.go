package chat

import (
	"fmt"
	"strings"
	"time"

	"support-chat/errors"
)

type RoomID string

type ContextKind string

const (
	ContextRFQ     ContextKind = "rfq"
	ContextProduct ContextKind = "product"
)

func (k ContextKind) Valid() bool {
	return k == ContextRFQ || k == ContextProduct
}

// RoomContext ties a room to the business object it was opened for.
// Exactly one of RFQID and ProductID is set, matching Kind.
type RoomContext struct {
	Kind      ContextKind `json:"kind"`
	RFQID     string      `json:"rfqId,omitempty"`
	ProductID string      `json:"productId,omitempty"`
}

func RFQContext(rfqID string) RoomContext {
	return RoomContext{Kind: ContextRFQ, RFQID: rfqID}
}

func ProductContext(productID string) RoomContext {
	return RoomContext{Kind: ContextProduct, ProductID: productID}
}

// Key returns the business-object id the room is scoped to.
func (c RoomContext) Key() string {
	if c.Kind == ContextRFQ {
		return c.RFQID
	}
	return c.ProductID
}

func (c RoomContext) Validate() error {
	hasRFQ, hasProduct := c.RFQID != "", c.ProductID != ""
	switch {
	case hasRFQ == hasProduct:
		return errors.ErrInvalidRoomContext
	case c.Kind == ContextRFQ && hasRFQ:
		return nil
	case c.Kind == ContextProduct && hasProduct:
		return nil
	default:
		return errors.ErrInvalidRoomContext
	}
}

type Room struct {
	ID              RoomID      `json:"id"`
	Context         RoomContext `json:"context"`
	CounterpartID   string      `json:"counterpartId"`
	CounterpartRole Role        `json:"counterpartRole"`
	Title           string      `json:"title"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (r Room) Validate() error {
	if r.ID == "" || r.CounterpartID == "" {
		return errors.ErrMissingField
	}
	if !r.CounterpartRole.Counterpart() {
		return fmt.Errorf("%w: counterpart must be BUYER or SELLER", errors.ErrInvalidRole)
	}
	return r.Context.Validate()
}

// HasParticipant reports whether the actor takes part in the room. Admins take part in every
// room; a buyer or seller only in the rooms where they are the counterpart.
func (r Room) HasParticipant(a Actor) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == r.CounterpartRole && a.ID == r.CounterpartID
}

// FormatRoomIdentifier renders a raw room or business id for display, e.g. "RFQ-8F3A91C2".
func FormatRoomIdentifier(kind ContextKind, rawID string) string {
	short := strings.ToUpper(strings.ReplaceAll(rawID, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	prefix := "PRD"
	if kind == ContextRFQ {
		prefix = "RFQ"
	}
	if short == "" {
		return prefix
	}
	return prefix + "-" + short
}
