package search

import (
	"testing"

	"support-chat/domain/chat"

	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		terms string
		room  chat.RoomID
		limit int
	}{
		{name: "terms only", input: "/find steel pipes", terms: "steel pipes", limit: DefaultLimit},
		{name: "room and limit", input: "/find invoice --room r1 --limit 5", terms: "invoice", room: "r1", limit: 5},
		{name: "invalid limit keeps default", input: "/find invoice --limit lots", terms: "invoice", limit: DefaultLimit},
		{name: "unknown flag dropped", input: "/find --seller acme invoice", terms: "invoice", limit: DefaultLimit},
		{name: "dangling flag is a term", input: "/find invoice --room", terms: "invoice --room", limit: DefaultLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			q := ParseQuery(tt.input)
			req.Equal(tt.terms, q.Terms)
			req.Equal(tt.room, q.RoomID)
			req.Equal(tt.limit, q.Limit)
		})
	}
}
