package search

import (
	"strconv"
	"strings"

	"support-chat/domain/chat"
)

const DefaultLimit = 20

// Query is a search typed at the prompt, e.g. `/find invoice march --limit 5 --room r1`.
type Query struct {
	RawInput string
	Terms    string
	RoomID   chat.RoomID
	Limit    int
}

// ParseQuery splits command-style input into terms and flags. Unknown flags are dropped with
// their value; words starting with "/" are the command itself.
func ParseQuery(input string) Query {
	query := Query{RawInput: input, Limit: DefaultLimit}

	parts := strings.Fields(input)
	var terms []string
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			value := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "room":
				query.RoomID = chat.RoomID(value)
			case "limit":
				if n, err := strconv.Atoi(value); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++
			continue
		}
		if !strings.HasPrefix(part, "/") {
			terms = append(terms, part)
		}
	}
	query.Terms = strings.Join(terms, " ")
	return query
}
