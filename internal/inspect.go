package internal

import (
	"strconv"
	"strings"
	"time"

	"support-chat/domain/chat"
	"support-chat/repositories"

	"github.com/goccy/go-json"
)

const excerptLength = 48

// InspectRow is one badger entry as the inspector prints it.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Room      string
	EntityID  string
	Detail    string
}

// MapRow decodes an entry from its key layout. Unknown keys and undecodable values fall
// back to a RAW row with the value size.
func MapRow(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		Room:      "-",
		EntityID:  "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	kind, rest, _ := strings.Cut(key, ":")
	switch kind {
	case "msg":
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 {
			return row
		}
		var m repositories.DiskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			return row
		}
		row.Type = "MESSAGE"
		row.Room = short(parts[0])
		row.EntityID = short(parts[2])
		if nanos, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, nanos).UTC().Format(time.DateTime)
		}
		row.Detail = messageDetail(m.Message)
	case "room":
		var room chat.Room
		if err := json.Unmarshal(val, &room); err != nil {
			return row
		}
		row.Type = "ROOM"
		row.Room = short(string(room.ID))
		row.Timestamp = room.UpdatedAt.UTC().Format(time.DateTime)
		row.Detail = chat.FormatRoomIdentifier(room.Context.Kind, room.Context.Key()) + " " + room.Title
	case "roomctx":
		row.Type = "CONTEXT"
		row.Room = short(string(val))
		row.Detail = rest
	case "msgid":
		row.Type = "MESSAGE-ID"
		row.EntityID = short(rest)
		row.Detail = string(val)
	case "msgclient":
		room, clientID, _ := strings.Cut(rest, ":")
		row.Type = "CLIENT-ID"
		row.Room = short(room)
		row.EntityID = short(string(val))
		row.Detail = clientID
	}
	return row
}

func messageDetail(m chat.Message) string {
	if m.Deleted {
		return chat.DeletedPlaceholder
	}
	text := []rune(strings.ReplaceAll(m.Text(), "\n", " "))
	if len(text) > excerptLength {
		text = append(text[:excerptLength], '…')
	}
	var flags []string
	if m.Edited {
		flags = append(flags, "edited")
	}
	if m.Pinned {
		flags = append(flags, "pinned")
	}
	if m.HasAttachment() {
		flags = append(flags, string(m.Attachment.Type))
	}
	if len(flags) == 0 {
		return string(text)
	}
	return string(text) + " [" + strings.Join(flags, ",") + "]"
}

// short keeps the first 8 characters of an id for readability.
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
