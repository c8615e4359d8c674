package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/projection"
	"support-chat/search"
	"support-chat/services"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const helpText = `Type a line to send it. End it with \ to continue on a new line.
  /rooms [rfq|product]     list your rooms
  /open <n|room id>        open a room
  /refresh                 reload the open room
  /reply <n>               reply to message n, /cancel to drop
  /edit <n> <text>         replace the text of your message n
  /delete <n>              delete message n
  /pin <n>, /unpin <n>     pin or unpin message n
  /react <n> <emoji>       toggle a reaction
  /read                    mark every message as read
  /pinned                  show pinned messages
  /attach <path>           upload a file for the next message
  /find <terms> [--limit n] [--room id]
  /cancel                  drop the reply target, edit and attachment
  /quit`

// Shell runs slash commands and composer input typed at the prompt against one chat session.
type Shell struct {
	svc     *services.ChatService
	out     io.Writer
	colours bool
	room    chat.RoomID
	rooms   []chat.Room
	items   []projection.Item
}

func NewShell(svc *services.ChatService, out io.Writer, colours bool) *Shell {
	return &Shell{svc: svc, out: out, colours: colours}
}

// Execute handles one input line. The boolean asks the caller to quit.
func (sh *Shell) Execute(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, sh.compose(ctx, line)
	}
	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(sh.out, helpText)
		return false, nil
	case "/rooms":
		return false, sh.listRooms(ctx, chat.ContextKind(strings.ToLower(rest)))
	case "/open":
		return false, sh.open(ctx, rest)
	case "/refresh":
		return false, sh.refresh(ctx)
	case "/find":
		return false, sh.find(ctx, line)
	}

	composer, err := sh.composer()
	if err != nil {
		return false, err
	}
	switch command {
	case "/reply":
		id, err := sh.resolve(rest)
		if err != nil {
			return false, err
		}
		return false, composer.ReplyTo(id)
	case "/edit":
		ref, text, _ := strings.Cut(rest, " ")
		return false, sh.edit(ctx, composer, ref, text)
	case "/cancel":
		composer.CancelReply()
		composer.CancelEdit()
		composer.ClearAttachment()
		return false, nil
	case "/attach":
		return false, sh.attach(ctx, composer, rest)
	case "/read":
		n, err := sh.svc.MarkAllRead(ctx, sh.room)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "%d marked as read\n", n)
		return false, sh.render()
	case "/pinned":
		view, err := sh.svc.View(sh.room)
		if err != nil {
			return false, err
		}
		sh.print(view.Pinned)
		return false, nil
	case "/delete", "/pin", "/unpin", "/react":
		return false, sh.act(ctx, command, rest)
	default:
		return false, fmt.Errorf("%w: unknown command %s, try /help", errors.ErrValidation, command)
	}
}

// compose feeds the line to the composer key by key. A trailing backslash is a modified
// commit and keeps the draft open on a new line.
func (sh *Shell) compose(ctx context.Context, line string) error {
	composer, err := sh.composer()
	if err != nil {
		return err
	}
	modified := strings.HasSuffix(line, `\`)
	for _, r := range strings.TrimSuffix(line, `\`) {
		if _, _, err = composer.HandleKey(ctx, services.Key{Rune: r}); err != nil {
			return err
		}
	}
	_, submitted, err := composer.HandleKey(ctx, services.Key{Commit: true, Modified: modified})
	if err != nil {
		return err
	}
	if submitted {
		return sh.render()
	}
	return nil
}

func (sh *Shell) composer() (*services.Composer, error) {
	if sh.room == "" {
		return nil, fmt.Errorf("%w: no room open, use /open", errors.ErrValidation)
	}
	return sh.svc.Composer(sh.room)
}

func (sh *Shell) listRooms(ctx context.Context, kind chat.ContextKind) error {
	rooms, err := sh.svc.ListRooms(ctx, kind)
	if err != nil {
		return err
	}
	sh.rooms = rooms
	if len(rooms) == 0 {
		fmt.Fprintln(sh.out, "no rooms")
		return nil
	}

	table := tablewriter.NewWriter(sh.out)
	table.SetHeader([]string{"#", "Context", "Title", "Counterpart", "Updated"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for i, room := range rooms {
		table.Append([]string{
			strconv.Itoa(i + 1),
			chat.FormatRoomIdentifier(room.Context.Kind, room.Context.Key()),
			room.Title,
			fmt.Sprintf("%s %s", room.CounterpartRole, room.CounterpartID),
			room.UpdatedAt.Local().Format("Jan 2 15:04"),
		})
	}
	table.Render()
	return nil
}

func (sh *Shell) open(ctx context.Context, ref string) error {
	if len(sh.rooms) == 0 {
		rooms, err := sh.svc.ListRooms(ctx, "")
		if err != nil {
			return err
		}
		sh.rooms = rooms
	}
	id := chat.RoomID(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(sh.rooms) {
			return fmt.Errorf("%w: no room %d, use /rooms", errors.ErrRoomNotFound, n)
		}
		id = sh.rooms[n-1].ID
	}
	view, err := sh.svc.SelectRoom(ctx, id)
	if err != nil {
		return err
	}
	sh.room = id
	sh.show(view)
	return nil
}

func (sh *Shell) refresh(ctx context.Context) error {
	if sh.room == "" {
		return fmt.Errorf("%w: no room open, use /open", errors.ErrValidation)
	}
	view, err := sh.svc.Refresh(ctx, sh.room)
	if err != nil {
		return err
	}
	sh.show(view)
	return nil
}

func (sh *Shell) render() error {
	view, err := sh.svc.View(sh.room)
	if err != nil {
		return err
	}
	sh.show(view)
	return nil
}

func (sh *Shell) edit(ctx context.Context, composer *services.Composer, ref, text string) error {
	id, err := sh.resolve(ref)
	if err != nil {
		return err
	}
	if err = composer.BeginEdit(id); err != nil {
		return err
	}
	if chat.Blank(text) {
		composer.CancelEdit()
		return errors.ErrEmptyContent
	}
	if err = composer.SetEditBuffer(text); err != nil {
		return err
	}
	if _, err = composer.Submit(ctx); err != nil {
		return err
	}
	return sh.render()
}

func (sh *Shell) attach(ctx context.Context, composer *services.Composer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	a, err := sh.svc.Upload(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err = composer.Attach(a); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "attached %s, type a caption or an empty line to send\n", filepath.Base(path))
	return nil
}

func (sh *Shell) act(ctx context.Context, command, rest string) error {
	ref, arg, _ := strings.Cut(rest, " ")
	id, err := sh.resolve(ref)
	if err != nil {
		return err
	}
	switch command {
	case "/delete":
		_, err = sh.svc.Delete(ctx, sh.room, id)
	case "/pin":
		_, err = sh.svc.SetPinned(ctx, sh.room, id, true)
	case "/unpin":
		_, err = sh.svc.SetPinned(ctx, sh.room, id, false)
	case "/react":
		_, err = sh.svc.React(ctx, sh.room, id, strings.TrimSpace(arg))
	}
	if err != nil {
		return err
	}
	return sh.render()
}

func (sh *Shell) find(ctx context.Context, line string) error {
	query := search.ParseQuery(line)
	room := sh.room
	if query.RoomID != "" {
		room = query.RoomID
	}
	if room == "" {
		return fmt.Errorf("%w: no room open, use /open or --room", errors.ErrValidation)
	}
	found, err := sh.svc.Search(ctx, room, query.Terms)
	if err != nil {
		return err
	}
	if len(found) > query.Limit {
		found = found[:query.Limit]
	}
	fmt.Fprintf(sh.out, "%d found\n", len(found))
	sh.print(found)
	return nil
}

// resolve maps a message number of the last rendered view to its id. Anything else is
// taken as a message id.
func (sh *Shell) resolve(ref string) (chat.MessageID, error) {
	if ref == "" {
		return "", errors.ErrMissingField
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return chat.MessageID(ref), nil
	}
	if n < 1 || n > len(sh.items) {
		return "", fmt.Errorf("%w: no message %d", errors.ErrMessageNotFound, n)
	}
	return sh.items[n-1].ID, nil
}

func (sh *Shell) show(view projection.Timeline) {
	sh.items = view.Items
	header := fmt.Sprintf("  ====== %s %s ======", view.Identifier, view.Room.Title)
	fmt.Fprintln(sh.out, sh.paint(color.New(color.BgBlack, color.FgGreen), header))
	sh.print(view.Items)
	if view.Unread > 0 {
		fmt.Fprintln(sh.out, sh.paint(color.New(color.FgYellow), fmt.Sprintf("%d unread", view.Unread)))
	}
}

func (sh *Shell) print(items []projection.Item) {
	for _, item := range items {
		if item.DaySeparator != "" {
			fmt.Fprintln(sh.out, sh.paint(color.New(color.FgGray), "-- "+item.DaySeparator+" --"))
		}
		if item.GroupStart {
			sender := fmt.Sprintf("%s %s", item.SenderRole, item.SenderID)
			style := color.New(color.FgCyan, color.OpBold)
			if item.FromMe {
				style = color.New(color.FgGreen, color.OpBold)
			}
			fmt.Fprintln(sh.out, sh.paint(style, sender))
		}
		fmt.Fprintln(sh.out, sh.line(item))
		if item.Reply != nil {
			fmt.Fprintln(sh.out, sh.paint(color.New(color.FgGray),
				fmt.Sprintf("       > %s: %s", item.Reply.SenderRole, item.Reply.Text)))
		}
		if item.Attachment.URL != "" {
			name := item.Attachment.DisplayName
			if name == "" {
				name = string(item.Attachment.Kind)
			}
			fmt.Fprintf(sh.out, "       [%s] %s\n", name, item.Attachment.URL)
		}
		if len(item.Reactions) > 0 {
			parts := make([]string, 0, len(item.Reactions))
			for _, r := range item.Reactions {
				mark := ""
				if r.Mine {
					mark = "*"
				}
				parts = append(parts, fmt.Sprintf("%s %d%s", r.Emoji, r.Count, mark))
			}
			fmt.Fprintln(sh.out, "       "+strings.Join(parts, "  "))
		}
	}
}

func (sh *Shell) line(item projection.Item) string {
	number := sh.number(item.ID)
	text := item.Text
	if item.Deleted {
		text = sh.paint(color.New(color.FgGray, color.OpItalic), text)
	}
	var flags []string
	if item.Edited && !item.Deleted {
		flags = append(flags, "(edited)")
	}
	if item.Pinned {
		flags = append(flags, "[pinned]")
	}
	if item.FromMe {
		flags = append(flags, statusMark(item.Status))
	}
	out := fmt.Sprintf(" [%s] %s %s", number, item.TimeLabel, text)
	if len(flags) > 0 {
		out += " " + strings.Join(flags, " ")
	}
	return out
}

// number is the position of the message in the open room, "-" for a search hit that is not
// loaded there.
func (sh *Shell) number(id chat.MessageID) string {
	for i, item := range sh.items {
		if item.ID == id {
			return strconv.Itoa(i + 1)
		}
	}
	return "-"
}

func statusMark(status chat.DeliveryStatus) string {
	switch status {
	case chat.StatusSending:
		return "..."
	case chat.StatusRead:
		return "read"
	default:
		return "sent"
	}
}

func (sh *Shell) paint(style color.Style, s string) string {
	if !sh.colours {
		return s
	}
	return style.Render(s)
}
