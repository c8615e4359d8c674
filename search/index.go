//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_index.go -package=mocks

// Package search keeps a room-scoped full text index of message content.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/blugelabs/bluge"
)

const (
	fieldContent = "content"
	fieldRoom    = "room"
	fieldSentAt  = "sent_at"
	fieldID      = "_id"
)

type IIndex interface {
	Put(m chat.Message) error
	Remove(id chat.MessageID) error
	Search(ctx context.Context, room chat.RoomID, terms string, limit int) ([]chat.MessageID, error)
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Put indexes the visible text of m, replacing any previous version. Deleted or empty
// messages are removed instead.
func (i *Index) Put(m chat.Message) error {
	text := m.Text()
	if chat.Blank(text) {
		return i.Remove(m.ID)
	}
	doc := bluge.NewDocument(string(m.ID)).
		AddField(bluge.NewTextField(fieldContent, text)).
		AddField(bluge.NewKeywordField(fieldRoom, string(m.RoomID))).
		AddField(bluge.NewDateTimeField(fieldSentAt, m.SentAt).Sortable())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", m.ID, err)
	}
	return nil
}

func (i *Index) Remove(id chat.MessageID) error {
	if err := i.writer.Delete(bluge.Identifier(id)); err != nil {
		return fmt.Errorf("unindex message %s: %w", id, err)
	}
	return nil
}

// Search returns the ids of the room's messages matching every term, best match first.
func (i *Index) Search(ctx context.Context, room chat.RoomID, terms string, limit int) ([]chat.MessageID, error) {
	if chat.Blank(terms) {
		return nil, errors.ErrEmptyContent
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Unable to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(fieldContent).SetOperator(bluge.MatchQueryOperatorAnd)).
		AddMust(bluge.NewTermQuery(string(room)).SetField(fieldRoom))
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-_score", "-" + fieldSentAt})

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}
	var ids []chat.MessageID
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == fieldID {
				ids = append(ids, chat.MessageID(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	i.log.Debug("Search done", "room", room, "terms", terms, "hits", len(ids))
	return ids, nil
}
