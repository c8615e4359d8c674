//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"slices"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessage(id chat.MessageID) (DiskMessage, error)
	FindByClientID(room chat.RoomID, clientID chat.MessageID) (DiskMessage, bool, error)
	UpdateMessage(id chat.MessageID, mutate func(*DiskMessage) error) (DiskMessage, error)
	GetMessages(room chat.RoomID, cursor *string) ([]DiskMessage, *string, error)
	ListMessages(room chat.RoomID) ([]DiskMessage, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is a message as the collaborator keeps it. Deleted messages keep their
// content on disk; it is masked when the message leaves the repository layer.
type DiskMessage struct {
	chat.Message
}

// messageKey is "msg:{room}:{timestamp_padded}:{id}". The 19 digit padding keeps keys in
// chronological order; the id separates messages sent in the same nanosecond.
func messageKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.RoomID, m.SentAt.UnixNano(), m.ID))
}

func messageIDKey(id chat.MessageID) []byte {
	return []byte(fmt.Sprintf("msgid:%s", id))
}

func clientIDKey(room chat.RoomID, clientID chat.MessageID) []byte {
	return []byte(fmt.Sprintf("msgclient:%s:%s", room, clientID))
}

// StoreMessage persists a new message with its id index and, when present, its client id.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	key := messageKey(message.Message)
	return m.db.Update(func(txn *badger.Txn) error {
		if err = txn.Set(key, bytes); err != nil {
			return err
		}
		if message.ClientID != "" {
			if err = txn.Set(clientIDKey(message.RoomID, message.ClientID), []byte(message.ID)); err != nil {
				return err
			}
		}
		return txn.Set(messageIDKey(message.ID), key)
	})
}

func (m MessageRepository) GetMessage(id chat.MessageID) (DiskMessage, error) {
	var message DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, _, err = getMessage(txn, id)
		return err
	})
	return message, err
}

// FindByClientID returns the message a client already sent under clientID, if any.
func (m MessageRepository) FindByClientID(room chat.RoomID, clientID chat.MessageID) (DiskMessage, bool, error) {
	var message DiskMessage
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(clientIDKey(room, clientID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		message, _, err = getMessage(txn, chat.MessageID(id))
		found = err == nil
		return err
	})
	return message, found, err
}

// UpdateMessage applies mutate to the stored message in a single transaction. Nothing is
// written when mutate fails.
func (m MessageRepository) UpdateMessage(id chat.MessageID, mutate func(*DiskMessage) error) (DiskMessage, error) {
	var message DiskMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		current, key, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if err = mutate(&current); err != nil {
			return err
		}
		bytes, err := json.Marshal(current)
		if err != nil {
			return err
		}
		message = current
		return txn.Set(key, bytes)
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return message, nil
}

// GetMessages pages backwards through a room, newest first, stopping at limitMessages.
// The returned cursor resumes right before the last message read.
func (m MessageRepository) GetMessages(room chat.RoomID, cursor *string) ([]DiskMessage, *string, error) {
	var messages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append([]byte(prefixStr), []byte("9999999999999999999")...)
		if cursor != nil {
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				var message DiskMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

// ListMessages returns the whole room, oldest first.
func (m MessageRepository) ListMessages(room chat.RoomID) ([]DiskMessage, error) {
	var all []DiskMessage
	var cursor *string
	for {
		page, next, err := m.GetMessages(room, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if m.limitMessages == nil || len(page) < *m.limitMessages {
			break
		}
		cursor = next
	}
	slices.Reverse(all)
	return all, nil
}

func getMessage(txn *badger.Txn, id chat.MessageID) (DiskMessage, []byte, error) {
	item, err := txn.Get(messageIDKey(id))
	if err == badger.ErrKeyNotFound {
		return DiskMessage{}, nil, fmt.Errorf("%w %s", errors.ErrMessageNotFound, id)
	}
	if err != nil {
		return DiskMessage{}, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return DiskMessage{}, nil, err
	}
	item, err = txn.Get(key)
	if err != nil {
		return DiskMessage{}, nil, err
	}
	var message DiskMessage
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &message)
	})
	return message, key, err
}
