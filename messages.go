package main

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
)

// MessageStore is the append-only, room-ordered message log.
type MessageStore interface {
	// Append stores one message and returns it with the store-assigned
	// id and timestamp. Bodies over the configured bound are rejected
	// with ErrMessageTooLong and nothing is stored.
	Append(ctx context.Context, roomID RoomID, senderID UserID, senderName, body string) (Message, error)

	// ListForRoom returns up to limit of the newest messages in
	// chronological (oldest-first) order.
	ListForRoom(ctx context.Context, roomID RoomID, limit int) ([]Message, error)
}

type pgMessageStore struct {
	db      *sql.DB
	maxBody int
}

func NewMessageStore(db *sql.DB, maxBody int) MessageStore {
	return &pgMessageStore{db: db, maxBody: maxBody}
}

func (s *pgMessageStore) Append(ctx context.Context, roomID RoomID, senderID UserID, senderName, body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrValidation
	}
	if utf8.RuneCountInString(body) > s.maxBody {
		return Message{}, ErrMessageTooLong
	}

	msg := Message{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (room_id, sender_id, sender_name, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, int64(roomID), int64(senderID), senderName, body).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, persistErr(err)
	}
	return msg, nil
}

func (s *pgMessageStore) ListForRoom(ctx context.Context, roomID RoomID, limit int) ([]Message, error) {
	// Newest first bounds the read, then reverse for display order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, body, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, int64(roomID), limit)
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		msg := Message{RoomID: roomID}
		var senderID int64
		if err := rows.Scan(&msg.ID, &senderID, &msg.SenderName, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, persistErr(err)
		}
		msg.SenderID = UserID(senderID)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GET /rooms/{roomId}/messages?limit=50
func roomMessagesHandler(registry RoomRegistry, store MessageStore, cfg *Config) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		rawID, err := strconv.ParseInt(mux.Vars(r)["roomId"], 10, 64)
		if err != nil {
			writeDomainError(w, ErrNotFoundOrForbidden)
			return
		}
		roomID := RoomID(rawID)

		// Sole access gate for message reads.
		if _, err := registry.GetRoom(r.Context(), roomID, callerID(r)); err != nil {
			writeDomainError(w, err)
			return
		}

		limit := cfg.HistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= cfg.HistoryLimitMax {
				limit = n
			}
		}

		msgs, err := store.ListForRoom(r.Context(), roomID, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]Message{"messages": msgs})
	})
}
