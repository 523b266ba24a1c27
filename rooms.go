package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// RoomRegistry owns the canonical two-party room lifecycle. Rooms are the
// persisted, authoritative side of chat; realtime membership in the
// broker is ephemeral.
type RoomRegistry interface {
	// CreateOrGetRoom resolves the room for the unordered pair {a,b},
	// creating it on first use. Both participants must exist, be active
	// and not banned.
	CreateOrGetRoom(ctx context.Context, a, b UserID) (ChatRoom, error)

	// ListRoomsForUser returns the user's active rooms, most recent
	// activity first, with previews.
	ListRoomsForUser(ctx context.Context, userID UserID) ([]ChatRoom, error)

	// GetRoom returns the room only to its participants. A missing room
	// and a foreign room are indistinguishable to the caller.
	GetRoom(ctx context.Context, roomID RoomID, userID UserID) (ChatRoom, error)

	// UpdatePreview refreshes the denormalized listing preview. Never
	// authoritative over message content.
	UpdatePreview(ctx context.Context, roomID RoomID, body string) error
}

type pgRoomRegistry struct {
	db         *sql.DB
	previewLen int
}

func NewRoomRegistry(db *sql.DB, previewLen int) RoomRegistry {
	return &pgRoomRegistry{db: db, previewLen: previewLen}
}

const roomColumns = `id, user_low, user_high, is_active, last_message, last_message_at, created_at`

func scanRoom(row interface{ Scan(...interface{}) error }) (ChatRoom, error) {
	var room ChatRoom
	var id, low, high int64
	if err := row.Scan(&id, &low, &high, &room.IsActive, &room.LastMessage, &room.LastMessageAt, &room.CreatedAt); err != nil {
		return ChatRoom{}, err
	}
	room.ID = RoomID(id)
	room.Participants = [2]UserID{UserID(low), UserID(high)}
	return room, nil
}

func (reg *pgRoomRegistry) CreateOrGetRoom(ctx context.Context, a, b UserID) (ChatRoom, error) {
	if a == b {
		return ChatRoom{}, ErrParticipantInvalid
	}

	// Both users must exist, be active and not banned.
	var usable int
	err := reg.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE id IN ($1, $2) AND is_active = TRUE AND is_banned = FALSE
	`, int64(a), int64(b)).Scan(&usable)
	if err != nil {
		return ChatRoom{}, persistErr(err)
	}
	if usable != 2 {
		return ChatRoom{}, ErrParticipantInvalid
	}

	low, high := canonicalPair(a, b)

	fetch := func() (ChatRoom, error) {
		row := reg.db.QueryRowContext(ctx, `
			SELECT `+roomColumns+` FROM chat_rooms
			WHERE user_low = $1 AND user_high = $2
		`, int64(low), int64(high))
		return scanRoom(row)
	}

	room, err := fetch()
	switch {
	case err == nil:
		if !room.IsActive {
			// The pair key is unique, so a deactivated room is revived
			// instead of shadowed by a second one.
			if _, err := reg.db.ExecContext(ctx,
				`UPDATE chat_rooms SET is_active = TRUE WHERE id = $1`, int64(room.ID)); err != nil {
				return ChatRoom{}, persistErr(err)
			}
			room.IsActive = true
		}
		return room, nil
	case err != sql.ErrNoRows:
		return ChatRoom{}, persistErr(err)
	}

	row := reg.db.QueryRowContext(ctx, `
		INSERT INTO chat_rooms (user_low, user_high)
		VALUES ($1, $2)
		ON CONFLICT (user_low, user_high) DO NOTHING
		RETURNING `+roomColumns+`
	`, int64(low), int64(high))
	room, err = scanRoom(row)
	if err == sql.ErrNoRows {
		// Race: someone else created first -> refetch
		room, err = fetch()
	}
	if err != nil {
		return ChatRoom{}, persistErr(err)
	}
	return room, nil
}

func (reg *pgRoomRegistry) ListRoomsForUser(ctx context.Context, userID UserID) ([]ChatRoom, error) {
	rows, err := reg.db.QueryContext(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE (user_low = $1 OR user_high = $1) AND is_active = TRUE
		ORDER BY last_message_at DESC, id DESC
	`, int64(userID))
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	rooms := []ChatRoom{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, persistErr(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err)
	}
	return rooms, nil
}

func (reg *pgRoomRegistry) GetRoom(ctx context.Context, roomID RoomID, userID UserID) (ChatRoom, error) {
	row := reg.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE id = $1 AND is_active = TRUE AND (user_low = $2 OR user_high = $2)
	`, int64(roomID), int64(userID))
	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return ChatRoom{}, ErrNotFoundOrForbidden
	} else if err != nil {
		return ChatRoom{}, persistErr(err)
	}
	return room, nil
}

func (reg *pgRoomRegistry) UpdatePreview(ctx context.Context, roomID RoomID, body string) error {
	_, err := reg.db.ExecContext(ctx, `
		UPDATE chat_rooms SET last_message = $2, last_message_at = NOW() WHERE id = $1
	`, int64(roomID), truncatePreview(body, reg.previewLen))
	if err != nil {
		return persistErr(err)
	}
	return nil
}

func truncatePreview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit])
}

// roomView is a room listing entry with resolved participant summaries.
type roomView struct {
	RoomID       RoomID        `json:"roomId"`
	Participants []UserSummary `json:"participants"`
	IsActive     bool          `json:"isActive"`
	LastMessage  string        `json:"lastMessage"`
	LastActivity time.Time     `json:"lastActivity"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// POST /rooms {"userIds": [a, b]}
func createRoomHandler(registry RoomRegistry, db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserIDs []int64 `json:"userIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.UserIDs) != 2 {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		a, b := UserID(req.UserIDs[0]), UserID(req.UserIDs[1])
		caller := callerID(r)
		if caller != a && caller != b {
			// Rooms can only be opened by one of their participants.
			writeDomainError(w, ErrValidation)
			return
		}

		room, err := registry.CreateOrGetRoom(r.Context(), a, b)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse(r, db, room))
	})
}

// GET /rooms
func listRoomsHandler(registry RoomRegistry, db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		rooms, err := registry.ListRoomsForUser(r.Context(), callerID(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		views := make([]roomView, 0, len(rooms))
		for _, room := range rooms {
			views = append(views, roomResponse(r, db, room))
		}
		writeJSON(w, http.StatusOK, map[string][]roomView{"rooms": views})
	})
}

// roomResponse resolves participant names through the request-scoped
// user loader so a page of rooms costs one users query.
func roomResponse(r *http.Request, db *sql.DB, room ChatRoom) roomView {
	view := roomView{
		RoomID:       room.ID,
		Participants: make([]UserSummary, 0, 2),
		IsActive:     room.IsActive,
		LastMessage:  room.LastMessage,
		LastActivity: room.LastMessageAt,
		CreatedAt:    room.CreatedAt,
	}
	summaries := loadUserSummaries(r.Context(), db, room.Participants[:])
	for i, id := range room.Participants {
		if i < len(summaries) && summaries[i] != nil {
			view.Participants = append(view.Participants, *summaries[i])
		} else {
			view.Participants = append(view.Participants, UserSummary{ID: id})
		}
	}
	return view
}
