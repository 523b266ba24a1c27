package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In-memory collaborators for orchestrator, broker and handler tests.
// Semantics mirror the Postgres stores: canonical pair keys, last-write-
// wins upserts, newest-first-then-reverse reads.

type memMatchStore struct {
	mu     sync.Mutex
	scores map[[2]UserID]float64
	users  map[UserID]UserSummary
	fail   error
}

func newMemMatchStore(users map[UserID]UserSummary) *memMatchStore {
	return &memMatchStore{
		scores: make(map[[2]UserID]float64),
		users:  users,
	}
}

func (s *memMatchStore) UpsertMatch(_ context.Context, a, b UserID, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	low, high := canonicalPair(a, b)
	s.scores[[2]UserID{low, high}] = score
	return nil
}

func (s *memMatchStore) QueryForUser(_ context.Context, userID UserID) ([]MatchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	entries := []MatchEntry{}
	for pair, score := range s.scores {
		var other UserID
		switch userID {
		case pair[0]:
			other = pair[1]
		case pair[1]:
			other = pair[0]
		default:
			continue
		}
		u := s.users[other]
		entries = append(entries, MatchEntry{UserID: other, Name: u.Name, Reputation: u.Reputation, Score: score})
	}
	return entries, nil
}

func (s *memMatchStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scores)
}

type memProfileSource struct {
	mu       sync.Mutex
	profiles map[UserID]QuizProfile
}

func newMemProfileSource() *memProfileSource {
	return &memProfileSource{profiles: make(map[UserID]QuizProfile)}
}

func (s *memProfileSource) put(userID UserID, answers [10]int, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = QuizProfile{UserID: userID, Answers: answers, IsComplete: complete}
}

func (s *memProfileSource) CompleteProfile(_ context.Context, userID UserID) (QuizProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok || !p.IsComplete {
		return QuizProfile{}, ErrNoProfile
	}
	return p, nil
}

func (s *memProfileSource) OtherCompleteProfiles(_ context.Context, userID UserID) ([]QuizProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QuizProfile
	for id, p := range s.profiles {
		if id != userID && p.IsComplete {
			out = append(out, p)
		}
	}
	return out, nil
}

type memRoomRegistry struct {
	mu     sync.Mutex
	nextID RoomID
	rooms  map[RoomID]*ChatRoom
}

func newMemRoomRegistry() *memRoomRegistry {
	return &memRoomRegistry{nextID: 1, rooms: make(map[RoomID]*ChatRoom)}
}

func (r *memRoomRegistry) addRoom(a, b UserID) RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	low, high := canonicalPair(a, b)
	id := r.nextID
	r.nextID++
	r.rooms[id] = &ChatRoom{
		ID:           id,
		Participants: [2]UserID{low, high},
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	return id
}

func (r *memRoomRegistry) CreateOrGetRoom(_ context.Context, a, b UserID) (ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	low, high := canonicalPair(a, b)
	for _, room := range r.rooms {
		if room.Participants == [2]UserID{low, high} {
			return *room, nil
		}
	}
	id := r.nextID
	r.nextID++
	room := &ChatRoom{ID: id, Participants: [2]UserID{low, high}, IsActive: true, CreatedAt: time.Now()}
	r.rooms[id] = room
	return *room, nil
}

func (r *memRoomRegistry) ListRoomsForUser(_ context.Context, userID UserID) ([]ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []ChatRoom{}
	for _, room := range r.rooms {
		if room.IsActive && (room.Participants[0] == userID || room.Participants[1] == userID) {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *memRoomRegistry) GetRoom(_ context.Context, roomID RoomID, userID UserID) (ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || !room.IsActive || (room.Participants[0] != userID && room.Participants[1] != userID) {
		return ChatRoom{}, ErrNotFoundOrForbidden
	}
	return *room, nil
}

func (r *memRoomRegistry) UpdatePreview(_ context.Context, roomID RoomID, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	room.LastMessage = truncatePreview(body, 100)
	room.LastMessageAt = time.Now()
	return nil
}

func (r *memRoomRegistry) preview(roomID RoomID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		return room.LastMessage
	}
	return ""
}

type memMessageStore struct {
	mu      sync.Mutex
	nextID  int64
	maxBody int
	byRoom  map[RoomID][]Message
	fail    error
}

func newMemMessageStore(maxBody int) *memMessageStore {
	return &memMessageStore{nextID: 1, maxBody: maxBody, byRoom: make(map[RoomID][]Message)}
}

func (s *memMessageStore) Append(_ context.Context, roomID RoomID, senderID UserID, senderName, body string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return Message{}, s.fail
	}
	if body == "" {
		return Message{}, ErrValidation
	}
	if len([]rune(body)) > s.maxBody {
		return Message{}, ErrMessageTooLong
	}
	msg := Message{
		ID:         s.nextID,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	s.nextID++
	s.byRoom[roomID] = append(s.byRoom[roomID], msg)
	return msg, nil
}

func (s *memMessageStore) ListForRoom(_ context.Context, roomID RoomID, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	all := s.byRoom[roomID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *memMessageStore) count(roomID RoomID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byRoom[roomID])
}

// answersAll builds a profile where every question got the same option.
func answersAll(option int) [10]int {
	var a [10]int
	for i := range a {
		a[i] = option
	}
	return a
}

// authHeader issues a real token for a test user.
func authHeader(userID UserID) string {
	token, err := issueToken(userID)
	if err != nil {
		panic(fmt.Sprintf("issueToken: %v", err))
	}
	return "Bearer " + token
}
