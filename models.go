package main

import "time"

// UserID identifies a user. All core logic compares users by this type;
// raw ids from tokens, payloads and rows are converted once at the boundary.
type UserID int64

// RoomID identifies a chat room.
type RoomID int64

// QuizProfile holds a user's onboarding quiz answers.
// Answers are indexed by question id 1-10; each value is the selected
// option index 0-3. A question the user never answered stays at 0.
type QuizProfile struct {
	UserID     UserID  `json:"user_id"`
	Answers    [10]int `json:"answers"`
	IsComplete bool    `json:"is_complete"`
}

// MatchEntry is one row of a user's match list: the other side of a
// stored pair plus the score, projected without sensitive fields.
type MatchEntry struct {
	UserID     UserID  `json:"userId"`
	Name       string  `json:"name"`
	Reputation int     `json:"reputation"`
	Score      float64 `json:"similarityScore"`
}

// ChatRoom is a two-party chat channel. LastMessage and LastMessageAt are
// a denormalized preview used only for listing; the message log stays
// authoritative.
type ChatRoom struct {
	ID            RoomID    `json:"roomId"`
	Participants  [2]UserID `json:"participants"`
	IsActive      bool      `json:"isActive"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastActivity"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Message is one stored chat message. Immutable once appended.
type Message struct {
	ID         int64     `json:"id"`
	RoomID     RoomID    `json:"roomId"`
	SenderID   UserID    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"timestamp"`
}

// UserSummary is the non-sensitive projection of a user used by listings.
type UserSummary struct {
	ID         UserID `json:"userId"`
	Name       string `json:"name"`
	Reputation int    `json:"reputation"`
}
