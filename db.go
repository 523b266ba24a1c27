package main

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func openDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	log.Println("Database connection established successfully")
	return db, nil
}

// ensureSchema creates the tables on first start so a fresh database is
// usable without manual setup. Statements are idempotent.
func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			reputation_score INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_online TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_profiles (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			answers JSONB NOT NULL,
			is_complete BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// One row per unordered pair: user_low < user_high always, enforced
		// by the unique index plus the canonicalization at the write path.
		`CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			user_low BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_high BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			score DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT matches_pair_unique UNIQUE (user_low, user_high),
			CONSTRAINT matches_pair_ordered CHECK (user_low < user_high),
			CONSTRAINT matches_score_range CHECK (score >= 0 AND score <= 1)
		)`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id BIGSERIAL PRIMARY KEY,
			user_low BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_high BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_message TEXT NOT NULL DEFAULT '',
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chat_rooms_pair_unique UNIQUE (user_low, user_high),
			CONSTRAINT chat_rooms_pair_ordered CHECK (user_low < user_high)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			sender_name TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_user_low ON matches (user_low, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_user_high ON matches (user_high, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_activity ON chat_rooms (last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages (room_id, created_at DESC, id DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
