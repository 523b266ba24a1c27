package main

import (
	"context"
	"database/sql"
)

// MatchStore persists deduplicated pairwise similarity scores.
type MatchStore interface {
	// UpsertMatch stores score for the unordered pair {a,b}. Concurrent
	// upserts for the same pair never create two records; the last write
	// wins.
	UpsertMatch(ctx context.Context, a, b UserID, score float64) error

	// QueryForUser returns every stored pair involving userID, projected
	// to non-sensitive fields, ordered by score descending.
	QueryForUser(ctx context.Context, userID UserID) ([]MatchEntry, error)
}

// canonicalPair orders two user ids into the storage key. The same pair
// always yields the same key regardless of argument order.
func canonicalPair(a, b UserID) (low, high UserID) {
	if a > b {
		return b, a
	}
	return a, b
}

type pgMatchStore struct {
	db *sql.DB
}

func NewMatchStore(db *sql.DB) MatchStore {
	return &pgMatchStore{db: db}
}

func (s *pgMatchStore) UpsertMatch(ctx context.Context, a, b UserID, score float64) error {
	low, high := canonicalPair(a, b)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (user_low, user_high, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_low, user_high)
		DO UPDATE SET score = EXCLUDED.score, updated_at = NOW()
	`, int64(low), int64(high), score)
	if err != nil {
		return persistErr(err)
	}
	return nil
}

func (s *pgMatchStore) QueryForUser(ctx context.Context, userID UserID) ([]MatchEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN m.user_low = $1 THEN m.user_high ELSE m.user_low END AS other_id,
		       u.name,
		       u.reputation_score,
		       m.score
		FROM matches m
		JOIN users u ON u.id = CASE WHEN m.user_low = $1 THEN m.user_high ELSE m.user_low END
		WHERE m.user_low = $1 OR m.user_high = $1
		ORDER BY m.score DESC, other_id ASC
	`, int64(userID))
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	entries := []MatchEntry{}
	for rows.Next() {
		var e MatchEntry
		var otherID int64
		if err := rows.Scan(&otherID, &e.Name, &e.Reputation, &e.Score); err != nil {
			return nil, persistErr(err)
		}
		e.UserID = UserID(otherID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err)
	}
	return entries, nil
}
