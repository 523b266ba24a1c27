package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/lib/pq"
)

// DataLoaderContextKey is the key used to store the user loader in context
type DataLoaderContextKey string

const userLoaderKey DataLoaderContextKey = "userLoader"

// newUserSummaryLoader batches user-summary lookups so listings resolve
// all participant names in one round trip. Loaders are request-scoped;
// nothing is cached across requests.
func newUserSummaryLoader(db *sql.DB) *dataloader.Loader[UserID, *UserSummary] {
	return dataloader.NewBatchedLoader(userSummaryBatchFn(db),
		dataloader.WithWait[UserID, *UserSummary](2*time.Millisecond))
}

func userSummaryBatchFn(db *sql.DB) dataloader.BatchFunc[UserID, *UserSummary] {
	return func(ctx context.Context, keys []UserID) []*dataloader.Result[*UserSummary] {
		results := make([]*dataloader.Result[*UserSummary], len(keys))
		for i := range results {
			results[i] = &dataloader.Result[*UserSummary]{}
		}
		if len(keys) == 0 {
			return results
		}

		ids := make([]int64, len(keys))
		indexByID := make(map[UserID]int, len(keys))
		for i, key := range keys {
			ids[i] = int64(key)
			indexByID[key] = i
		}

		rows, err := db.QueryContext(ctx, `
			SELECT id, name, reputation_score FROM users WHERE id = ANY($1)
		`, pq.Array(ids))
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			var s UserSummary
			var id int64
			if err := rows.Scan(&id, &s.Name, &s.Reputation); err != nil {
				for i := range results {
					if results[i].Data == nil && results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}
			s.ID = UserID(id)
			if i, ok := indexByID[s.ID]; ok {
				results[i].Data = &s
			}
		}

		// Unknown ids stay nil: callers fall back to a bare id summary.
		return results
	}
}

// withUserLoader installs a fresh loader for the lifetime of one request.
func withUserLoader(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), userLoaderKey, newUserSummaryLoader(db))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loadUserSummaries resolves summaries for ids in input order. Missing or
// failed lookups yield nil entries.
func loadUserSummaries(ctx context.Context, db *sql.DB, ids []UserID) []*UserSummary {
	loader, ok := ctx.Value(userLoaderKey).(*dataloader.Loader[UserID, *UserSummary])
	if !ok {
		loader = newUserSummaryLoader(db)
	}

	thunks := make([]func() (*UserSummary, error), len(ids))
	for i, id := range ids {
		thunks[i] = loader.Load(ctx, id)
	}

	summaries := make([]*UserSummary, len(ids))
	for i, thunk := range thunks {
		if s, err := thunk(); err == nil {
			summaries[i] = s
		}
	}
	return summaries
}
