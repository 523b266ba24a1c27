package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUsers(n int) map[UserID]UserSummary {
	users := make(map[UserID]UserSummary, n)
	for i := 1; i <= n; i++ {
		id := UserID(i)
		users[id] = UserSummary{ID: id, Name: fmt.Sprintf("User %d", i), Reputation: i * 10}
	}
	return users
}

func TestGetMatchesComputesAndPersists(t *testing.T) {
	store := newMemMatchStore(testUsers(3))
	profiles := newMemProfileSource()
	profiles.put(1, answersAll(2), true)
	profiles.put(2, answersAll(2), true) // identical -> 1.0
	profiles.put(3, [10]int{3, 0, 0, 0, 0, 0, 0, 0, 0, 0}, true)

	svc := NewMatchService(store, profiles, 0.75)
	matches, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, UserID(2), matches[0].UserID)
	assert.Equal(t, "User 2", matches[0].Name)
	assert.Equal(t, 1.0, matches[0].Score)
	assert.Equal(t, 1, store.recordCount())
}

func TestGetMatchesNoProfile(t *testing.T) {
	store := newMemMatchStore(testUsers(2))
	profiles := newMemProfileSource()
	profiles.put(2, answersAll(1), true)

	svc := NewMatchService(store, profiles, 0.75)

	_, err := svc.GetMatches(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoProfile)

	// An incomplete profile is the same as none.
	profiles.put(1, answersAll(1), false)
	_, err = svc.GetMatches(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestGetMatchesEmptyPool(t *testing.T) {
	store := newMemMatchStore(testUsers(1))
	profiles := newMemProfileSource()
	profiles.put(1, answersAll(1), true)

	svc := NewMatchService(store, profiles, 0.75)
	matches, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGetMatchesCacheFirst(t *testing.T) {
	store := newMemMatchStore(testUsers(3))
	profiles := newMemProfileSource()
	profiles.put(1, answersAll(2), true)
	profiles.put(2, answersAll(2), true)

	svc := NewMatchService(store, profiles, 0.75)
	first, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A new compatible profile joins; cached records stay authoritative
	// until an explicit recompute.
	profiles.put(3, answersAll(2), true)

	second, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	recomputed, err := svc.Recompute(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, recomputed, 2)
}

func TestGetMatchesStableAcrossCalls(t *testing.T) {
	store := newMemMatchStore(testUsers(4))
	profiles := newMemProfileSource()
	profiles.put(1, answersAll(2), true)
	profiles.put(2, answersAll(2), true)
	profiles.put(3, answersAll(2), true)
	profiles.put(4, [10]int{2, 2, 2, 2, 2, 2, 2, 2, 2, 1}, true)

	svc := NewMatchService(store, profiles, 0.75)
	first, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeat calls must return an identical ordered list")
}

func TestGetMatchesVisibleFromBothSides(t *testing.T) {
	store := newMemMatchStore(testUsers(2))
	profiles := newMemProfileSource()
	profiles.put(1, answersAll(3), true)
	profiles.put(2, answersAll(3), true)

	svc := NewMatchService(store, profiles, 0.75)
	_, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)

	// User 2 never computed anything; the canonical record from user 1's
	// run already satisfies the mutuality check.
	matches, err := svc.GetMatches(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, UserID(1), matches[0].UserID)
	assert.Equal(t, 1, store.recordCount())
}

func TestGetMatchesRanksAndTruncates(t *testing.T) {
	users := testUsers(15)
	store := newMemMatchStore(users)
	profiles := newMemProfileSource()

	for i := 2; i <= 15; i++ {
		require.NoError(t, store.UpsertMatch(context.Background(), 1, UserID(i), 0.75+float64(i)*0.001))
	}

	svc := NewMatchService(store, profiles, 0.75)
	matches, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, matches, maxMatches)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score, "scores must descend")
	}
	assert.Equal(t, UserID(15), matches[0].UserID)
}

func TestMatchesHandler(t *testing.T) {
	store := newMemMatchStore(testUsers(2))
	profiles := newMemProfileSource()
	profiles.put(1, answersAll(2), true)
	profiles.put(2, answersAll(2), true)
	svc := NewMatchService(store, profiles, 0.75)

	r := mux.NewRouter()
	r.HandleFunc("/matches/{userId}", matchesHandler(svc)).Methods(http.MethodGet)

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/matches/1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("foreign subject is indistinguishable from missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/matches/2", nil)
		req.Header.Set("Authorization", authHeader(1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("own matches", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/matches/1", nil)
		req.Header.Set("Authorization", authHeader(1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Matches []MatchEntry `json:"matches"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Matches, 1)
		assert.Equal(t, UserID(2), resp.Matches[0].UserID)
	})
}

func TestMatchesHandlerStoreFailure(t *testing.T) {
	store := newMemMatchStore(testUsers(2))
	store.fail = persistErr(fmt.Errorf("connection refused"))
	svc := NewMatchService(store, newMemProfileSource(), 0.75)

	r := mux.NewRouter()
	r.HandleFunc("/matches/{userId}", matchesHandler(svc)).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/matches/1", nil)
	req.Header.Set("Authorization", authHeader(1))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCanonicalPair(t *testing.T) {
	low, high := canonicalPair(7, 3)
	assert.Equal(t, UserID(3), low)
	assert.Equal(t, UserID(7), high)

	low, high = canonicalPair(3, 7)
	assert.Equal(t, UserID(3), low)
	assert.Equal(t, UserID(7), high)
}

func TestUpsertLastWriteWins(t *testing.T) {
	store := newMemMatchStore(testUsers(2))
	ctx := context.Background()

	require.NoError(t, store.UpsertMatch(ctx, 1, 2, 0.80))
	require.NoError(t, store.UpsertMatch(ctx, 2, 1, 0.91))

	assert.Equal(t, 1, store.recordCount(), "both orders must hit the same record")

	entries, err := store.QueryForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0.91, entries[0].Score)
}
