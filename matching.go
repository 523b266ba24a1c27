package main

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
)

// maxMatches caps a match list at the top scored pairs.
const maxMatches = 10

// MatchService orchestrates match retrieval: cache-first against the
// MatchStore, full recompute over the profile pool only when no record
// exists yet for the subject.
type MatchService struct {
	store     MatchStore
	profiles  ProfileSource
	threshold float64
}

func NewMatchService(store MatchStore, profiles ProfileSource, threshold float64) *MatchService {
	return &MatchService{store: store, profiles: profiles, threshold: threshold}
}

// GetMatches returns the subject's ranked match list (score descending,
// at most maxMatches entries). Stored records are taken as the full
// candidate set; recomputation happens only when none exist, so results
// stay stable until an explicit Recompute.
func (s *MatchService) GetMatches(ctx context.Context, userID UserID) ([]MatchEntry, error) {
	existing, err := s.store.QueryForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return rankMatches(existing), nil
	}
	return s.Recompute(ctx, userID)
}

// Recompute scores the subject against every other completed profile and
// upserts each kept pair. Safe to run concurrently for the same user:
// upserts are idempotent and last-write-wins. This is also the explicit
// refresh hook once cached records exist.
func (s *MatchService) Recompute(ctx context.Context, userID UserID) ([]MatchEntry, error) {
	subject, err := s.profiles.CompleteProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	others, err := s.profiles.OtherCompleteProfiles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return []MatchEntry{}, nil
	}

	subjectVec := vectorizeAnswers(subject.Answers)
	pool := make([]scoredProfile, 0, len(others))
	for _, p := range others {
		pool = append(pool, scoredProfile{UserID: p.UserID, Vector: vectorizeAnswers(p.Answers)})
	}

	candidates, err := findCandidates(subjectVec, pool, s.threshold)
	if err != nil {
		return nil, err
	}

	// Canonical storage makes each persisted pair visible from both
	// sides, so writing with the subject as one side is enough for the
	// other participant's future calls too.
	for _, c := range candidates {
		if err := s.store.UpsertMatch(ctx, userID, c.UserID, c.Score); err != nil {
			return nil, err
		}
	}

	// A candidate counts as mutual when its canonical record exists;
	// re-reading the store after the writes is exactly that check and
	// also yields the name/reputation projection.
	stored, err := s.store.QueryForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rankMatches(stored), nil
}

func rankMatches(entries []MatchEntry) []MatchEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > maxMatches {
		entries = entries[:maxMatches]
	}
	return entries
}

// GET /matches/{userId}
func matchesHandler(svc *MatchService) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := matchSubject(r)
		if !ok {
			writeDomainError(w, ErrNotFoundOrForbidden)
			return
		}

		matches, err := svc.GetMatches(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]MatchEntry{"matches": matches})
	})
}

// POST /matches/{userId}/recompute
// The explicit refresh trigger: cached records are recomputed and
// overwritten in place, never deleted first.
func recomputeMatchesHandler(svc *MatchService) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := matchSubject(r)
		if !ok {
			writeDomainError(w, ErrNotFoundOrForbidden)
			return
		}

		matches, err := svc.Recompute(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]MatchEntry{"matches": matches})
	})
}

// matchSubject resolves the {userId} path variable and requires it to be
// the authenticated caller. A foreign id is answered like a missing one.
func matchSubject(r *http.Request) (UserID, bool) {
	raw, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		return 0, false
	}
	userID := UserID(raw)
	if userID != callerID(r) {
		return 0, false
	}
	return userID, true
}
