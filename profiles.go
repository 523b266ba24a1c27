package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
)

// ProfileSource is the read side of the onboarding collaborator: the
// matching core only ever consumes completed quiz profiles through it.
type ProfileSource interface {
	// CompleteProfile returns the user's quiz profile, or ErrNoProfile
	// when the user has none or has not completed onboarding.
	CompleteProfile(ctx context.Context, userID UserID) (QuizProfile, error)

	// OtherCompleteProfiles returns every completed profile except the
	// subject's own.
	OtherCompleteProfiles(ctx context.Context, userID UserID) ([]QuizProfile, error)
}

type pgProfileSource struct {
	db *sql.DB
}

func NewProfileSource(db *sql.DB) ProfileSource {
	return &pgProfileSource{db: db}
}

func (s *pgProfileSource) CompleteProfile(ctx context.Context, userID UserID) (QuizProfile, error) {
	p := QuizProfile{UserID: userID}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT answers, is_complete FROM quiz_profiles WHERE user_id = $1
	`, int64(userID)).Scan(&raw, &p.IsComplete)
	if err == sql.ErrNoRows {
		return QuizProfile{}, ErrNoProfile
	} else if err != nil {
		return QuizProfile{}, persistErr(err)
	}
	if !p.IsComplete {
		return QuizProfile{}, ErrNoProfile
	}
	if err := json.Unmarshal(raw, &p.Answers); err != nil {
		return QuizProfile{}, persistErr(err)
	}
	return p, nil
}

func (s *pgProfileSource) OtherCompleteProfiles(ctx context.Context, userID UserID) ([]QuizProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, answers FROM quiz_profiles
		WHERE is_complete = TRUE AND user_id <> $1
	`, int64(userID))
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	var profiles []QuizProfile
	for rows.Next() {
		p := QuizProfile{IsComplete: true}
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, persistErr(err)
		}
		p.UserID = UserID(id)
		if err := json.Unmarshal(raw, &p.Answers); err != nil {
			return nil, persistErr(err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err)
	}
	return profiles, nil
}

// QuizQuestion is one onboarding question served to the client.
type QuizQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func quizQuestions() []QuizQuestion {
	return []QuizQuestion{
		{1, "What do you mostly use social apps for?",
			[]string{"Casual chatting", "Learning & discussions", "Making new friends", "All of the above"}},
		{2, "Which topic excites you the most?",
			[]string{"Technology & AI", "Movies & Entertainment", "Business & Startups", "Personal growth & mindset"}},
		{3, "How do you prefer conversations?",
			[]string{"Short & fun", "Deep & meaningful", "Question-answer style", "Mixed - depends on mood"}},
		{4, "When do you feel most active on social or study apps?",
			[]string{"Late night", "Morning", "Evening", "Anytime, depends on mood"}},
		{5, "Which best describes your personality?",
			[]string{"Quiet but thoughtful", "Talkative & energetic", "Curious learner", "Leader & motivator"}},
		{6, "How comfortable are you talking to new people?",
			[]string{"Very comfortable", "Somewhat comfortable", "Takes time", "Only with similar interests"}},
		{7, "What type of people would you like to match with?",
			[]string{"Same academic background", "Same interests", "Same goals", "Any positive person"}},
		{8, "How do you prefer to spend your free time?",
			[]string{"Reading books or learning new skills", "Socializing with friends and family", "Outdoor activities and sports", "Creative projects and hobbies"}},
		{9, "What makes a conversation boring for you?",
			[]string{"One-word replies", "No clear topic", "Rude behavior", "All of the above"}},
		{10, "What do you expect from this app?",
			[]string{"Learn something new", "Meet like-minded people", "Healthy & respectful community", "Everything"}},
	}
}

// GET /onboarding/questions
func quizQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]QuizQuestion{"questions": quizQuestions()})
	}
}

// POST /onboarding {"answers": {"1": 2, ..., "10": 0}}
// Question ids run 1-10, option indexes 0-3. Questions omitted from the
// payload keep the default answer 0. Submission marks the profile
// complete.
func submitOnboardingHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := callerID(r)

		var req struct {
			Answers map[string]int `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if len(req.Answers) == 0 {
			writeError(w, http.StatusBadRequest, "missing_answers")
			return
		}

		var answers [10]int
		for key, val := range req.Answers {
			qid, err := strconv.Atoi(key)
			if err != nil || qid < 1 || qid > quizQuestionCount {
				writeError(w, http.StatusBadRequest, "invalid_question_id")
				return
			}
			if val < 0 || val > maxAnswerIndex {
				writeError(w, http.StatusBadRequest, "invalid_answer_index")
				return
			}
			answers[qid-1] = val
		}

		raw, _ := json.Marshal(answers)
		_, err := db.ExecContext(r.Context(), `
			INSERT INTO quiz_profiles (user_id, answers, is_complete)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (user_id)
			DO UPDATE SET answers = EXCLUDED.answers, is_complete = TRUE, updated_at = NOW()
		`, int64(userID), raw)
		if err != nil {
			writeDomainError(w, persistErr(err))
			return
		}

		writeJSON(w, http.StatusCreated, map[string]bool{"completed": true})
	})
}
