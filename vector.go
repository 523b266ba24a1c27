package main

import "math"

// quizQuestionCount is the fixed width of a similarity vector: one
// component per quiz question, ordered by ascending question id.
const quizQuestionCount = 10

// maxAnswerIndex is the highest selectable option index; components are
// normalized by it into [0,1].
const maxAnswerIndex = 3

// vectorizeAnswers converts quiz answers into their similarity vector.
// Component i holds answers[i]/3; an unanswered question contributes 0.
// Pure and deterministic.
func vectorizeAnswers(answers [10]int) [quizQuestionCount]float64 {
	var v [quizQuestionCount]float64
	for i, a := range answers {
		if a < 0 || a > maxAnswerIndex {
			a = 0
		}
		v[i] = float64(a) / maxAnswerIndex
	}
	return v
}

// cosineSimilarity returns dot(a,b)/(|a||b|). If either magnitude is
// exactly zero the score is 0: two all-zero answer vectors carry no
// directional information and must not read as identical.
func cosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)

	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (magA * magB), nil
}

// Candidate is one scored profile out of findCandidates.
type Candidate struct {
	UserID UserID
	Score  float64
}

// scoredProfile is a vectorized profile ready for pairwise scoring.
type scoredProfile struct {
	UserID UserID
	Vector [quizQuestionCount]float64
}

// findCandidates scores subject against every other vector and keeps the
// ones at or above threshold. Kept scores are rounded to 2 decimals so
// downstream ranking and display compare stable values. The result order
// is unspecified.
func findCandidates(subject [quizQuestionCount]float64, others []scoredProfile, threshold float64) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(others))
	for _, other := range others {
		score, err := cosineSimilarity(subject[:], other.Vector[:])
		if err != nil {
			return nil, err
		}
		if score >= threshold {
			candidates = append(candidates, Candidate{
				UserID: other.UserID,
				Score:  roundScore(score),
			})
		}
	}
	return candidates, nil
}

func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}
