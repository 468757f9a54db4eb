package service

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/roadready/driveschool-api/internal/models"
)

// Scoring heuristics carried over from the legacy progress engine. The
// score is a presentation aid, not an assessment of driving competence.
const (
	scoreBase = 50

	recentWindowDays   = 30
	frequentThreshold  = 4
	steadyThreshold    = 2
	frequentBonus      = 20
	steadyBonus        = 10
	infrequentPenalty  = 10
	excellentBonus     = 15
	goodBonus          = 10

	bracketExcellent = 80
	bracketGood      = 60
	bracketSteady    = 40
)

// ComputeProgressScore derives a deterministic 0-100 score from a student's
// lesson history and instructor records. Same inputs always produce the same
// output; the clock only fixes the 30-day recency window.
func ComputeProgressScore(lessons []models.Lesson, records []models.ProgressRecord, now time.Time) models.ProgressScore {
	if len(lessons) == 0 {
		return models.ProgressScore{
			Score:           0,
			Analysis:        "No lessons completed yet.",
			Recommendations: []string{"Book your first lesson to get started!"},
			TotalRecords:    len(records),
		}
	}

	cutoff := now.AddDate(0, 0, -recentWindowDays)
	recent := lo.CountBy(lessons, func(l models.Lesson) bool {
		return l.Date.After(cutoff) && !l.Date.After(now)
	})

	score := scoreBase
	switch {
	case recent >= frequentThreshold:
		score += frequentBonus
	case recent >= steadyThreshold:
		score += steadyBonus
	default:
		score -= infrequentPenalty
	}

	// Records arrive newest first; only the latest feedback counts.
	if len(records) > 0 {
		feedback := strings.ToLower(records[0].Feedback)
		switch {
		case strings.Contains(feedback, "excellent"):
			score += excellentBonus
		case strings.Contains(feedback, "good"):
			score += goodBonus
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return models.ProgressScore{
		Score:           score,
		Analysis:        scoreAnalysis(score),
		Recommendations: scoreRecommendations(recent, records),
		TotalLessons:    len(lessons),
		RecentLessons:   recent,
		TotalRecords:    len(records),
	}
}

func scoreAnalysis(score int) string {
	switch {
	case score >= bracketExcellent:
		return "Excellent progress!"
	case score >= bracketGood:
		return "Good progress, keep it up!"
	case score >= bracketSteady:
		return "Steady progress, consider more frequent lessons."
	default:
		return "Getting started, book more lessons for better progress."
	}
}

// scoreRecommendations always emits a frequency sentence, then a feedback
// sentence when the latest record triggers one.
func scoreRecommendations(recent int, records []models.ProgressRecord) []string {
	var recs []string
	switch {
	case recent >= frequentThreshold:
		recs = append(recs, "Great consistency! Keep up the regular practice.")
	case recent >= steadyThreshold:
		recs = append(recs, "Good progress. Consider booking more frequent lessons.")
	default:
		recs = append(recs, "Consider booking more regular lessons for better progress.")
	}
	if len(records) > 0 {
		feedback := strings.ToLower(records[0].Feedback)
		switch {
		case strings.Contains(feedback, "excellent"):
			recs = append(recs, "Excellent feedback from instructor! You're doing great.")
		case strings.Contains(feedback, "good"):
			recs = append(recs, "Good progress noted by instructor.")
		}
		if strings.Contains(strings.ToLower(records[0].NextFocus), "practice") {
			recs = append(recs, "Focus on practicing the areas mentioned by your instructor.")
		}
	}
	return recs
}
