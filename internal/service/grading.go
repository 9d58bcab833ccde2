package service

import (
	"math"
	"strings"
	"time"

	"github.com/talentshire/assessment-core/internal/model"
)

// optionsMatch compares MCQ options ignoring case and surrounding whitespace.
func optionsMatch(selected, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(correct))
}

// MCQScore is all-or-nothing.
func MCQScore(correct bool, maxMarks float64) float64 {
	if correct {
		return maxMarks
	}
	return 0
}

// Percentage returns obtained/max*100 rounded to two decimals, 0 when max is 0.
func Percentage(obtained, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(obtained/max*100*100) / 100
}

// GradeFor maps a percentage to a letter grade.
func GradeFor(percentage float64) model.Grade {
	switch {
	case percentage >= 90:
		return model.GradeA
	case percentage >= 80:
		return model.GradeB
	case percentage >= 70:
		return model.GradeC
	case percentage >= 60:
		return model.GradeD
	default:
		return model.GradeF
	}
}

// DurationSeconds is the whole seconds between start and submit. Missing
// timestamps or a negative span yield 0.
func DurationSeconds(startedAt, submittedAt *time.Time) int64 {
	if startedAt == nil || submittedAt == nil {
		return 0
	}
	d := submittedAt.Sub(*startedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
