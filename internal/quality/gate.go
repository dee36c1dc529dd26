// Package quality holds the score bookkeeping around analyze/fix cycles.
package quality

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"adflow/internal/domain"
)

const (
	MinScore = 0
	MaxScore = 100
)

// minDetectRunes is the shortest text the language check will judge.
const minDetectRunes = 40

// ReconcileScore returns the score to record for an analysis. Without a
// previous score the new one stands. After a correction pass the result never
// drops below the previous score; without one no floor applies.
func ReconcileScore(newScore int, previous *int, correctionsApplied bool) int {
	if previous == nil || !correctionsApplied {
		return newScore
	}
	return max(newScore, *previous)
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	return min(max(score, MinScore), MaxScore)
}

// Reconcile records an analysis from the service: both scores are clamped to
// [MinScore, MaxScore], then ReconcileScore decides the reported one. The raw
// service score and the previous score are kept alongside it.
func Reconcile(a *domain.QualityAnalysis, previous *int, correctionsApplied bool) {
	a.RawScore = a.Score
	var prev *int
	if previous != nil {
		p := Clamp(*previous)
		prev = &p
		a.PreviousScore = &p
	}
	a.Score = ReconcileScore(Clamp(a.Score), prev, correctionsApplied)
}

// LanguageIssue reports a high-severity issue when text is confidently
// detected as a different language than target. Short or ambiguous text and
// unparsable targets yield nil.
func LanguageIssue(text, target string) *domain.QualityIssue {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minDetectRunes {
		return nil
	}
	tag, err := language.Parse(target)
	if err != nil {
		return nil
	}
	base, _ := tag.Base()
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return nil
	}
	detected := info.Lang.Iso6391()
	if detected == "" || detected == base.String() {
		return nil
	}
	return &domain.QualityIssue{
		Severity: "high",
		Message:  fmt.Sprintf("content appears to be %q, expected %q", detected, base.String()),
	}
}
