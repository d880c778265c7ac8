// ABOUTME: Scoring engine mapping a lead's utterance to an intent and score delta
// ABOUTME: Pure keyword heuristics, deterministic and free of side effects
package scoring

import (
	"strings"
	"unicode/utf8"
)

// Rules holds the phrase lists and score weights used by the engine
type Rules struct {
	RejectionPhrases []string
	ProblemPhrases   []string
	NeutralReplies   []string
	MinLength        int // utterances shorter than this are low-signal

	QuestionBonus    int
	ProblemBonus     int
	RejectionPenalty int

	// LowSignalPenalty is applied to a low-signal reply that follows another
	// low-signal reply, and only when PenalizeRepeatLowSignal is set.
	LowSignalPenalty        int
	PenalizeRepeatLowSignal bool
}

// DefaultRules returns the stock Uzbek phrase lists and weights
func DefaultRules() Rules {
	return Rules{
		RejectionPhrases: []string{
			"kerak emas", "qiziq emas", "yo'q", "rahmat lekin",
			"hozir emas", "vaqtim yo'q", "boshqa safar", "spam",
		},
		ProblemPhrases: []string{
			"muammo", "qiyin", "vaqt", "ketadi", "umuman",
			"yordam", "kerak", "qanday", "nima qilsam",
		},
		NeutralReplies:   []string{"ok", "ha", "yoq", "hmm", "xop", "bilmadim", "ko'ramiz"},
		MinLength:        10,
		QuestionBonus:    1,
		ProblemBonus:     2,
		RejectionPenalty: -5,
		LowSignalPenalty: -3,
	}
}

// Intent is the first-match classification of an utterance
type Intent string

const (
	IntentRejection Intent = "rejection"
	IntentQuestion  Intent = "question"
	IntentProblem   Intent = "problem"
	IntentLowSignal Intent = "low_signal"
	IntentNeutral   Intent = "neutral"
)

// Classification records every detector result for one utterance
type Classification struct {
	IsRejection     bool `json:"is_rejection"`
	IsQuestion      bool `json:"is_question"`
	MentionsProblem bool `json:"mentions_problem"`
	IsLowSignal     bool `json:"is_low_signal"`
}

// Intent returns the highest-priority detector that fired
func (c Classification) Intent() Intent {
	switch {
	case c.IsRejection:
		return IntentRejection
	case c.IsQuestion:
		return IntentQuestion
	case c.MentionsProblem:
		return IntentProblem
	case c.IsLowSignal:
		return IntentLowSignal
	}
	return IntentNeutral
}

// Classify runs all detectors against utterance
func (r Rules) Classify(utterance string) Classification {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	return Classification{
		IsRejection:     containsAny(lower, r.RejectionPhrases),
		IsQuestion:      strings.Contains(utterance, "?"),
		MentionsProblem: containsAny(lower, r.ProblemPhrases),
		IsLowSignal:     r.isLowSignal(lower),
	}
}

func (r Rules) isLowSignal(trimmedLower string) bool {
	for _, n := range r.NeutralReplies {
		if trimmedLower == n {
			return true
		}
	}
	return utf8.RuneCountInString(trimmedLower) < r.MinLength
}

// ScoreDelta maps a classification to a confidence score change.
// Rejection short-circuits; low-signal replies score zero so the next
// generated message gets a chance to re-engage.
func (r Rules) ScoreDelta(c Classification) int {
	if c.IsRejection {
		return r.RejectionPenalty
	}
	if c.IsLowSignal {
		return 0
	}
	delta := 0
	if c.IsQuestion {
		delta += r.QuestionBonus
	}
	if c.MentionsProblem {
		delta += r.ProblemBonus
	}
	return delta
}

// ScoreDeltaAfter is ScoreDelta with knowledge of the previous user reply.
// It only differs when repeat low-signal penalties are enabled.
func (r Rules) ScoreDeltaAfter(prev *Classification, c Classification) int {
	if r.PenalizeRepeatLowSignal && !c.IsRejection && c.IsLowSignal &&
		prev != nil && !prev.IsRejection && prev.IsLowSignal {
		return r.LowSignalPenalty
	}
	return r.ScoreDelta(c)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
