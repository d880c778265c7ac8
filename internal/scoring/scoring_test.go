// ABOUTME: Tests for the scoring engine classification and deltas
// ABOUTME: Covers rejection short-circuit, low-signal deferral and additive bonuses
package scoring

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name      string
		utterance string
		want      Classification
		intent    Intent
	}{
		{
			name:      "rejection phrase",
			utterance: "Rahmat, qiziq emas",
			want:      Classification{IsRejection: true},
			intent:    IntentRejection,
		},
		{
			name:      "rejection is case-insensitive",
			utterance: "KERAK EMAS",
			want:      Classification{IsRejection: true, MentionsProblem: true},
			intent:    IntentRejection,
		},
		{
			name:      "question",
			utterance: "Bu qancha turadi?",
			want:      Classification{IsQuestion: true},
			intent:    IntentQuestion,
		},
		{
			name:      "problem and question",
			utterance: "Mijozlarga javob berishga vaqt ketadi, qanday qilasiz?",
			want:      Classification{IsQuestion: true, MentionsProblem: true},
			intent:    IntentQuestion,
		},
		{
			name:      "neutral acknowledgment",
			utterance: "  ha  ",
			want:      Classification{IsLowSignal: true},
			intent:    IntentLowSignal,
		},
		{
			name:      "long neutral text",
			utterance: "Salom, ishlar yaxshi rahmat",
			want:      Classification{},
			intent:    IntentNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Classify(tt.utterance)
			if got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.utterance, got, tt.want)
			}
			if got.Intent() != tt.intent {
				t.Errorf("Intent() = %s, want %s", got.Intent(), tt.intent)
			}
		})
	}
}

func TestScoreDelta_RejectionIgnoresOtherSignals(t *testing.T) {
	rules := DefaultRules()

	for _, phrase := range rules.RejectionPhrases {
		utterance := "Qanday muammo? " + strings.ToUpper(phrase) + " ok?"
		c := rules.Classify(utterance)
		if !c.IsRejection {
			t.Errorf("Classify(%q).IsRejection = false, want true", utterance)
		}
		if got := rules.ScoreDelta(c); got != rules.RejectionPenalty {
			t.Errorf("ScoreDelta(%q) = %d, want %d", utterance, got, rules.RejectionPenalty)
		}
	}
}

func TestScoreDelta_ShortRepliesScoreZero(t *testing.T) {
	rules := DefaultRules()

	for _, utterance := range []string{"ok", "qanday?", "muammo", "?", "", "ha ha ha", "bilmadim"} {
		c := rules.Classify(utterance)
		if got := rules.ScoreDelta(c); got != 0 {
			t.Errorf("ScoreDelta(%q) = %d, want 0", utterance, got)
		}
	}
}

func TestScoreDelta_BonusesAreAdditive(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		utterance string
		want      int
	}{
		{"Narxi qancha bo'ladi?", 1},
		{"Bizda mijozlar bilan muammo bor", 2},
		{"Bizda muammo bor, yordam bera olasizmi?", 3},
		{"Salom, ishlar yaxshi rahmat", 0},
	}

	for _, tt := range tests {
		if got := rules.ScoreDelta(rules.Classify(tt.utterance)); got != tt.want {
			t.Errorf("ScoreDelta(%q) = %d, want %d", tt.utterance, got, tt.want)
		}
	}
}

func TestScoreDelta_Deterministic(t *testing.T) {
	rules := DefaultRules()
	utterance := "Bizda muammo bor, yordam bera olasizmi?"

	first := rules.ScoreDelta(rules.Classify(utterance))
	for i := 0; i < 100; i++ {
		if got := rules.ScoreDelta(rules.Classify(utterance)); got != first {
			t.Fatalf("iteration %d: ScoreDelta = %d, want %d", i, got, first)
		}
	}
}

func TestScoreDeltaAfter_RepeatLowSignal(t *testing.T) {
	low := Classification{IsLowSignal: true}

	rules := DefaultRules()
	if got := rules.ScoreDeltaAfter(&low, low); got != 0 {
		t.Errorf("penalty disabled: ScoreDeltaAfter = %d, want 0", got)
	}

	rules.PenalizeRepeatLowSignal = true
	if got := rules.ScoreDeltaAfter(nil, low); got != 0 {
		t.Errorf("first low-signal reply: ScoreDeltaAfter = %d, want 0", got)
	}
	if got := rules.ScoreDeltaAfter(&low, low); got != rules.LowSignalPenalty {
		t.Errorf("repeat low-signal reply: ScoreDeltaAfter = %d, want %d", got, rules.LowSignalPenalty)
	}

	rejection := Classification{IsRejection: true, IsLowSignal: true}
	if got := rules.ScoreDeltaAfter(&low, rejection); got != rules.RejectionPenalty {
		t.Errorf("rejection after low-signal: ScoreDeltaAfter = %d, want %d", got, rules.RejectionPenalty)
	}
}
