package decision

import (
	"testing"

	"github.com/modwatch/modwatch/internal/models"
)

func TestParseFormalDecision(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.Verdict
	}{
		{"colon remove", "DECISION: REMOVE", models.VerdictRemove},
		{"colon keep", "DECISION: KEEP", models.VerdictKeep},
		{"lowercase", "decision: keep", models.VerdictKeep},
		{"extra whitespace", "DECISION  :   REMOVE", models.VerdictRemove},
		{"conjugated remove", "DECISION: REMOVED", models.VerdictRemove},
		{"conjugated keep", "DECISION: KEEPING", models.VerdictKeep},
		{"synonym banned", "DECISION: BANNED", models.VerdictRemove},
		{"synonym allowed", "DECISION: ALLOWED", models.VerdictKeep},
		{"synonym delete", "DECISION: DELETE", models.VerdictRemove},
		{"synonym approve", "DECISION: APPROVE", models.VerdictKeep},
		{"no colon remove", "DECISION REMOVE", models.VerdictRemove},
		{"no colon keep", "DECISION KEPT", models.VerdictKeep},
		{"embedded in prose", "After reviewing the rules, DECISION: REMOVE because of rule 2.", models.VerdictRemove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.response); got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestParseFormalDecisionWinsOverLaterMentions(t *testing.T) {
	response := "DECISION: KEEP. Although some moderators would remove similar comments."
	if got := Parse(response); got != models.VerdictKeep {
		t.Errorf("Parse = %v, want %v", got, models.VerdictKeep)
	}
}

func TestParseEndOfResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.Verdict
	}{
		{"bare verb at end", "This violates rule 3.\n\nREMOVE", models.VerdictRemove},
		{"keep at end", "Nothing wrong here. KEEP", models.VerdictKeep},
		{"trailing whitespace", "The comment is fine. KEEP   ", models.VerdictKeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.response); got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestParseLastLine(t *testing.T) {
	response := "The comment is borderline.\nI would keep this one."
	if got := Parse(response); got != models.VerdictKeep {
		t.Errorf("Parse = %v, want %v", got, models.VerdictKeep)
	}
}

func TestParseLatestOccurrenceWins(t *testing.T) {
	// Neither verdict appears in the last line, so the whole-text scan
	// applies and the later verb decides.
	response := "There are arguments to KEEP the comment.\nHowever REMOVE fits the rules better.\nThat is my final analysis."
	if got := Parse(response); got != models.VerdictRemove {
		t.Errorf("Parse = %v, want %v", got, models.VerdictRemove)
	}

	reversed := "My first instinct was REMOVE here.\nOn reflection KEEP is more appropriate given context.\nEnd of analysis."
	if got := Parse(reversed); got != models.VerdictKeep {
		t.Errorf("Parse = %v, want %v", got, models.VerdictKeep)
	}
}

func TestParseModalPhrases(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.Verdict
	}{
		{"take down", "Best course of action is to take down this content.", models.VerdictRemove},
		{"get rid of", "The mods ought to get rid of it.", models.VerdictRemove},
		{"can stay", "Harmless joke, it can stay.", models.VerdictKeep},
		{"leave it", "Nothing actionable, just leave it.", models.VerdictKeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.response); got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestParseUnknown(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"I am unable to judge this comment.",
		"The content is ambiguous and needs human review.",
	}

	for _, response := range tests {
		if got := Parse(response); got != models.VerdictUnknown {
			t.Errorf("Parse(%q) = %v, want %v", response, got, models.VerdictUnknown)
		}
	}
}

func TestParseDoesNotMatchSubstrings(t *testing.T) {
	// "keeper" is an accepted conjugation but "blocky" and "bandit" must
	// not trigger the ban/block families.
	if got := Parse("The user is a bit of a bandit with blocky prose."); got != models.VerdictUnknown {
		t.Errorf("Parse = %v, want %v", got, models.VerdictUnknown)
	}
}
