package models

import "testing"

func TestTierForScore(t *testing.T) {
	cases := []struct {
		score int
		want  Tier
	}{
		{0, TierIron},
		{299, TierIron},
		{300, "Bronze V"},
		{399, "Bronze V"},
		{400, "Bronze IV"},
		{700, "Bronze I"},
		{799, "Bronze I"},
		{800, "Silver V"},
		{1300, "Gold V"},
		{1800, "Platinum V"},
		{2300, "Diamond V"},
		{2700, "Diamond I"},
		{2799, "Diamond I"},
		{2800, TierMaster},
		{2999, TierMaster},
		{3000, TierGrandmaster},
		{3199, TierGrandmaster},
		{3200, TierChallenger},
		{9999, TierChallenger},
	}

	for _, tc := range cases {
		if got := TierForScore(tc.score); got != tc.want {
			t.Errorf("TierForScore(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestTierForScoreDivisionBoundaries(t *testing.T) {
	// Every 100 points inside a major tier moves one division up.
	divs := []Tier{"Silver V", "Silver IV", "Silver III", "Silver II", "Silver I"}
	for i, want := range divs {
		score := 800 + i*100
		if got := TierForScore(score); got != want {
			t.Errorf("TierForScore(%d) = %q, want %q", score, got, want)
		}
	}
}
