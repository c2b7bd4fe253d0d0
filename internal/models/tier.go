package models

import "fmt"

type Tier string

const (
	TierIron        Tier = "Iron"
	TierMaster      Tier = "Master"
	TierGrandmaster Tier = "Grandmaster"
	TierChallenger  Tier = "Challenger"
)

var majorTiers = []string{"Bronze", "Silver", "Gold", "Platinum", "Diamond"}

var divisions = []string{"V", "IV", "III", "II", "I"}

// TierForScore derives the named rank from a cumulative score.
//
// Bands: below 300 is Iron; [300,2799] spans Bronze..Diamond, each major tier
// covering 500 points split into five 100-point divisions V..I; [2800,2999]
// Master; [3000,3199] Grandmaster; 3200 and above Challenger.
func TierForScore(score int) Tier {
	switch {
	case score < 300:
		return TierIron
	case score <= 2799:
		major := (score - 300) / 500
		division := ((score - 300) % 500) / 100
		return Tier(fmt.Sprintf("%s %s", majorTiers[major], divisions[division]))
	case score <= 2999:
		return TierMaster
	case score <= 3199:
		return TierGrandmaster
	default:
		return TierChallenger
	}
}
