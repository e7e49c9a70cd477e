package services

import "plant-photo-backend/internal/models"

// DefaultAward is the points credited for a verified plant
const DefaultAward = 50

// ScoringPolicy maps a verification outcome to points
type ScoringPolicy struct {
	Award int
}

// NewScoringPolicy returns a policy awarding award points, or DefaultAward when award <= 0
func NewScoringPolicy(award int) ScoringPolicy {
	if award <= 0 {
		award = DefaultAward
	}
	return ScoringPolicy{Award: award}
}

// Score returns the award for success and zero for everything else
func (p ScoringPolicy) Score(outcome models.VerificationStatus) int {
	if outcome == models.StatusSuccess {
		return p.Award
	}
	return 0
}
