package store

import (
	"time"

	"github.com/pairing-buds/companion/internal/model/user"
)

// SeedProfiles returns the development profiles used when no profile database
// is configured.
func SeedProfiles() []user.Profile {
	return []user.Profile{
		{
			ID:               "demo-junho",
			Name:             "준호",
			BirthDate:        time.Date(1999, 3, 14, 0, 0, 0, 0, time.UTC),
			SeclusionScore:   34,
			OpennessScore:    2,
			SociabilityScore: 1,
			RoutineScore:     3,
			QuietnessScore:   4,
			ExpressionScore:  1,
		},
		{
			ID:               "demo-jisu",
			Name:             "지수",
			BirthDate:        time.Date(2002, 11, 2, 0, 0, 0, 0, time.UTC),
			SeclusionScore:   21,
			OpennessScore:    3,
			SociabilityScore: 2,
			RoutineScore:     2,
			QuietnessScore:   2,
			ExpressionScore:  3,
		},
	}
}
