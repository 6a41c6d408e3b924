package user

import "time"

// Profile captures the personality survey scores used to personalize replies.
// Seclusion is scored out of 40; the remaining traits out of 4.
type Profile struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BirthDate        time.Time `json:"birthDate,omitempty"`
	SeclusionScore   int       `json:"seclusionScore"`
	OpennessScore    int       `json:"opennessScore"`
	SociabilityScore int       `json:"sociabilityScore"`
	RoutineScore     int       `json:"routineScore"`
	QuietnessScore   int       `json:"quietnessScore"`
	ExpressionScore  int       `json:"expressionScore"`
}

// Age derives the user's age in whole years at the given moment.
// Returns -1 when the birth date is unknown.
func (p Profile) Age(now time.Time) int {
	if p.BirthDate.IsZero() {
		return -1
	}
	age := now.Year() - p.BirthDate.Year()
	if now.YearDay() < p.BirthDate.YearDay() {
		age--
	}
	if age < 0 {
		return -1
	}
	return age
}
