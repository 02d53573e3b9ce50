// Package model contains domain models passed between layers.
package model

import (
	"fmt"
)

// RatedItem is one unit of work: a document reference, the difficulty to
// analyze and the externally assigned rating. Items are immutable once loaded.
type RatedItem struct {
	Reference       string  `json:"download"`
	DifficultyLabel string  `json:"difficulty"`
	Rating          float64 `json:"rating"`
}

// Tier is a difficulty rank.
type Tier int

// Known tiers in ascending order.
const (
	TierEasy Tier = iota + 1
	TierNormal
	TierHard
	TierExpert
	TierExpertPlus
)

var tierNames = map[Tier]string{
	TierEasy:       "Easy",
	TierNormal:     "Normal",
	TierHard:       "Hard",
	TierExpert:     "Expert",
	TierExpertPlus: "ExpertPlus",
}

// Tiers lists every known tier in ascending order.
func Tiers() []Tier {
	return []Tier{TierEasy, TierNormal, TierHard, TierExpert, TierExpertPlus}
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseTier maps a difficulty label onto a tier. Labels are case-sensitive
// and must match the names used in map archives exactly.
func ParseTier(label string) (Tier, error) {
	for t, name := range tierNames {
		if name == label {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDifficulty, label)
}
