// Package challenge holds the challenge, join, and created-challenge models
// tracked by the ledger service.
package challenge

import "time"

// Durations accepted for a new challenge.
const (
	Duration24h   = "24h"
	Duration3Days = "3days"
	Duration7Days = "7days"
)

// ValidDuration reports whether d is one of the accepted duration options.
func ValidDuration(d string) bool {
	switch d {
	case Duration24h, Duration3Days, Duration7Days:
		return true
	}
	return false
}

// Challenge is a joinable challenge as presented to the user. Amounts are in
// lamports.
type Challenge struct {
	ID                string    `json:"id"`
	Emoji             string    `json:"emoji,omitempty"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StakeLamports     uint64    `json:"stakeLamports"`
	PrizePoolLamports uint64    `json:"prizePoolLamports"`
	Participants      int       `json:"participants"`
	Deadline          time.Time `json:"deadline"`
}

// Ended reports whether the challenge deadline has passed.
func (c Challenge) Ended(now time.Time) bool {
	return !c.Deadline.IsZero() && !now.Before(c.Deadline)
}

// JoinRecord marks a confirmed stake into a challenge. Records are unique
// per challenge id and never mutated; only an explicit leave removes one.
type JoinRecord struct {
	ChallengeID string    `json:"challengeId"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// CreatedChallenge is a user-created challenge funded by a confirmed
// prize-pool transfer.
type CreatedChallenge struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StakeLamports     uint64    `json:"stakeLamports"`
	PrizePoolLamports uint64    `json:"prizePoolLamports"`
	MaxParticipants   int       `json:"maxParticipants"`
	Duration          string    `json:"duration"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Draft is the user input for a new challenge, prior to validation and
// prize-pool funding.
type Draft struct {
	Title           string
	Description     string
	StakeLamports   uint64
	PrizeLamports   uint64
	MaxParticipants int
	Duration        string
}
