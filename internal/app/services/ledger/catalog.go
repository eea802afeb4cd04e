package ledger

import (
	"time"

	"github.com/solsnap/walletcore/internal/app/domain/challenge"
)

type builtin struct {
	challenge.Challenge
	hoursLeft int
}

// Catalog returns the built-in challenge set with deadlines anchored to now.
// The slice is freshly allocated per call so callers may annotate it.
func Catalog(now time.Time) []challenge.Challenge {
	out := make([]challenge.Challenge, len(builtins))
	for i, b := range builtins {
		c := b.Challenge
		c.Deadline = now.Add(time.Duration(b.hoursLeft) * time.Hour)
		out[i] = c
	}
	return out
}

// CatalogStake returns the stake amount for a built-in challenge id.
func CatalogStake(id string) (uint64, bool) {
	for _, b := range builtins {
		if b.ID == id {
			return b.StakeLamports, true
		}
	}
	return 0, false
}

var builtins = []builtin{
	{
		Challenge: challenge.Challenge{
			ID:                "1",
			Emoji:             "🌅",
			Title:             "Sunrise Snap",
			Description:       "Capture a beautiful sunrise photo before 8AM and share it with the community.",
			StakeLamports:     100_000_000,
			PrizePoolLamports: 500_000_000,
			Participants:      23,
		},
		hoursLeft: 8,
	},
	{
		Challenge: challenge.Challenge{
			ID:                "2",
			Emoji:             "🥗",
			Title:             "Healthy Meal",
			Description:       "Share your nutritious breakfast or lunch. No junk food allowed!",
			StakeLamports:     50_000_000,
			PrizePoolLamports: 800_000_000,
			Participants:      45,
		},
		hoursLeft: 12,
	},
	{
		Challenge: challenge.Challenge{
			ID:                "3",
			Emoji:             "💪",
			Title:             "Morning Workout",
			Description:       "Post evidence of your exercise routine. Gym, run, yoga, anything counts.",
			StakeLamports:     150_000_000,
			PrizePoolLamports: 300_000_000,
			Participants:      18,
		},
		hoursLeft: 10,
	},
	{
		Challenge: challenge.Challenge{
			ID:                "4",
			Emoji:             "📚",
			Title:             "Reading Hour",
			Description:       "Snap a photo of your book with a minimum 30 pages read today.",
			StakeLamports:     80_000_000,
			PrizePoolLamports: 600_000_000,
			Participants:      31,
		},
		hoursLeft: 16,
	},
	{
		Challenge: challenge.Challenge{
			ID:                "5",
			Emoji:             "🧘",
			Title:             "Meditation Moment",
			Description:       "Show us your meditation setup. 10 minutes minimum required.",
			StakeLamports:     50_000_000,
			PrizePoolLamports: 1_200_000_000,
			Participants:      52,
		},
		hoursLeft: 20,
	},
}
