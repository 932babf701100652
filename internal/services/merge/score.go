package merge

import (
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/miners"
)

// Score computes the 0-100 confidence for a card: base 30 for having an
// email, +15 when its prefix is not a generic mailbox, +20 for a name of
// three or more characters, +15 company, +15 phone, +5 each for country,
// website and title, +3 city, +2 address, clamped at 100.
func Score(card *models.Card) int {
	score := 0

	email := card.PrimaryEmail()
	if email != "" {
		score += 30
		if prefix := miners.EmailPrefix(email); prefix != "" && !miners.GenericEmailPrefixes[prefix] {
			score += 15
		}
	}
	if len(card.ContactName) >= 3 {
		score += 20
	}
	if card.CompanyName != "" {
		score += 15
	}
	if card.Phone != "" {
		score += 15
	}
	if card.Country != "" {
		score += 5
	}
	if card.Website != "" {
		score += 5
	}
	if card.JobTitle != "" {
		score += 5
	}
	if card.City != "" {
		score += 3
	}
	if card.Address != "" {
		score += 2
	}

	if score > 100 {
		score = 100
	}
	return score
}
