package merge

import (
	"strings"

	"github.com/ternarybob/prospector/internal/models"
)

// Accumulator merges cards across miners and pages. Cards are keyed by
// lower(email); email-less cards are kept separately when they carry at
// least a company or contact name. Merging is fill-if-missing: a field
// set by an earlier (higher-priority) miner is never overwritten.
type Accumulator struct {
	byEmail map[string]*models.Card
	order   []string
	noEmail []models.Card
}

// NewAccumulator creates an empty merge accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{byEmail: make(map[string]*models.Card)}
}

// Add normalizes and merges a batch of cards
func (a *Accumulator) Add(cards []models.Card) {
	for i := range cards {
		card := cards[i]
		Normalize(&card)

		email := strings.ToLower(card.PrimaryEmail())
		if email == "" {
			if card.HasIdentity() {
				a.noEmail = append(a.noEmail, card)
			}
			continue
		}

		existing, ok := a.byEmail[email]
		if !ok {
			copied := card
			a.byEmail[email] = &copied
			a.order = append(a.order, email)
			continue
		}
		fillMissing(existing, &card)
	}
}

// fillMissing copies incoming non-empty fields into empty slots only;
// confidence takes the max of the contributors
func fillMissing(dst, src *models.Card) {
	if dst.CompanyName == "" {
		dst.CompanyName = src.CompanyName
	}
	if dst.ContactName == "" {
		dst.ContactName = src.ContactName
	}
	if dst.JobTitle == "" {
		dst.JobTitle = src.JobTitle
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.Website == "" {
		dst.Website = src.Website
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if dst.City == "" {
		dst.City = src.City
	}
	if dst.Address == "" {
		dst.Address = src.Address
	}
	if dst.SourceURL == "" {
		dst.SourceURL = src.SourceURL
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}

	// Secondary emails append after the primary
	seen := make(map[string]bool, len(dst.Emails))
	for _, e := range dst.Emails {
		seen[e] = true
	}
	for _, e := range src.Emails {
		if !seen[e] {
			seen[e] = true
			dst.Emails = append(dst.Emails, e)
		}
	}
}

// Cards returns the merged, scored cards: email-keyed cards in first-seen
// order, then the email-less remainder
func (a *Accumulator) Cards() []models.Card {
	out := make([]models.Card, 0, len(a.order)+len(a.noEmail))
	for _, email := range a.order {
		card := *a.byEmail[email]
		card.Confidence = Score(&card)
		out = append(out, card)
	}
	for _, card := range a.noEmail {
		card.Confidence = Score(&card)
		out = append(out, card)
	}
	return out
}

// EmailCount reports how many distinct email-keyed contacts accumulated
func (a *Accumulator) EmailCount() int {
	return len(a.byEmail)
}
