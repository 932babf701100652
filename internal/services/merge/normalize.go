// Package merge normalizes miner cards to canonical shape, merges them
// across miners and pages, and scores confidence.
package merge

import (
	"strings"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/miners"
)

// Normalize rewrites a card in place to canonical shape: lower-cased
// deduplicated emails with a single primary, trimmed and collapsed
// whitespace, pipe-garbage split, and blacklisted websites dropped.
func Normalize(card *models.Card) {
	var emails []string
	seen := make(map[string]bool)
	for _, email := range card.Emails {
		for _, e := range miners.ExtractEmails(email) {
			if !seen[e] {
				seen[e] = true
				emails = append(emails, e)
			}
		}
	}
	card.Emails = emails

	card.CompanyName = firstPlausibleSegment(collapse(card.CompanyName))
	card.ContactName = firstPlausibleSegment(collapse(card.ContactName))
	card.JobTitle = collapse(card.JobTitle)
	card.Phone = miners.CleanPhone(card.Phone)
	card.Country = collapse(card.Country)
	card.City = collapse(card.City)
	card.Address = collapse(card.Address)

	card.Website = strings.TrimSpace(card.Website)
	if card.Website != "" && miners.IsBlacklistedWebsite(card.Website) {
		card.Website = ""
	}
	if card.Website == "" {
		card.Website = miners.GuessWebsiteFromEmail(card.Emails)
	}
}

// collapse trims and squeezes internal whitespace runs
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// noValueMarkers are segment texts that mean "field absent"
var noValueMarkers = map[string]bool{
	"no company": true, "n/a": true, "na": true, "none": true,
	"unknown": true, "-": true, "null": true, "no name": true,
}

// firstPlausibleSegment splits pipe-separated garbage like
// "ACME GMBH | No company | info@acme.de" and keeps the first segment
// that is not an email and not a no-value marker
func firstPlausibleSegment(s string) string {
	if !strings.Contains(s, "|") {
		return s
	}
	for _, segment := range strings.Split(s, "|") {
		segment = strings.TrimSpace(segment)
		if segment == "" || strings.Contains(segment, "@") {
			continue
		}
		if noValueMarkers[strings.ToLower(segment)] {
			continue
		}
		return segment
	}
	return ""
}
