package miners

import (
	"regexp"
	"strings"

	"github.com/ternarybob/prospector/internal/models"
)

// labeledFieldPattern matches "Label: value" lines in extracted text
var labeledFieldPattern = regexp.MustCompile(`(?i)^\s*(company|firma|firm|name|contact|title|position|e-?mail|mail|phone|tel|telephone|website|web|country|city|address)\s*[:=]\s*(.+)$`)

// ParseLabeledText builds cards from label-value text blocks, the shape
// produced by contact sheets and form exports. A new block starts at
// each company or name label that follows an email-bearing block.
func ParseLabeledText(text string) []models.Card {
	var cards []models.Card
	current := models.Card{}

	flush := func() {
		if len(current.Emails) > 0 || current.HasIdentity() {
			if len(current.Emails) > 0 {
				cards = append(cards, current)
			}
		}
		current = models.Card{}
	}

	for _, line := range strings.Split(text, "\n") {
		m := labeledFieldPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.ToLower(strings.ReplaceAll(m[1], "-", ""))
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}

		switch label {
		case "company", "firma", "firm":
			if current.CompanyName != "" || len(current.Emails) > 0 {
				flush()
			}
			current.CompanyName = value
		case "name", "contact":
			if current.ContactName != "" && len(current.Emails) > 0 {
				flush()
			}
			current.ContactName = value
		case "title", "position":
			current.JobTitle = value
		case "email", "mail":
			current.Emails = append(current.Emails, ExtractEmails(value)...)
		case "phone", "tel", "telephone":
			current.Phone = CleanPhone(value)
		case "website", "web":
			if !IsBlacklistedWebsite(value) {
				current.Website = value
			}
		case "country":
			current.Country = value
		case "city":
			current.City = value
		case "address":
			current.Address = value
		}
	}
	flush()

	for i := range cards {
		cards[i].Emails = dedupEmails(cards[i].Emails)
		if cards[i].Website == "" {
			cards[i].Website = GuessWebsiteFromEmail(cards[i].Emails)
		}
	}
	return cards
}
