package extract

import (
	"regexp"
	"strings"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/miners"
)

// rowMarkerPattern starts a directory entry: a row index of up to three
// digits, a short run of spaces, then a capitalized company column.
var rowMarkerPattern = regexp.MustCompile(`^\s{0,5}(\d{1,3})\s{1,4}([A-Z].*)`)

// columnGapPattern separates the company column from the rest of the row
var columnGapPattern = regexp.MustCompile(`\s{3,}`)

// countryLexicon maps directory location words to display names. Kept
// deliberately small; the aggregation pass does the full normalization.
var countryLexicon = map[string]string{
	"germany": "Germany", "deutschland": "Germany",
	"turkey": "Turkey", "türkiye": "Turkey", "turkiye": "Turkey",
	"italy": "Italy", "italia": "Italy",
	"france": "France",
	"spain":  "Spain", "españa": "Spain",
	"china": "China", "p.r. china": "China",
	"india": "India",
	"usa":   "USA", "united states": "USA",
	"uk": "UK", "united kingdom": "UK", "england": "UK",
	"netherlands": "Netherlands", "holland": "Netherlands",
	"poland": "Poland", "austria": "Austria", "switzerland": "Switzerland",
	"belgium": "Belgium", "sweden": "Sweden", "denmark": "Denmark",
	"russia": "Russia", "japan": "Japan", "south korea": "South Korea",
	"korea": "South Korea", "taiwan": "Taiwan", "brazil": "Brazil",
	"uae": "UAE", "united arab emirates": "UAE", "dubai": "UAE",
	"egypt": "Egypt", "iran": "Iran", "greece": "Greece",
	"portugal": "Portugal", "czech republic": "Czech Republic",
	"hungary": "Hungary", "romania": "Romania", "bulgaria": "Bulgaria",
	"ukraine": "Ukraine", "israel": "Israel", "canada": "Canada",
	"mexico": "Mexico", "australia": "Australia",
}

// entryBlock accumulates the lines belonging to one numbered row
type entryBlock struct {
	company string
	lines   []string
}

// ParseColumnarDirectory turns numbered-row directory text into contact
// cards. Rows open on the row-marker pattern; everything until the next
// marker belongs to the same entry. The company name comes from the left
// column with at most one continuation line; emails and country come
// from anywhere in the block.
func ParseColumnarDirectory(text string) []models.Card {
	var blocks []entryBlock
	var current *entryBlock

	for _, line := range strings.Split(text, "\n") {
		if m := rowMarkerPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &entryBlock{
				company: strings.TrimSpace(columnGapPattern.Split(m[2], 2)[0]),
				lines:   []string{line},
			}
			continue
		}
		if current == nil {
			continue
		}
		current.lines = append(current.lines, line)

		// One continuation line may extend a company name that wrapped:
		// alphabetic left column with no email, digits, or location text.
		if len(current.lines) == 2 {
			cont := columnGapPattern.Split(strings.TrimSpace(line), 2)[0]
			if isCompanyContinuation(cont) {
				current.company = current.company + " " + cont
			}
		}
	}
	if current != nil {
		blocks = append(blocks, *current)
	}

	var cards []models.Card
	for _, block := range blocks {
		blockText := strings.Join(block.lines, "\n")
		emails := miners.ExtractEmails(blockText)
		if len(emails) == 0 {
			continue
		}
		cards = append(cards, models.Card{
			CompanyName: block.company,
			Emails:      emails,
			Country:     detectCountry(blockText),
		})
	}
	return cards
}

func isCompanyContinuation(s string) bool {
	if s == "" || len(s) > 60 || strings.Contains(s, "@") {
		return false
	}
	// City/country lines ("Hamburg, Germany") are location data, not a
	// wrapped company name
	if strings.Contains(s, ",") || detectCountry(s) != "" {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return false
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLetter = true
		}
	}
	return hasLetter
}

func detectCountry(text string) string {
	lower := strings.ToLower(text)
	for word, name := range countryLexicon {
		if containsWord(lower, word) {
			return name
		}
	}
	return ""
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
