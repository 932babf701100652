package extract

import (
	"strings"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/miners"
)

// Semantic fields a spreadsheet column can map to
const (
	fieldEmail   = "email"
	fieldCompany = "company"
	fieldName    = "name"
	fieldTitle   = "title"
	fieldPhone   = "phone"
	fieldCountry = "country"
	fieldCity    = "city"
	fieldWebsite = "website"
	fieldAddress = "address"
	fieldSource  = "source"
)

// headerKeywords maps semantic fields to the header words that bind a
// column to them. Order matters: "source" columns (lead source, kaynak)
// must bind before "name", or "Lead Source" would collide with the
// contact-name column via its trailing word.
var headerKeywords = []struct {
	field    string
	keywords []string
}{
	{fieldSource, []string{"source", "kaynak", "lead source"}},
	{fieldEmail, []string{"email", "e-mail", "mail"}},
	{fieldCompany, []string{"company", "firm", "firma", "organization", "organisation"}},
	{fieldPhone, []string{"phone", "tel", "mobile", "gsm"}},
	{fieldCountry, []string{"country", "ülke", "ulke"}},
	{fieldCity, []string{"city", "şehir", "sehir", "town"}},
	{fieldWebsite, []string{"website", "web", "url", "site"}},
	{fieldTitle, []string{"title", "position", "role", "job"}},
	{fieldAddress, []string{"address", "adres"}},
	{fieldName, []string{"name", "contact", "person", "isim"}},
}

// DetectHeaderRow scans the first five rows for header keywords and
// returns the header index plus the column-to-field map. A -1 index
// means no header was found.
func DetectHeaderRow(rows [][]string) (int, map[int]string) {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}

	for i := 0; i < limit; i++ {
		if colMap := mapColumns(rows[i]); len(colMap) >= 2 {
			return i, colMap
		}
	}
	return -1, nil
}

func mapColumns(header []string) map[int]string {
	colMap := make(map[int]string)
	bound := make(map[string]bool)

	for _, entry := range headerKeywords {
		for col, cell := range header {
			if _, taken := colMap[col]; taken {
				continue
			}
			if bound[entry.field] {
				break
			}
			lower := strings.ToLower(strings.TrimSpace(cell))
			for _, kw := range entry.keywords {
				if strings.Contains(lower, kw) {
					colMap[col] = entry.field
					bound[entry.field] = true
					break
				}
			}
		}
	}
	return colMap
}

// CardsFromRows builds contact cards from spreadsheet rows. With a
// detected header the column map drives field assignment; without one
// each row is scanned for an email and the remaining cells are kept as
// best-effort company and name.
func CardsFromRows(rows [][]string) []models.Card {
	headerIdx, colMap := DetectHeaderRow(rows)

	var cards []models.Card
	for i, row := range rows {
		if i <= headerIdx {
			continue
		}
		var card *models.Card
		if colMap != nil {
			card = cardFromMappedRow(row, colMap)
		} else {
			card = cardFromBareRow(row)
		}
		if card != nil {
			cards = append(cards, *card)
		}
	}
	return cards
}

func cardFromMappedRow(row []string, colMap map[int]string) *models.Card {
	card := models.Card{}
	for col, field := range colMap {
		if col >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[col])
		if value == "" {
			continue
		}
		switch field {
		case fieldEmail:
			card.Emails = miners.ExtractEmails(value)
		case fieldCompany:
			card.CompanyName = value
		case fieldName:
			card.ContactName = value
		case fieldTitle:
			card.JobTitle = value
		case fieldPhone:
			card.Phone = miners.CleanPhone(value)
		case fieldCountry:
			card.Country = value
		case fieldCity:
			card.City = value
		case fieldWebsite:
			card.Website = value
		case fieldAddress:
			card.Address = value
		}
	}

	// Mapped email column empty or missing: scan every cell
	if len(card.Emails) == 0 {
		card.Emails = miners.ExtractEmails(strings.Join(row, " "))
	}
	if len(card.Emails) == 0 {
		return nil
	}
	return &card
}

// cardFromBareRow handles headerless sheets: the email anchors the row,
// the longest non-email cell becomes the company, and a two-or-three
// word cell that is not the company becomes the contact name.
func cardFromBareRow(row []string) *models.Card {
	emails := miners.ExtractEmails(strings.Join(row, " "))
	if len(emails) == 0 {
		return nil
	}
	card := models.Card{Emails: emails}

	companyCol := -1
	for col, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" || strings.Contains(cell, "@") {
			continue
		}
		if len(cell) > len(strings.TrimSpace(card.CompanyName)) {
			card.CompanyName = cell
			companyCol = col
		}
	}
	for col, cell := range row {
		if col == companyCol {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" || strings.Contains(cell, "@") {
			continue
		}
		if words := strings.Fields(cell); len(words) == 2 || len(words) == 3 {
			card.ContactName = cell
			break
		}
	}
	return &card
}
