package miners

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
)

// TableMiner extracts contacts from HTML tables: map header cells to
// semantic fields, walk the data rows, dedup by email.
type TableMiner struct {
	fetcher *fetch.Client
	logger  arbor.ILogger
}

// NewTableMiner creates the table miner
func NewTableMiner(fetcher *fetch.Client, logger arbor.ILogger) *TableMiner {
	return &TableMiner{fetcher: fetcher, logger: logger}
}

// Name identifies the miner
func (m *TableMiner) Name() models.MinerName { return models.MinerTable }

// Mine fetches the page and parses every table on it
func (m *TableMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	page, err := m.fetcher.Fetch(ctx, job.Input)
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}
	result.HTTPCode = page.HTTPCode
	if page.HTTPCode >= 400 {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = "http status fetch failed"
		return result, nil
	}

	cards := MineTables(page.HTML, job.Input)
	result.Contacts = cards
	for _, card := range cards {
		result.Emails = append(result.Emails, card.Emails...)
	}
	result.Emails = dedupEmails(result.Emails)
	if len(cards) > 0 {
		result.Status = interfaces.MineStatusSuccess
	}

	m.logger.Info().
		Str("url", job.Input).
		Int("cards", len(cards)).
		Str("status", string(result.Status)).
		Msg("Table mining complete")

	return result, nil
}

// tableHeaderFields maps header keywords to card fields, source-type
// columns first so "Lead Source" never binds as a name column
var tableHeaderFields = []struct {
	field    string
	keywords []string
}{
	{"source", []string{"source", "kaynak"}},
	{"email", []string{"email", "e-mail", "mail"}},
	{"company", []string{"company", "firm", "firma", "exhibitor", "organization"}},
	{"phone", []string{"phone", "tel", "mobile"}},
	{"country", []string{"country", "ülke"}},
	{"city", []string{"city", "şehir", "town"}},
	{"website", []string{"website", "web", "url"}},
	{"title", []string{"title", "position", "role"}},
	{"name", []string{"name", "contact", "person"}},
}

// MineTables parses all tables in the HTML into deduplicated cards.
// Exported for the file-extraction path, which feeds it cached HTML.
func MineTables(html, sourceURL string) []models.Card {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var cards []models.Card
	seen := make(map[string]bool)

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		colMap := mapTableHeader(rows.First())
		rows.Each(func(i int, row *goquery.Selection) {
			if i == 0 && len(colMap) > 0 {
				return
			}
			card := cardFromTableRow(row, colMap)
			if card == nil {
				return
			}
			email := card.PrimaryEmail()
			if seen[email] {
				return
			}
			seen[email] = true
			card.SourceURL = sourceURL
			cards = append(cards, *card)
		})
	})
	return cards
}

func mapTableHeader(header *goquery.Selection) map[int]string {
	cells := header.Find("th")
	if cells.Length() == 0 {
		cells = header.Find("td")
	}

	colMap := make(map[int]string)
	bound := make(map[string]bool)
	for _, entry := range tableHeaderFields {
		cells.Each(func(col int, cell *goquery.Selection) {
			if _, taken := colMap[col]; taken || bound[entry.field] {
				return
			}
			text := strings.ToLower(strings.TrimSpace(cell.Text()))
			for _, kw := range entry.keywords {
				if strings.Contains(text, kw) {
					colMap[col] = entry.field
					bound[entry.field] = true
					return
				}
			}
		})
	}
	return colMap
}

func cardFromTableRow(row *goquery.Selection, colMap map[int]string) *models.Card {
	cells := row.Find("td")
	if cells.Length() == 0 {
		return nil
	}

	card := models.Card{}
	cells.Each(func(col int, cell *goquery.Selection) {
		text := strings.TrimSpace(cell.Text())
		if text == "" {
			return
		}
		switch colMap[col] {
		case "email":
			card.Emails = ExtractEmails(text)
		case "company":
			card.CompanyName = text
		case "name":
			card.ContactName = text
		case "title":
			card.JobTitle = text
		case "phone":
			card.Phone = CleanPhone(text)
		case "country":
			card.Country = text
		case "city":
			card.City = text
		case "website":
			if !IsBlacklistedWebsite(text) {
				card.Website = text
			}
		}
	})

	if len(card.Emails) == 0 {
		// No mapped email column or it was empty: scan the whole row
		card.Emails = ExtractEmails(row.Text())
	}
	if len(card.Emails) == 0 {
		return nil
	}
	if card.Website == "" {
		card.Website = GuessWebsiteFromEmail(card.Emails)
	}
	return &card
}

var _ interfaces.Miner = (*TableMiner)(nil)
