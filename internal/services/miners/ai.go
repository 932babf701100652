package miners

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
)

// maxPromptChars caps the page content sent to the model
const maxPromptChars = 60_000

const aiSystemPrompt = `You extract business contact information from web page content.
Return ONLY a JSON array. Each element:
{"company_name":"","contact_name":"","job_title":"","email":"","phone":"","website":"","country":"","city":"","address":""}
Rules:
- Include an element only when it has an email address.
- Use empty strings for unknown fields, never null.
- Do not invent data; extract only what the content states.
- Return [] when the content has no contacts.`

// AIMiner converts the page to markdown and asks the model for contact
// cards. It is the default strategy for pages no cheaper miner fits.
type AIMiner struct {
	fetcher   *fetch.Client
	llm       interfaces.LLMService
	converter *md.Converter
	logger    arbor.ILogger
}

// NewAIMiner creates the AI miner
func NewAIMiner(fetcher *fetch.Client, llm interfaces.LLMService, logger arbor.ILogger) *AIMiner {
	converter := md.NewConverter("", true, nil)
	return &AIMiner{fetcher: fetcher, llm: llm, converter: converter, logger: logger}
}

// Name identifies the miner
func (m *AIMiner) Name() models.MinerName { return models.MinerAI }

// Mine fetches the page, shapes it for the model, and parses the reply
func (m *AIMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	if m.llm == nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = "no llm provider configured"
		return result, nil
	}

	page, err := m.fetcher.Fetch(ctx, job.Input)
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}
	result.HTTPCode = page.HTTPCode
	if page.HTTPCode == 401 || page.HTTPCode == 403 || page.HTTPCode == 429 {
		result.Status = interfaces.MineStatusBlocked
		result.Meta.Notes = "blocked by http status"
		return result, nil
	}
	if page.HTTPCode >= 400 {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = fmt.Sprintf("http status %d", page.HTTPCode)
		return result, nil
	}

	content := m.shapeContent(page.HTML)
	if strings.TrimSpace(content) == "" {
		result.Meta.Notes = "page had no textual content"
		return result, nil
	}

	reply, err := m.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: aiSystemPrompt},
		{Role: "user", Content: "Extract the contacts from this page (" + job.Input + "):\n\n" + content},
	})
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}

	cards, err := parseAICards(reply, job.Input)
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = fmt.Sprintf("unparseable model reply: %v", err)
		return result, nil
	}

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
		Str("provider", m.llm.Provider()).
		Int("cards", len(cards)).
		Str("status", string(result.Status)).
		Msg("AI mining complete")

	return result, nil
}

// shapeContent converts HTML to markdown, which strips boilerplate and
// shrinks the prompt, falling back to raw HTML on conversion failure
func (m *AIMiner) shapeContent(html string) string {
	content, err := m.converter.ConvertString(html)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Markdown conversion failed, sending raw HTML")
		content = html
	}
	if len(content) > maxPromptChars {
		content = content[:maxPromptChars]
	}
	return content
}

// aiCard mirrors the JSON shape the prompt demands
type aiCard struct {
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	JobTitle    string `json:"job_title"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Address     string `json:"address"`
}

// parseAICards tolerates markdown code fences and leading prose around
// the JSON array
func parseAICards(reply, sourceURL string) ([]models.Card, error) {
	body := strings.TrimSpace(reply)
	if idx := strings.Index(body, "["); idx >= 0 {
		if end := strings.LastIndex(body, "]"); end > idx {
			body = body[idx : end+1]
		}
	}

	var raw []aiCard
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}

	var cards []models.Card
	for _, r := range raw {
		emails := ExtractEmails(r.Email)
		if len(emails) == 0 {
			continue
		}
		website := r.Website
		if website == "" || IsBlacklistedWebsite(website) {
			website = GuessWebsiteFromEmail(emails)
		}
		cards = append(cards, models.Card{
			CompanyName: strings.TrimSpace(r.CompanyName),
			ContactName: strings.TrimSpace(r.ContactName),
			JobTitle:    strings.TrimSpace(r.JobTitle),
			Emails:      emails,
			Phone:       CleanPhone(r.Phone),
			Website:     website,
			Country:     strings.TrimSpace(r.Country),
			City:        strings.TrimSpace(r.City),
			Address:     strings.TrimSpace(r.Address),
			SourceURL:   sourceURL,
		})
	}
	return cards, nil
}

var _ interfaces.Miner = (*AIMiner)(nil)
