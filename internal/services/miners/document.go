package miners

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
)

// maxDocumentBytes caps direct PDF downloads
const maxDocumentBytes = 50 * 1024 * 1024

// DocumentMiner handles document-viewer pages and direct PDF URLs.
// PDFs are downloaded and delegated to the file extractor; viewer pages
// are tried in order: SEO text layer, JSON text API, embedded body text.
type DocumentMiner struct {
	fetcher   *fetch.Client
	extractor interfaces.FileExtractor
	logger    arbor.ILogger
}

// NewDocumentMiner creates the document miner
func NewDocumentMiner(fetcher *fetch.Client, extractor interfaces.FileExtractor, logger arbor.ILogger) *DocumentMiner {
	return &DocumentMiner{fetcher: fetcher, extractor: extractor, logger: logger}
}

// Name identifies the miner
func (m *DocumentMiner) Name() models.MinerName { return models.MinerDocument }

// Mine extracts contacts from a document URL or viewer page
func (m *DocumentMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	if IsPDFURL(job.Input) {
		return m.minePDF(ctx, job, result)
	}
	return m.mineViewer(ctx, job, result)
}

// IsPDFURL reports whether a URL's path ends in .pdf
func IsPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func (m *DocumentMiner) minePDF(ctx context.Context, job *models.Job, result *interfaces.MineResult) (*interfaces.MineResult, error) {
	data, code, err := m.fetcher.Download(ctx, job.Input, maxDocumentBytes)
	result.HTTPCode = code
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}
	if code >= 400 {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = fmt.Sprintf("pdf download http %d", code)
		return result, nil
	}

	extracted, err := m.extractor.Extract(models.JobTypePDF, data)
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}
	m.fillFromText(result, extracted.Text, extracted.Cards, job.Input)
	result.Meta.Notes = "pdf method " + extracted.Method
	return result, nil
}

var (
	// seoTextLinePattern matches the viewer's per-page SEO text layer lines
	seoTextLinePattern = regexp.MustCompile(`(?m)^\s*P:\d+\s*(.*)$`)

	// textAPIPattern finds the viewer's text endpoint in page source
	textAPIPattern = regexp.MustCompile(`["']([^"']*(?:/api/text|textlayer\.json)[^"']*)["']`)
)

func (m *DocumentMiner) mineViewer(ctx context.Context, job *models.Job, result *interfaces.MineResult) (*interfaces.MineResult, error) {
	page, err := m.fetcher.Fetch(ctx, job.Input)
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}
	result.HTTPCode = page.HTTPCode
	if page.HTTPCode >= 400 {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = fmt.Sprintf("viewer http %d", page.HTTPCode)
		return result, nil
	}

	// 1. SEO text layer embedded in the page
	if text := seoLayerText(page.HTML); text != "" {
		m.fillFromText(result, text, nil, job.Input)
		if result.Status == interfaces.MineStatusSuccess {
			result.Meta.Notes = "seo text layer"
			return result, nil
		}
	}

	// 2. The viewer's JSON text API
	if text := m.fetchTextAPI(ctx, job.Input, page.HTML); text != "" {
		m.fillFromText(result, text, nil, job.Input)
		if result.Status == interfaces.MineStatusSuccess {
			result.Meta.Notes = "json text api"
			return result, nil
		}
	}

	// 3. Whatever text the body carries
	m.fillFromText(result, page.HTML, nil, job.Input)
	if result.Status == interfaces.MineStatusSuccess {
		result.Meta.Notes = "embedded body text"
	}
	return result, nil
}

func seoLayerText(html string) string {
	matches := seoTextLinePattern.FindAllStringSubmatch(html, -1)
	if len(matches) < 3 {
		return ""
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, m[1])
	}
	return strings.Join(lines, "\n")
}

// fetchTextAPI looks for a text-API endpoint referenced by the viewer
// and concatenates its page payloads
func (m *DocumentMiner) fetchTextAPI(ctx context.Context, pageURL, html string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	match := textAPIPattern.FindStringSubmatch(html)
	if len(match) != 2 {
		return ""
	}
	endpoint := match[1]
	resolved, err := base.Parse(endpoint)
	if err != nil {
		return ""
	}

	resp, err := m.fetcher.Fetch(ctx, resolved.String())
	if err != nil || resp.HTTPCode >= 400 {
		return ""
	}

	// Accept either a plain string array or {pages:[{text}...]}
	var asStrings []string
	if err := json.Unmarshal([]byte(resp.HTML), &asStrings); err == nil {
		return strings.Join(asStrings, "\n")
	}
	var asPages struct {
		Pages []struct {
			Text string `json:"text"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(resp.HTML), &asPages); err == nil {
		lines := make([]string, 0, len(asPages.Pages))
		for _, p := range asPages.Pages {
			lines = append(lines, p.Text)
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

func (m *DocumentMiner) fillFromText(result *interfaces.MineResult, text string, cards []models.Card, sourceURL string) {
	emails := ExtractEmails(text)
	result.Emails = dedupEmails(append(result.Emails, emails...))

	if len(cards) > 0 {
		for i := range cards {
			if cards[i].SourceURL == "" {
				cards[i].SourceURL = sourceURL
			}
		}
		result.Contacts = cards
	} else {
		for _, email := range emails {
			result.Contacts = append(result.Contacts, models.Card{
				Emails:    []string{email},
				Website:   GuessWebsiteFromEmail([]string{email}),
				SourceURL: sourceURL,
			})
		}
	}
	if len(result.Emails) > 0 || len(result.Contacts) > 0 {
		result.Status = interfaces.MineStatusSuccess
	}
}

var _ interfaces.Miner = (*DocumentMiner)(nil)
