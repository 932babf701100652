// Package miners implements the tiered extraction strategies behind the
// orchestrator: plain HTTP, HTML tables, browser automation, directory
// card parsing, documents, uploaded files, and the AI fallback.
package miners

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
)

// maxDetailFollows caps the same-host detail URLs the basic miner visits
const maxDetailFollows = 40

// HTTPBasicMiner is the cheapest strategy: GET the page, regex emails
// out of the body and href attributes, follow a short whitelist of
// same-host detail-looking links, aggregate.
type HTTPBasicMiner struct {
	fetcher *fetch.Client
	logger  arbor.ILogger
}

// NewHTTPBasicMiner creates the basic HTTP miner
func NewHTTPBasicMiner(fetcher *fetch.Client, logger arbor.ILogger) *HTTPBasicMiner {
	return &HTTPBasicMiner{fetcher: fetcher, logger: logger}
}

// Name identifies the miner
func (m *HTTPBasicMiner) Name() models.MinerName { return models.MinerHTTPBasic }

// Mine fetches the job URL and harvests emails from it and its detail pages
func (m *HTTPBasicMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
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

	if page.HTTPCode == 401 || page.HTTPCode == 403 || page.HTTPCode == 429 {
		result.Status = interfaces.MineStatusBlocked
		result.Meta.Notes = "blocked by http status"
		return result, nil
	}
	if page.HTTPCode >= 400 {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = "http status " + strconv.Itoa(page.HTTPCode)
		return result, nil
	}

	emails := harvestEmails(page.HTML)
	detailLinks := m.collectDetailLinks(page.HTML, job.Input, job.Config.DetailURLPattern)
	result.ExtractedLinks = detailLinks

	for _, link := range detailLinks {
		if ctx.Err() != nil {
			break
		}
		detail, err := m.fetcher.Fetch(ctx, link)
		if err != nil || detail.HTTPCode >= 400 {
			continue
		}
		emails = append(emails, harvestEmails(detail.HTML)...)
	}

	result.Emails = dedupEmails(emails)
	if len(result.Emails) > 0 {
		result.Status = interfaces.MineStatusSuccess
		for _, email := range result.Emails {
			result.Contacts = append(result.Contacts, models.Card{
				Emails:    []string{email},
				Website:   GuessWebsiteFromEmail([]string{email}),
				SourceURL: job.Input,
			})
		}
	}

	m.logger.Info().
		Str("url", job.Input).
		Int("emails", len(result.Emails)).
		Int("detail_pages", len(detailLinks)).
		Str("status", string(result.Status)).
		Msg("HTTP basic mining complete")

	return result, nil
}

// harvestEmails scans body text plus mailto and plain href attributes
func harvestEmails(html string) []string {
	emails := ExtractEmails(html)

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if strings.HasPrefix(strings.ToLower(href), "mailto:") {
				addr := strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0]
				if decoded, err := url.QueryUnescape(addr); err == nil {
					addr = decoded
				}
				emails = append(emails, ExtractEmails(addr)...)
			}
		})
	}
	return emails
}

func (m *HTTPBasicMiner) collectDetailLinks(html, baseURL, pattern string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := resolved.String()
		if seen[abs] || !MatchesDetailLink(abs, baseURL, pattern) {
			return true
		}
		seen[abs] = true
		links = append(links, abs)
		return len(links) < maxDetailFollows
	})
	return links
}

func dedupEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	var out []string
	for _, e := range emails {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

var _ interfaces.Miner = (*HTTPBasicMiner)(nil)
