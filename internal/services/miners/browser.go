package miners

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// BrowserMiner drives a headless browser through the list page and its
// detail pages. It is the fallback for dynamic sites and blocked HTTP
// fetches, and the only miner that can trigger lazy loading.
//
// Every page visit runs the block heuristics; a hit aborts the whole run
// with ErrBlockDetected so the orchestrator can mark the job blocked.
type BrowserMiner struct {
	config common.CrawlerConfig
	miner  common.MinerConfig
	logger arbor.ILogger
}

// NewBrowserMiner creates the browser miner
func NewBrowserMiner(config common.CrawlerConfig, miner common.MinerConfig, logger arbor.ILogger) *BrowserMiner {
	return &BrowserMiner{config: config, miner: miner, logger: logger}
}

// Name identifies the miner
func (m *BrowserMiner) Name() models.MinerName { return models.MinerBrowser }

// Mine renders the list page, collects detail links, and visits each one
func (m *BrowserMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	browserCtx, cleanup := m.newBrowserContext(ctx)
	defer cleanup()

	listHTML, err := m.renderPage(browserCtx, job.Input)
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}
	if looksBlocked(listHTML) {
		result.Status = interfaces.MineStatusBlocked
		result.Meta.Notes = "block heuristics hit on list page"
		return result, interfaces.ErrBlockDetected
	}

	detailLinks := collectBrowserDetailLinks(listHTML, job.Input, job.Config.DetailURLPattern, m.maxDetails(job))
	result.ExtractedLinks = detailLinks

	// Emails visible on the list page itself count even without details
	listEmails := harvestEmails(listHTML)

	var cards []models.Card
	delay := job.Config.DetailDelay(time.Second)
	for _, link := range detailLinks {
		if ctx.Err() != nil {
			break
		}
		detailHTML, err := m.renderPage(browserCtx, link)
		if err != nil {
			m.logger.Debug().Err(err).Str("url", link).Msg("Detail render failed")
			continue
		}
		if looksBlocked(detailHTML) {
			result.Status = interfaces.MineStatusBlocked
			result.Meta.Notes = "block heuristics hit on detail page"
			return result, interfaces.ErrBlockDetected
		}
		if card := extractDetailCard(detailHTML, link); card != nil {
			cards = append(cards, *card)
		}

		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	for _, card := range cards {
		result.Emails = append(result.Emails, card.Emails...)
	}
	result.Emails = dedupEmails(append(result.Emails, listEmails...))
	result.Contacts = cards
	if len(cards) > 0 || len(result.Emails) > 0 {
		result.Status = interfaces.MineStatusSuccess
	}

	m.logger.Info().
		Str("url", job.Input).
		Int("detail_pages", len(detailLinks)).
		Int("cards", len(cards)).
		Int("emails", len(result.Emails)).
		Str("status", string(result.Status)).
		Msg("Browser mining complete")

	return result, nil
}

func (m *BrowserMiner) maxDetails(job *models.Job) int {
	if job.Config.MaxDetails > 0 {
		return job.Config.MaxDetails
	}
	if m.miner.MaxDetails > 0 {
		return m.miner.MaxDetails
	}
	return 200
}

// newBrowserContext builds an allocator plus browser context whose
// cleanup is safe to call on every exit path
func (m *BrowserMiner) newBrowserContext(ctx context.Context) (context.Context, func()) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(m.config.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// renderPage navigates, scrolls to trigger lazy loading, waits for the
// DOM to stabilize, and returns the rendered HTML
func (m *BrowserMiner) renderPage(browserCtx context.Context, pageURL string) (string, error) {
	timeout := m.config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	navCtx, cancel := context.WithTimeout(browserCtx, 3*timeout)
	defer cancel()

	var html string
	var lastLen, currLen int
	err := chromedp.Run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(700*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(700*time.Millisecond),
		chromedp.Evaluate(`document.documentElement.outerHTML.length`, &lastLen),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`document.documentElement.outerHTML.length`, &currLen),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// One more settle round if the DOM is still growing
			if currLen != lastLen {
				return chromedp.Sleep(time.Second).Do(ctx)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

var blockMarkers = []string{
	"cloudflare", "cf-browser-verification", "verify you are human",
	"checking your browser", "just a moment", "access denied",
	"attention required", "captcha",
}

// looksBlocked applies the rendered-page block heuristics: challenge
// markers anywhere, or a near-empty page with fewer than three anchors
func looksBlocked(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find("a").Length() < 3 && len(strings.TrimSpace(doc.Text())) < 300 {
		return true
	}
	return false
}

func collectBrowserDetailLinks(html, baseURL, pattern string, max int) []string {
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
		return len(links) < max
	})
	return links
}

var (
	phoneCandidatePattern = regexp.MustCompile(`\+?\d[\d\s().\-/]{6,18}\d`)
	companyLabelSelectors = ".company-name, .exhibitor-name, .profile-name, [itemprop='name']"
	countrySelectors      = ".country, [itemprop='addressCountry'], .address-country"
)

// extractDetailCard pulls one contact card out of a rendered detail page
func extractDetailCard(html, pageURL string) *models.Card {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	card := models.Card{SourceURL: pageURL}
	card.Emails = harvestEmails(html)

	// Company: h1 first, labeled classes second
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" && len(h1) < 150 {
		card.CompanyName = h1
	} else if labeled := strings.TrimSpace(doc.Find(companyLabelSelectors).First().Text()); labeled != "" {
		card.CompanyName = labeled
	}

	card.Website = extractWebsite(doc, pageURL, card.Emails)
	card.Phone = extractPhone(doc, html)

	if country := strings.TrimSpace(doc.Find(countrySelectors).First().Text()); country != "" && len(country) < 60 {
		card.Country = country
	}

	if len(card.Emails) == 0 && !card.HasIdentity() {
		return nil
	}
	return &card
}

// extractWebsite prefers explicit external links near website labels,
// then rel=external/nofollow anchors, then the email-domain guess
func extractWebsite(doc *goquery.Document, pageURL string, emails []string) string {
	pageHost := hostOf(pageURL)

	candidate := ""
	doc.Find("a[href^='http']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if hostOf(href) == pageHost || IsBlacklistedWebsite(href) {
			return true
		}
		label := strings.ToLower(sel.Text() + " " + sel.AttrOr("class", "") + " " + sel.AttrOr("rel", ""))
		if strings.Contains(label, "website") || strings.Contains(label, "homepage") ||
			strings.Contains(label, "external") || strings.Contains(label, "visit") {
			candidate = href
			return false
		}
		if candidate == "" {
			candidate = href
		}
		return true
	})
	if candidate != "" {
		return candidate
	}
	return GuessWebsiteFromEmail(emails)
}

// extractPhone runs the passes in confidence order: tel links, labeled
// text, then a bare international-format scan
func extractPhone(doc *goquery.Document, html string) string {
	phone := ""
	doc.Find("a[href^='tel:']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		phone = CleanPhone(strings.TrimPrefix(href, "tel:"))
		return phone == ""
	})
	if phone != "" {
		return phone
	}

	if m := phoneLabelPattern.FindStringIndex(html); m != nil {
		window := html[m[1]:]
		if len(window) > 40 {
			window = window[:40]
		}
		if p := phoneCandidatePattern.FindString(window); p != "" {
			if phone = CleanPhone(p); phone != "" {
				return phone
			}
		}
	}

	if p := phoneCandidatePattern.FindString(doc.Text()); p != "" {
		return CleanPhone(p)
	}
	return ""
}

var _ interfaces.Miner = (*BrowserMiner)(nil)
