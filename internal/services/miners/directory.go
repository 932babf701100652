package miners

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
	"github.com/ternarybob/prospector/internal/services/pagination"
)

// cardSelectors are the known listing-card containers tried before the
// repeated-parent fallback
var cardSelectors = []string{
	".listing", ".result", ".search-result", ".business-card", ".card",
	".company-item", ".directory-item", ".vcard", "[itemtype*='LocalBusiness']",
	"[itemtype*='Organization']", ".exhibitor-card", ".member-item",
}

// DirectoryMiner handles business-directory listings in two phases:
// find the repeated card containers on each list page, then follow each
// card's detail URL to enrich the contact. It owns its pagination.
type DirectoryMiner struct {
	fetcher   *fetch.Client
	paginator *pagination.Handler
	logger    arbor.ILogger
}

// NewDirectoryMiner creates the directory miner
func NewDirectoryMiner(fetcher *fetch.Client, paginator *pagination.Handler, logger arbor.ILogger) *DirectoryMiner {
	return &DirectoryMiner{fetcher: fetcher, paginator: paginator, logger: logger}
}

// Name identifies the miner
func (m *DirectoryMiner) Name() models.MinerName { return models.MinerDirectory }

// Mine walks the directory pages, parses cards, and enriches from details
func (m *DirectoryMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	if job.Config.Login != nil {
		if err := m.login(ctx, job.Config.Login); err != nil {
			result.Status = interfaces.MineStatusError
			result.Meta.Error = err.Error()
			return result, nil
		}
	}

	pageURLs, _, _, err := m.paginator.GeneratePageURLs(ctx, job.Input, pagination.Options{
		MaxPages:   job.Config.EffectiveMaxPages(0),
		ForceTotal: job.Config.ForcePageCount,
	})
	if err != nil {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}

	var cards []models.Card
	seenHashes := make(map[string]bool)
	emptyStreak := 0
	delay := job.Config.ListPageDelay()

	for i, pageURL := range pageURLs {
		if ctx.Err() != nil {
			break
		}
		page, err := m.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			m.logger.Debug().Err(err).Str("url", pageURL).Msg("Directory page fetch failed")
			emptyStreak++
			if emptyStreak >= 3 {
				break
			}
			continue
		}
		result.HTTPCode = page.HTTPCode

		pageCards := parseDirectoryCards(page.HTML, pageURL, job.Config.DetailURLPattern)
		if len(pageCards) == 0 {
			emptyStreak++
			if emptyStreak >= 3 {
				break
			}
			continue
		}
		emptyStreak = 0

		hash := pagination.CreateContentHash(pageCards)
		if seenHashes[hash] {
			m.logger.Debug().Str("url", pageURL).Msg("Duplicate page content, stopping pagination")
			break
		}
		seenHashes[hash] = true

		if !job.Config.SkipDetails {
			for j := range pageCards {
				if ctx.Err() != nil {
					break
				}
				m.enrichFromDetail(ctx, &pageCards[j], job.Config.DetailDelay(time.Second))
			}
		}
		cards = append(cards, pageCards...)

		if i < len(pageURLs)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
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
		Int("pages", len(pageURLs)).
		Int("cards", len(cards)).
		Str("status", string(result.Status)).
		Msg("Directory mining complete")

	return result, nil
}

// login posts the credential form and verifies the response does not
// still look like a login page
func (m *DirectoryMiner) login(ctx context.Context, cfg *models.LoginConfig) error {
	form := url.Values{}
	if cfg.Username != "" {
		form.Set("username", cfg.Username)
	}
	if cfg.Email != "" {
		form.Set("email", cfg.Email)
	}
	form.Set("password", cfg.Password)

	resp, err := m.fetcher.PostForm(ctx, cfg.LoginURL, form)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if resp.HTTPCode >= 400 {
		return fmt.Errorf("login rejected with http %d", resp.HTTPCode)
	}
	lower := strings.ToLower(resp.HTML)
	if strings.Contains(lower, "invalid password") || strings.Contains(lower, "login failed") {
		return fmt.Errorf("login rejected by site")
	}
	return nil
}

// parseDirectoryCards runs both detection phases over a list page
func parseDirectoryCards(html, pageURL, detailPattern string) []models.Card {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	containers := findCardContainers(doc)
	if containers == nil {
		containers = findRepeatedParents(doc)
	}
	if containers == nil {
		return nil
	}

	base, _ := url.Parse(pageURL)
	var cards []models.Card
	containers.Each(func(_ int, sel *goquery.Selection) {
		card := cardFromContainer(sel, base, pageURL, detailPattern)
		if card != nil {
			cards = append(cards, *card)
		}
	})
	return cards
}

// findCardContainers tries the known selector list, requiring at least
// three matches so a stray class name does not win
func findCardContainers(doc *goquery.Document) *goquery.Selection {
	for _, selector := range cardSelectors {
		if sel := doc.Find(selector); sel.Length() >= 3 {
			return sel
		}
	}
	return nil
}

// findRepeatedParents is the fallback: group elements by tag+class and
// pick the largest group whose members carry contact hints (phone or
// address text)
func findRepeatedParents(doc *goquery.Document) *goquery.Selection {
	type group struct {
		selection *goquery.Selection
		count     int
	}
	groups := make(map[string]*group)

	doc.Find("div[class], li[class], article[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		key := goquery.NodeName(sel) + "." + strings.Join(strings.Fields(class), ".")
		g, ok := groups[key]
		if !ok {
			g = &group{selection: sel}
			groups[key] = g
		} else {
			g.selection = g.selection.AddSelection(sel)
		}
		g.count++
	})

	var best *group
	for _, g := range groups {
		if g.count < 3 {
			continue
		}
		if !hasContactHints(g.selection.First()) {
			continue
		}
		if best == nil || g.count > best.count {
			best = g
		}
	}
	if best == nil {
		return nil
	}
	return best.selection
}

func hasContactHints(sel *goquery.Selection) bool {
	text := strings.ToLower(sel.Text())
	if phoneCandidatePattern.MatchString(text) {
		return true
	}
	for _, hint := range []string{"street", "road", "ave", "suite", "phone", "tel", "address", "@"} {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return sel.Find("a[href^='tel:'], a[href^='mailto:'], address").Length() > 0
}

// cardFromContainer extracts the list-page fields of one card
func cardFromContainer(sel *goquery.Selection, base *url.URL, pageURL, detailPattern string) *models.Card {
	card := models.Card{SourceURL: pageURL}

	// Name: first heading or the first anchor's text
	name := strings.TrimSpace(sel.Find("h1, h2, h3, h4, .name, .title").First().Text())
	if name == "" {
		name = strings.TrimSpace(sel.Find("a").First().Text())
	}
	if len(name) > 150 {
		name = ""
	}
	card.CompanyName = name

	card.Emails = harvestEmails(htmlOf(sel))
	card.Phone = extractPhoneFromSelection(sel)
	if addr := strings.TrimSpace(sel.Find("address, .address, [itemprop='address']").First().Text()); addr != "" && len(addr) < 250 {
		card.Address = strings.Join(strings.Fields(addr), " ")
	}

	// Detail URL: first same-host anchor matching the configured pattern
	// (or any same-host anchor without one), kept in Raw for enrichment
	if base != nil {
		detailURL := ""
		sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			resolved, err := base.Parse(strings.TrimSpace(href))
			if err != nil || !strings.EqualFold(resolved.Host, base.Host) {
				return true
			}
			if detailPattern != "" && !strings.Contains(resolved.String(), detailPattern) {
				return true
			}
			detailURL = resolved.String()
			return false
		})
		if detailURL != "" {
			raw, _ := json.Marshal(map[string]string{"detail_url": detailURL})
			card.Raw = raw
		}
	}

	if len(card.Emails) == 0 && !card.HasIdentity() {
		return nil
	}
	return &card
}

// enrichFromDetail fetches the card's detail page and fills missing
// fields from schema.org markup, JSON-LD, label-adjacent text, and the
// reversed-text obfuscation trick
func (m *DirectoryMiner) enrichFromDetail(ctx context.Context, card *models.Card, delay time.Duration) {
	detailURL := detailURLFromRaw(card.Raw)
	if detailURL == "" {
		return
	}
	if len(card.Emails) > 0 && card.Phone != "" && card.Website != "" {
		return
	}

	page, err := m.fetcher.Fetch(ctx, detailURL)
	if err != nil || page.HTTPCode >= 400 {
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return
	}

	if len(card.Emails) == 0 {
		emails := harvestEmails(page.HTML)
		if len(emails) == 0 {
			emails = reversedTextEmails(doc)
		}
		card.Emails = emails
	}
	if card.Phone == "" {
		card.Phone = extractPhone(doc, page.HTML)
	}
	if card.Website == "" {
		card.Website = extractWebsite(doc, detailURL, card.Emails)
	}
	if card.Address == "" {
		if addr := strings.TrimSpace(doc.Find("[itemprop='address'], address, .address").First().Text()); addr != "" && len(addr) < 250 {
			card.Address = strings.Join(strings.Fields(addr), " ")
		}
	}
	enrichFromJSONLD(card, doc)

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func detailURLFromRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	return m["detail_url"]
}

// jsonLDBusiness is the subset of schema.org markup the miner reads
type jsonLDBusiness struct {
	Type      string `json:"@type"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	URL       string `json:"url"`
	Address   struct {
		StreetAddress  string `json:"streetAddress"`
		Locality       string `json:"addressLocality"`
		AddressCountry string `json:"addressCountry"`
	} `json:"address"`
}

func enrichFromJSONLD(card *models.Card, doc *goquery.Document) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var business jsonLDBusiness
		if err := json.Unmarshal([]byte(sel.Text()), &business); err != nil {
			return
		}
		if card.CompanyName == "" && business.Name != "" {
			card.CompanyName = business.Name
		}
		if len(card.Emails) == 0 && business.Email != "" {
			card.Emails = ExtractEmails(business.Email)
		}
		if card.Phone == "" {
			card.Phone = CleanPhone(business.Telephone)
		}
		if card.Website == "" && business.URL != "" && !IsBlacklistedWebsite(business.URL) {
			card.Website = business.URL
		}
		if card.City == "" {
			card.City = business.Address.Locality
		}
		if card.Country == "" {
			card.Country = business.Address.AddressCountry
		}
		if card.Address == "" {
			card.Address = business.Address.StreetAddress
		}
	})
}

// reversedTextEmails checks direction:rtl elements whose source text is
// stored reversed to defeat scrapers
func reversedTextEmails(doc *goquery.Document) []string {
	var emails []string
	doc.Find("[style*='rtl'], .obfuscated, [data-email]").Each(func(_ int, sel *goquery.Selection) {
		if data, ok := sel.Attr("data-email"); ok {
			emails = append(emails, ExtractEmails(data)...)
			emails = append(emails, ExtractEmails(ReverseString(data))...)
		}
		emails = append(emails, ExtractEmails(ReverseString(sel.Text()))...)
	})
	return dedupEmails(emails)
}

func extractPhoneFromSelection(sel *goquery.Selection) string {
	phone := ""
	sel.Find("a[href^='tel:']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		phone = CleanPhone(strings.TrimPrefix(href, "tel:"))
		return phone == ""
	})
	if phone != "" {
		return phone
	}
	if p := phoneCandidatePattern.FindString(sel.Text()); p != "" {
		return CleanPhone(p)
	}
	return ""
}

func htmlOf(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return sel.Text()
	}
	return html
}

var _ interfaces.Miner = (*DirectoryMiner)(nil)
