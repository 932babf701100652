package miners

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/pagination"
)

// maxVendorPages caps the search-URL variants the catalog miner replays
const maxVendorPages = 50

// apiPathHints mark XHR responses worth capturing while observing
var apiPathHints = []string{
	"/api/", "/search", "/exhibitor", "/catalog", "/vendors", "/graphql", ".json",
}

// VendorCatalogMiner targets sites whose listings load through an
// internal JSON search API. It navigates with a headless browser while
// sniffing network responses (observe), then walks search-URL variants
// re-sniffing each one (replay), and finally visits detail pages for
// exhibitors that came back without an email.
type VendorCatalogMiner struct {
	config common.CrawlerConfig
	logger arbor.ILogger
}

// NewVendorCatalogMiner creates the vendor catalog miner
func NewVendorCatalogMiner(config common.CrawlerConfig, logger arbor.ILogger) *VendorCatalogMiner {
	return &VendorCatalogMiner{config: config, logger: logger}
}

// Name identifies the miner
func (m *VendorCatalogMiner) Name() models.MinerName { return models.MinerVendorCatalog }

// Mine sniffs the catalog API across pages and enriches from details
func (m *VendorCatalogMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(m.config.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	maxPages := job.Config.EffectiveMaxPages(maxVendorPages)
	delay := job.Config.ListPageDelay()

	byEmail := make(map[string]models.Card)
	var noEmail []models.Card
	emptyStreak := 0

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		pageURL := pagination.WithPageSize(pagination.BuildPageURL(job.Input, page), job.Config.PageSize)
		payloads, err := m.sniffPage(browserCtx, pageURL)
		if err != nil {
			result.Status = interfaces.MineStatusError
			result.Meta.Error = err.Error()
			m.logger.Warn().Err(err).Str("url", pageURL).Msg("Catalog sniff failed")
			break
		}

		pageCards := cardsFromPayloads(payloads, pageURL)
		if len(pageCards) == 0 {
			emptyStreak++
			if emptyStreak >= 3 {
				break
			}
			continue
		}
		emptyStreak = 0

		for _, card := range pageCards {
			if email := card.PrimaryEmail(); email != "" {
				if _, ok := byEmail[email]; !ok {
					byEmail[email] = card
				}
			} else if card.HasIdentity() {
				noEmail = append(noEmail, card)
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	// Replay detail pages for exhibitors the API returned without email
	for _, card := range noEmail {
		if ctx.Err() != nil {
			break
		}
		detailURL := resolveAgainst(job.Input, detailURLFromRaw(card.Raw))
		if detailURL == "" {
			continue
		}
		html, err := m.renderDetail(browserCtx, detailURL)
		if err != nil {
			continue
		}
		if emails := harvestEmails(html); len(emails) > 0 {
			card.Emails = emails
			if _, ok := byEmail[emails[0]]; !ok {
				byEmail[emails[0]] = card
			}
		}
	}

	for _, card := range byEmail {
		result.Contacts = append(result.Contacts, card)
		result.Emails = append(result.Emails, card.Emails...)
	}
	result.Emails = dedupEmails(result.Emails)
	if len(result.Contacts) > 0 {
		result.Status = interfaces.MineStatusSuccess
	}

	m.logger.Info().
		Str("url", job.Input).
		Int("cards", len(result.Contacts)).
		Int("detail_replays", len(noEmail)).
		Str("status", string(result.Status)).
		Msg("Vendor catalog mining complete")

	return result, nil
}

// sniffPage navigates one URL while capturing JSON response bodies from
// API-looking requests
func (m *VendorCatalogMiner) sniffPage(browserCtx context.Context, pageURL string) ([][]byte, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, 45*time.Second)
	defer cancel()

	var mu sync.Mutex
	var requestIDs []network.RequestID

	chromedp.ListenTarget(navCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if resp.Type != network.ResourceTypeXHR && resp.Type != network.ResourceTypeFetch {
			return
		}
		lower := strings.ToLower(resp.Response.URL)
		for _, hint := range apiPathHints {
			if strings.Contains(lower, hint) {
				mu.Lock()
				requestIDs = append(requestIDs, resp.RequestID)
				mu.Unlock()
				return
			}
		}
	})

	var payloads [][]byte
	err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			mu.Lock()
			ids := make([]network.RequestID, len(requestIDs))
			copy(ids, requestIDs)
			mu.Unlock()

			for _, id := range ids {
				body, err := network.GetResponseBody(id).Do(ctx)
				if err != nil {
					continue
				}
				payloads = append(payloads, body)
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return payloads, nil
}

func (m *VendorCatalogMiner) renderDetail(browserCtx context.Context, detailURL string) (string, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(detailURL),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.OuterHTML("html", &html),
	)
	return html, err
}

// cardsFromPayloads walks captured JSON looking for exhibitor-shaped
// objects at any nesting depth
func cardsFromPayloads(payloads [][]byte, sourceURL string) []models.Card {
	var cards []models.Card
	for _, payload := range payloads {
		var root interface{}
		if err := json.Unmarshal(payload, &root); err != nil {
			continue
		}
		walkJSON(root, func(obj map[string]interface{}) {
			if card := cardFromAPIObject(obj, sourceURL); card != nil {
				cards = append(cards, *card)
			}
		})
	}
	return cards
}

func walkJSON(node interface{}, visit func(map[string]interface{})) {
	switch v := node.(type) {
	case map[string]interface{}:
		visit(v)
		for _, child := range v {
			walkJSON(child, visit)
		}
	case []interface{}:
		for _, child := range v {
			walkJSON(child, visit)
		}
	}
}

// nameKeys and emailKeys are the field spellings seen across catalog APIs
var (
	nameKeys   = []string{"name", "company", "companyName", "company_name", "title", "exhibitorName"}
	emailKeys  = []string{"email", "mail", "contactEmail", "contact_email"}
	urlKeys    = []string{"url", "link", "detailUrl", "detail_url", "slug", "profileUrl"}
	phoneKeys  = []string{"phone", "tel", "telephone"}
	cityKeys   = []string{"city", "town"}
	countryKey = []string{"country", "countryName", "country_name"}
)

func cardFromAPIObject(obj map[string]interface{}, sourceURL string) *models.Card {
	name := firstString(obj, nameKeys)
	email := firstString(obj, emailKeys)
	if name == "" && email == "" {
		return nil
	}
	// Require some second signal so generic objects don't become cards
	if email == "" && firstString(obj, urlKeys) == "" && firstString(obj, phoneKeys) == "" {
		return nil
	}

	card := models.Card{
		CompanyName: name,
		Emails:      ExtractEmails(email),
		Phone:       CleanPhone(firstString(obj, phoneKeys)),
		City:        firstString(obj, cityKeys),
		Country:     firstString(obj, countryKey),
		SourceURL:   sourceURL,
	}
	if detail := firstString(obj, urlKeys); detail != "" {
		raw, _ := json.Marshal(map[string]string{"detail_url": detail})
		card.Raw = raw
	}
	if len(card.Emails) == 0 && !card.HasIdentity() {
		return nil
	}
	return &card
}

// resolveAgainst absolutizes API-relative detail paths and slugs
func resolveAgainst(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return resolved.String()
}

func firstString(obj map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ interfaces.Miner = (*VendorCatalogMiner)(nil)
