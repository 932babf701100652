// Package pagination enumerates page URLs for paginated listings and
// provides the duplicate-content guard used by the page loop.
package pagination

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
)

const (
	// maxDetectablePages clamps DetectTotalPages; pagination widgets
	// advertising more are treated as unbounded noise.
	maxDetectablePages = 200

	defaultMaxPages = 20
)

var (
	queryPagePattern = regexp.MustCompile(`([?&]page=)\d+`)
	pathPagePattern  = regexp.MustCompile(`(/page/)\d+`)
	pageOfPattern    = regexp.MustCompile(`(?i)page\s+\d+\s+of\s+(\d+)`)
)

// BuildPageURL substitutes or appends the page token for page n
func BuildPageURL(base string, n int) string {
	if queryPagePattern.MatchString(base) {
		return queryPagePattern.ReplaceAllString(base, fmt.Sprintf("${1}%d", n))
	}
	if pathPagePattern.MatchString(base) {
		return pathPagePattern.ReplaceAllString(base, fmt.Sprintf("${1}%d", n))
	}
	if strings.Contains(base, "?") {
		return fmt.Sprintf("%s&page=%d", base, n)
	}
	return fmt.Sprintf("%s?page=%d", base, n)
}

// WithPageSize sets the page_size query parameter for API-backed
// listings; size <= 0 leaves the URL untouched
func WithPageSize(pageURL string, size int) string {
	if size <= 0 {
		return pageURL
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	q := u.Query()
	q.Set("page_size", strconv.Itoa(size))
	u.RawQuery = q.Encode()
	return u.String()
}

// DetectTotalPages inspects pagination containers, page-number link text,
// and prose "page X of Y". The result is clamped to [1, 200).
func DetectTotalPages(html, pageURL string) int {
	total := 1

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		containers := doc.Find(".pagination, .pager, .page-numbers, nav[aria-label*='agina'], ul.pages")
		scan := func(sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if n, err := strconv.Atoi(text); err == nil && n > total && n < maxDetectablePages {
				total = n
			}
			if href, ok := sel.Attr("href"); ok {
				if n := pageNumberFromURL(href); n > total && n < maxDetectablePages {
					total = n
				}
			}
		}
		if containers.Length() > 0 {
			containers.Find("a, span, li").Each(func(_ int, sel *goquery.Selection) { scan(sel) })
		} else {
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				if href, _ := sel.Attr("href"); pageNumberFromURL(href) > 0 {
					scan(sel)
				}
			})
		}
	}

	if m := pageOfPattern.FindStringSubmatch(html); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > total && n < maxDetectablePages {
			total = n
		}
	}

	if total < 1 {
		total = 1
	}
	return total
}

func pageNumberFromURL(href string) int {
	for _, pattern := range []*regexp.Regexp{queryPagePattern, pathPagePattern} {
		loc := pattern.FindStringIndex(href)
		if loc == nil {
			continue
		}
		sub := pattern.FindStringSubmatch(href)
		digits := strings.TrimPrefix(href[loc[0]:loc[1]], sub[1])
		if n, err := strconv.Atoi(digits); err == nil {
			return n
		}
	}
	return 0
}

// Options controls GeneratePageURLs
type Options struct {
	MaxPages   int
	Page1HTML  string // Already-fetched first page; skips the fetch when set
	ForceTotal int    // Override detected total when > 0
}

// Handler generates page URL sequences
type Handler struct {
	fetcher *fetch.Client
	logger  arbor.ILogger
}

// NewHandler creates a pagination handler
func NewHandler(fetcher *fetch.Client, logger arbor.ILogger) *Handler {
	return &Handler{fetcher: fetcher, logger: logger}
}

// GeneratePageURLs returns the ordered page URLs for a base listing URL,
// the detected total, and whether detection ran (vs. fell back to 1).
// The first URL always equals BuildPageURL(base, 1) and the slice never
// exceeds MaxPages.
func (h *Handler) GeneratePageURLs(ctx context.Context, base string, opts Options) ([]string, int, bool, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	detected := false
	total := 1

	if opts.ForceTotal > 0 {
		total = opts.ForceTotal
		detected = true
	} else {
		html := opts.Page1HTML
		if html == "" {
			result, err := h.fetcher.Fetch(ctx, base)
			if err != nil {
				return nil, 0, false, fmt.Errorf("fetch first page: %w", err)
			}
			html = result.HTML
		}
		if html != "" {
			total = DetectTotalPages(html, base)
			detected = total > 1
		}
	}

	if total > maxPages {
		total = maxPages
	}
	if total < 1 {
		total = 1
	}

	urls := make([]string, 0, total)
	for n := 1; n <= total; n++ {
		urls = append(urls, BuildPageURL(base, n))
	}

	h.logger.Debug().
		Str("base", base).
		Int("total", total).
		Bool("detected", detected).
		Msg("Generated page URLs")

	return urls, total, detected, nil
}

// CreateContentHash fingerprints a page's contacts from its first five
// items, sorted, each rendered as lower(email)|lower(name). Identical
// leading items produce identical hashes regardless of the remainder,
// which is what the stop-on-duplicate guard needs.
func CreateContentHash(contacts []models.Card) string {
	limit := len(contacts)
	if limit > 5 {
		limit = 5
	}

	parts := make([]string, 0, limit)
	for _, c := range contacts[:limit] {
		parts = append(parts, strings.ToLower(c.PrimaryEmail())+"|"+strings.ToLower(c.ContactName))
	}
	sort.Strings(parts)

	sum := sha1.Sum([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}
