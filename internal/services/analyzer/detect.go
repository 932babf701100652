package analyzer

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/miners"
)

func detectEmails(a *models.PageAnalysis, html string) {
	emails := miners.ExtractEmails(html)
	a.EmailCount = len(emails)
	a.HasEmails = len(emails) > 0
}

func detectTables(a *models.PageAnalysis, doc *goquery.Document) {
	a.TableCount = doc.Find("table").Length()
	a.HasTable = a.TableCount > 0
}

func detectDetailLinks(a *models.PageAnalysis, doc *goquery.Document, baseURL string) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		abs := resolved.String()
		if seen[abs] {
			return
		}
		if miners.IsDetailLink(abs, baseURL) {
			seen[abs] = true
		}
	})

	a.DetailLinkCount = len(seen)
	a.HasDetailLinks = a.DetailLinkCount > 0
}

var (
	numberedPagePattern = regexp.MustCompile(`(?i)[?&]page=\d+|/page/\d+`)
	loadMorePattern     = regexp.MustCompile(`(?i)\b(load more|show more|view more|daha fazla|mehr laden|voir plus)\b`)
	infiniteScrollHints = []string{"infinite-scroll", "infinitescroll", "data-infinite", "lazyload-container"}
)

func detectPagination(a *models.PageAnalysis, doc *goquery.Document, html string) {
	// Ordered tests: numbered, rel=next, load-more, infinite scroll
	numbered := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if numberedPagePattern.MatchString(href) {
			numbered = true
			return false
		}
		return true
	})
	if numbered {
		a.PaginationType = models.PaginationNumbered
		return
	}

	if doc.Find(`a[rel="next"], link[rel="next"]`).Length() > 0 {
		a.PaginationType = models.PaginationNext
		return
	}

	if loadMorePattern.MatchString(html) {
		a.PaginationType = models.PaginationLoadMore
		return
	}

	lower := strings.ToLower(html)
	for _, hint := range infiniteScrollHints {
		if strings.Contains(lower, hint) {
			a.PaginationType = models.PaginationInfinite
			return
		}
	}

	a.PaginationType = models.PaginationNone
}

var spaMarkers = []string{
	"__next_data__", "window.__nuxt__", "data-reactroot", "ng-version",
	"id=\"__nuxt\"", "data-v-app", "vue-app",
}

// detectDynamic flags SPA frameworks, lazy-src attributes, and pages
// whose visible text is tiny relative to the HTML payload.
func detectDynamic(doc *goquery.Document, html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if doc.Find("[data-src], [data-lazy-src], img[loading='lazy']").Length() > 3 {
		return true
	}

	text := strings.TrimSpace(doc.Text())
	if len(html) > 50_000 && len(text) < 500 {
		return true
	}
	return false
}

var seoTextPagePattern = regexp.MustCompile(`(?m)^\s*P:\d+\b`)

// documentViewerScore sums the flipbook/viewer indicators. A score of 40
// or more classifies the page as a document viewer.
func documentViewerScore(doc *goquery.Document, html string) int {
	score := 0

	if len(seoTextPagePattern.FindAllString(html, 4)) >= 3 {
		score += 50
	}
	if doc.Find("canvas").Length() >= 2 {
		score += 20
	}

	lower := strings.ToLower(html)
	if strings.Contains(lower, "/api/text") || strings.Contains(lower, "textlayer.json") {
		score += 15
	}
	for _, cls := range []string{"flipbook", "flip-book", "page-flip", "turnjs", "issuu"} {
		if strings.Contains(lower, cls) {
			score += 15
			break
		}
	}
	pdfLinks := 0
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasSuffix(strings.ToLower(strings.Split(href, "?")[0]), ".pdf") {
			pdfLinks++
		}
	})
	if pdfLinks > 0 {
		score += 10
	}

	return score
}

func isDirectoryHost(rawURL string) bool {
	return miners.IsDirectoryHost(rawURL)
}

var challengeMarkers = []string{
	"cloudflare", "cf-browser-verification", "captcha", "verify you are human",
	"checking your browser", "just a moment", "access denied", "attention required",
}

func looksLikeChallenge(html string) bool {
	if strings.TrimSpace(html) == "" {
		return true
	}
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// Trivially-empty body with no anchors at all
	return len(strings.TrimSpace(lower)) < 200
}
