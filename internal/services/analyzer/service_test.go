package analyzer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ternarybob/prospector/internal/models"
)

func TestAnalyzeHTMLBlockedByStatus(t *testing.T) {
	for _, code := range []int{401, 403, 429} {
		a := AnalyzeHTML("https://example.com", "<html></html>", code)
		if a.PageType != models.PageTypeBlocked {
			t.Errorf("HTTP %d: got %s, want BLOCKED", code, a.PageType)
		}
		if a.Recommendation.Miner != models.MinerBrowser {
			t.Errorf("HTTP %d: blocked pages should recommend the browser miner", code)
		}
	}
}

func TestAnalyzeHTMLErrorByStatus(t *testing.T) {
	for _, code := range []int{404, 500, 502} {
		a := AnalyzeHTML("https://example.com", "", code)
		if a.PageType != models.PageTypeError {
			t.Errorf("HTTP %d: got %s, want ERROR", code, a.PageType)
		}
	}
}

func TestAnalyzeHTMLAnchorlessChallengeIsBlocked(t *testing.T) {
	// HTTP 200 with zero anchors and a challenge marker
	html := `<html><body><div>Checking your browser before accessing the site.</div></body></html>`
	a := AnalyzeHTML("https://example.com", html, 200)
	if a.PageType != models.PageTypeBlocked {
		t.Errorf("got %s, want BLOCKED for anchorless challenge page", a.PageType)
	}
}

func TestAnalyzeHTMLZeroAnchorsIsBlocked(t *testing.T) {
	// No challenge marker and plenty of benign text, but not one anchor:
	// nothing to mine, so the page counts as blocked
	var b strings.Builder
	b.WriteString(`<html><body><div>`)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, `<p>Exhibition hall %d hosts machinery, packaging and logistics suppliers from across the region.</p>`, i)
	}
	b.WriteString(`</div></body></html>`)

	a := AnalyzeHTML("https://example.com/exhibitors", b.String(), 200)
	if a.PageType != models.PageTypeBlocked {
		t.Errorf("got %s, want BLOCKED for anchorless page", a.PageType)
	}
	if a.Recommendation.Miner != models.MinerBrowser {
		t.Errorf("anchorless pages should recommend the browser miner, got %s", a.Recommendation.Miner)
	}
}

func TestAnalyzeHTMLDirectoryPrecedence(t *testing.T) {
	// Directory host wins over tables and pagination
	html := `<html><body>
		<table><tr><td>a@b.com</td></tr></table>
		<a href="?page=2">2</a>
		<a href="/listing/one">one</a><a href="/listing/two">two</a><a href="/x">x</a>
	</body></html>`
	a := AnalyzeHTML("https://www.yellowpages.com/search?terms=plumber", html, 200)
	if a.PageType != models.PageTypeDirectory {
		t.Errorf("got %s, want DIRECTORY", a.PageType)
	}
	if !a.Recommendation.OwnPagination {
		t.Error("directory miner owns its pagination")
	}
}

func TestAnalyzeHTMLDocumentViewer(t *testing.T) {
	// Three SEO text-layer pages push the score past the threshold
	html := `<html><body>
		<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
		<div class="seo-text">
P:1 Welcome to the catalog
P:2 Acme GmbH info@acme.com
P:3 Beta Ltd sales@beta.co
		</div>
	</body></html>`
	a := AnalyzeHTML("https://viewer.example/flipbook/brochure", html, 200)
	if !a.IsDocumentViewer {
		t.Fatal("expected document viewer detection")
	}
	if a.PageType != models.PageTypeDocumentViewer {
		t.Errorf("got %s, want DOCUMENT_VIEWER", a.PageType)
	}
	if a.Recommendation.Miner != models.MinerDocument {
		t.Errorf("got miner %s, want document", a.Recommendation.Miner)
	}
}

func TestAnalyzeHTMLExhibitorTable(t *testing.T) {
	html := `<html><body>
		<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
		<table><tr><th>Company</th><th>Email</th></tr>
		<tr><td>Acme</td><td>info@acme.com</td></tr></table>
	</body></html>`
	a := AnalyzeHTML("https://fair.example.com/list", html, 200)
	if a.PageType != models.PageTypeExhibitorTable {
		t.Errorf("got %s, want EXHIBITOR_TABLE", a.PageType)
	}
	if !a.Recommendation.UseCache {
		t.Error("table miner is HTTP-consumable and should reuse the cached fetch")
	}
}

func TestAnalyzeHTMLPaginatedBeatsList(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><a href="?page=2">Next page</a>`)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, `<a href="/exhibitor/company-%d-profile">Company %d</a>`, i, i)
	}
	b.WriteString(`</body></html>`)

	a := AnalyzeHTML("https://fair.example.com/exhibitors", b.String(), 200)
	if a.PageType != models.PageTypePaginated {
		t.Errorf("got %s, want PAGINATED", a.PageType)
	}
	if a.PaginationType != models.PaginationNumbered {
		t.Errorf("got pagination %s, want numbered", a.PaginationType)
	}
	if !a.Recommendation.NeedsPagination {
		t.Error("paginated pages need the pagination loop")
	}
}

func TestAnalyzeHTMLExhibitorList(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, `<a href="/exhibitor/company-%d-profile">Company %d</a>`, i, i)
	}
	b.WriteString(`</body></html>`)

	a := AnalyzeHTML("https://fair.example.com/hall", b.String(), 200)
	if a.PageType != models.PageTypeExhibitorList {
		t.Errorf("got %s, want EXHIBITOR_LIST", a.PageType)
	}
	if a.DetailLinkCount < 5 {
		t.Errorf("detail link count = %d, want >= 5", a.DetailLinkCount)
	}
}

func TestAnalyzeHTMLSinglePage(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a><a href="/contact">Contact</a><a href="/home">Home</a>
		<p>Reach us at office@acme.com</p>
	</body></html>`
	a := AnalyzeHTML("https://acme.com/contact", html, 200)
	if a.PageType != models.PageTypeSinglePage {
		t.Errorf("got %s, want SINGLE_PAGE", a.PageType)
	}
	if a.EmailCount != 1 {
		t.Errorf("email count = %d, want 1", a.EmailCount)
	}
}

func TestAnalyzeHTMLDynamic(t *testing.T) {
	html := `<html><body>
		<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
		<div id="__nuxt"></div><script>window.__NUXT__={}</script>
	</body></html>`
	a := AnalyzeHTML("https://spa.example.com", html, 200)
	if a.PageType != models.PageTypeDynamic {
		t.Errorf("got %s, want DYNAMIC", a.PageType)
	}
	if a.Recommendation.Miner != models.MinerBrowser {
		t.Errorf("dynamic pages need the browser miner, got %s", a.Recommendation.Miner)
	}
}

func TestAnalyzeHTMLRelNextPagination(t *testing.T) {
	html := `<html><body>
		<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
		<a rel="next" href="/list/2">older</a>
	</body></html>`
	a := AnalyzeHTML("https://blog.example.com/list", html, 200)
	if a.PaginationType != models.PaginationNext {
		t.Errorf("got pagination %s, want next", a.PaginationType)
	}
}
