package miners

import (
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/models"
)

func TestBrowserMinerMaxDetails(t *testing.T) {
	m := NewBrowserMiner(common.CrawlerConfig{}, common.MinerConfig{MaxDetails: 50}, arbor.NewLogger())

	if got := m.maxDetails(&models.Job{Config: models.JobConfig{MaxDetails: 10}}); got != 10 {
		t.Errorf("job cap = %d, want 10", got)
	}
	if got := m.maxDetails(&models.Job{}); got != 50 {
		t.Errorf("configured cap = %d, want 50", got)
	}

	bare := NewBrowserMiner(common.CrawlerConfig{}, common.MinerConfig{}, arbor.NewLogger())
	if got := bare.maxDetails(&models.Job{}); got != 200 {
		t.Errorf("default cap = %d, want 200", got)
	}
}

func TestCollectBrowserDetailLinks(t *testing.T) {
	html := `<html><body>
		<a href="/exhibitors/acme-gmbh-123">Acme</a>
		<a href="/exhibitors/beta-srl-456">Beta</a>
		<a href="/news/2026/article-title">News</a>
		<a href="https://other.example.com/exhibitors/gamma-789">Offsite</a>
	</body></html>`
	base := "https://fair.example.com/exhibitors"

	links := collectBrowserDetailLinks(html, base, "", 10)
	if len(links) != 2 {
		t.Fatalf("links = %v, want the two same-host detail pages", links)
	}

	// The cap stops collection early
	if links = collectBrowserDetailLinks(html, base, "", 1); len(links) != 1 {
		t.Errorf("capped links = %v, want 1", links)
	}
}

func TestCollectBrowserDetailLinksPattern(t *testing.T) {
	html := `<html><body>
		<a href="/stand/acme">Acme</a>
		<a href="/exhibitors/beta-srl-456">Beta</a>
		<a href="https://other.example.com/stand/gamma">Offsite</a>
	</body></html>`

	links := collectBrowserDetailLinks(html, "https://fair.example.com/list", "/stand/", 10)
	if len(links) != 1 || links[0] != "https://fair.example.com/stand/acme" {
		t.Errorf("links = %v, want only the same-host /stand/ link", links)
	}
}

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"challenge marker", `<html><body>Checking your browser before accessing</body></html>`, true},
		{"near-empty page", `<html><body><p>403</p></body></html>`, true},
		{"normal page", `<html><body>` +
			`<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>` +
			`<p>Welcome to the exhibitor catalog with plenty of content on it, ` +
			`company profiles, hall plans, and the full list of this year's stands.</p>` +
			`</body></html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksBlocked(tt.html); got != tt.want {
				t.Errorf("looksBlocked = %v, want %v", got, tt.want)
			}
		})
	}
}
