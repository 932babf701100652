package miners

import "testing"

func TestCollectDetailLinks(t *testing.T) {
	m := &HTTPBasicMiner{}
	html := `<html><body>
		<a href="/exhibitors/acme-gmbh-123">Acme</a>
		<a href="/stand/beta">Beta</a>
		<a href="/news/2026/article-title">News</a>
		<a href="https://other.example.com/stand/gamma">Offsite</a>
	</body></html>`
	base := "https://fair.example.com/exhibitors"

	// Heuristics pick the token-bearing same-host link
	links := m.collectDetailLinks(html, base, "")
	if len(links) != 1 || links[0] != "https://fair.example.com/exhibitors/acme-gmbh-123" {
		t.Errorf("heuristic links = %v", links)
	}

	// A configured pattern replaces the heuristics
	links = m.collectDetailLinks(html, base, "/stand/")
	if len(links) != 1 || links[0] != "https://fair.example.com/stand/beta" {
		t.Errorf("pattern links = %v", links)
	}
}

func TestDedupEmails(t *testing.T) {
	got := dedupEmails([]string{"a@x.com", "", "b@x.com", "a@x.com"})
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Errorf("dedupEmails = %v", got)
	}
}
