package miners

import "strings"

// Runtime constant tables shared by the miner family. These are
// initialized once and never mutated; tests that need alternates build
// their own miner instances with option setters.

// genericEmailProviders are mailbox hosts that never identify a company
// website. Used by GuessWebsiteFromEmail and by confidence scoring.
var genericEmailProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"yahoo.co.uk":    true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"msn.com":        true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"mail.com":       true,
	"gmx.com":        true,
	"gmx.de":         true,
	"web.de":         true,
	"yandex.com":     true,
	"yandex.ru":      true,
	"protonmail.com": true,
	"proton.me":      true,
	"zoho.com":       true,
	"qq.com":         true,
	"163.com":        true,
	"126.com":        true,
}

// junkEmailDomains are matched email-like strings that are never real
// addresses: tracker noise, image filenames, framework artifacts.
var junkEmailDomains = []string{
	"example.com",
	"example.org",
	"domain.com",
	"email.com",
	"yourdomain.com",
	"sentry.io",
	"wixpress.com",
	"sentry.wixpress.com",
	"2x.png",
	"3x.png",
}

// junkEmailSuffixes reject addresses whose "domain" is a file extension
var junkEmailSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js",
}

// urlShorteners are hosts that never count as a company website
var urlShorteners = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "buff.ly",
	"is.gd", "cutt.ly", "rebrand.ly", "shorturl.at", "rb.gy", "linktr.ee",
}

// socialDomains are excluded from website and detail-link candidates
var socialDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com",
	"linkedin.com", "youtube.com", "tiktok.com", "pinterest.com",
	"wa.me", "whatsapp.com", "t.me", "telegram.me",
}

// directoryHosts mark business-directory sites for analyzer routing
var directoryHosts = []string{
	"yellowpages", "yelp.", "paginegialle", "gelbeseiten", "pagesjaunes",
	"goudengids", "yell.com", "hotfrog", "cylex", "kompass.com",
	"europages", "chamber", "chambersofcommerce", "firmenverzeichnis",
	"bedrijvenpagina", "annuaire",
}

// detailLinkTokens hint that a same-host anchor leads to a contact detail page
var detailLinkTokens = []string{
	"exhibitor", "company", "companies", "profile", "member", "members",
	"participant", "vendor", "supplier", "partner", "firm", "aussteller",
	"listing", "detail", "katilimci", "firma",
}

// GenericEmailPrefixes are role mailboxes that never yield a person name
var GenericEmailPrefixes = map[string]bool{
	"info":        true,
	"contact":     true,
	"support":     true,
	"sales":       true,
	"admin":       true,
	"office":      true,
	"hello":       true,
	"mail":        true,
	"enquiries":   true,
	"inquiries":   true,
	"marketing":   true,
	"press":       true,
	"media":       true,
	"hr":          true,
	"jobs":        true,
	"careers":     true,
	"noreply":     true,
	"no-reply":    true,
	"newsletter":  true,
	"webmaster":   true,
	"service":     true,
	"booking":     true,
	"reservation": true,
	"export":      true,
	"import":      true,
}

// IsGenericEmailProvider reports whether the domain is a consumer mailbox host
func IsGenericEmailProvider(domain string) bool {
	return genericEmailProviders[domain]
}

// IsDirectoryHost reports whether the URL's hostname belongs to a known
// business-directory site
func IsDirectoryHost(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, marker := range directoryHosts {
		if strings.Contains(host, marker) {
			return true
		}
	}
	return false
}
