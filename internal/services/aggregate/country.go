package aggregate

import (
	"strings"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/miners"
)

// countryCodes maps country names and common synonyms to ISO-3166
// alpha-2 codes
var countryCodes = map[string]string{
	"germany": "DE", "deutschland": "DE", "allemagne": "DE",
	"turkey": "TR", "türkiye": "TR", "turkiye": "TR",
	"italy": "IT", "italia": "IT",
	"france": "FR",
	"spain":  "ES", "españa": "ES", "espana": "ES",
	"united kingdom": "GB", "uk": "GB", "england": "GB", "great britain": "GB",
	"united states": "US", "usa": "US", "america": "US",
	"netherlands": "NL", "holland": "NL", "nederland": "NL",
	"china": "CN", "p.r. china": "CN",
	"india": "IN", "japan": "JP", "south korea": "KR", "korea": "KR",
	"taiwan": "TW", "brazil": "BR", "brasil": "BR",
	"poland": "PL", "polska": "PL",
	"austria": "AT", "österreich": "AT", "oesterreich": "AT",
	"switzerland": "CH", "schweiz": "CH", "suisse": "CH",
	"belgium": "BE", "sweden": "SE", "denmark": "DK", "norway": "NO",
	"finland": "FI", "russia": "RU", "ukraine": "UA",
	"czech republic": "CZ", "czechia": "CZ",
	"hungary": "HU", "romania": "RO", "bulgaria": "BG", "greece": "GR",
	"portugal": "PT", "ireland": "IE",
	"united arab emirates": "AE", "uae": "AE", "dubai": "AE",
	"saudi arabia": "SA", "israel": "IL", "egypt": "EG", "iran": "IR",
	"canada": "CA", "mexico": "MX", "australia": "AU", "new zealand": "NZ",
	"south africa": "ZA", "singapore": "SG", "malaysia": "MY",
	"indonesia": "ID", "thailand": "TH", "vietnam": "VN",
}

// tldCodes maps country-code TLDs that differ from or confirm the ISO code
var tldCodes = map[string]string{
	"de": "DE", "tr": "TR", "it": "IT", "fr": "FR", "es": "ES",
	"uk": "GB", "nl": "NL", "cn": "CN", "in": "IN", "jp": "JP",
	"kr": "KR", "tw": "TW", "br": "BR", "pl": "PL", "at": "AT",
	"ch": "CH", "be": "BE", "se": "SE", "dk": "DK", "no": "NO",
	"fi": "FI", "ru": "RU", "ua": "UA", "cz": "CZ", "hu": "HU",
	"ro": "RO", "bg": "BG", "gr": "GR", "pt": "PT", "ie": "IE",
	"ae": "AE", "sa": "SA", "il": "IL", "eg": "EG", "ca": "CA",
	"mx": "MX", "au": "AU", "nz": "NZ", "za": "ZA", "sg": "SG",
	"my": "MY", "id": "ID", "th": "TH", "vn": "VN", "us": "US",
}

// phonePrefixCodes maps international dialing prefixes to countries.
// Longest prefixes are tried first by the lookup.
var phonePrefixCodes = map[string]string{
	"+49": "DE", "+90": "TR", "+39": "IT", "+33": "FR", "+34": "ES",
	"+44": "GB", "+31": "NL", "+86": "CN", "+91": "IN", "+81": "JP",
	"+82": "KR", "+886": "TW", "+55": "BR", "+48": "PL", "+43": "AT",
	"+41": "CH", "+32": "BE", "+46": "SE", "+45": "DK", "+47": "NO",
	"+358": "FI", "+7": "RU", "+380": "UA", "+420": "CZ", "+36": "HU",
	"+40": "RO", "+359": "BG", "+30": "GR", "+351": "PT", "+353": "IE",
	"+971": "AE", "+966": "SA", "+972": "IL", "+20": "EG", "+1": "US",
	"+52": "MX", "+61": "AU", "+64": "NZ", "+27": "ZA", "+65": "SG",
	"+60": "MY", "+62": "ID", "+66": "TH", "+84": "VN",
}

// CountryCode normalizes a card's location signals to ISO alpha-2:
// explicit country text first, then the email/website TLD, then the
// phone's dialing prefix. Empty string when nothing matches.
func CountryCode(card *models.Card) string {
	if code := countryFromText(card.Country); code != "" {
		return code
	}

	for _, email := range card.Emails {
		if code := codeFromTLD(miners.EmailDomain(email)); code != "" {
			return code
		}
	}
	if card.Website != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(card.Website, "https://"), "http://")
		host = strings.SplitN(host, "/", 2)[0]
		if code := codeFromTLD(host); code != "" {
			return code
		}
	}

	if card.Phone != "" {
		return codeFromPhone(card.Phone)
	}
	return ""
}

func countryFromText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	// Already a code
	if len(s) == 2 {
		upper := strings.ToUpper(s)
		for _, code := range countryCodes {
			if code == upper {
				return upper
			}
		}
	}
	if code, ok := countryCodes[s]; ok {
		return code
	}
	// Loose containment for strings like "Hamburg, Germany"
	for name, code := range countryCodes {
		if len(name) >= 4 && strings.Contains(s, name) {
			return code
		}
	}
	return ""
}

func codeFromTLD(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	idx := strings.LastIndex(domain, ".")
	if idx < 0 {
		return ""
	}
	return tldCodes[domain[idx+1:]]
}

func codeFromPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, phone)
	if !strings.HasPrefix(digits, "+") {
		if strings.HasPrefix(digits, "00") {
			digits = "+" + digits[2:]
		} else {
			return ""
		}
	}

	for length := 4; length >= 2; length-- {
		if len(digits) >= length {
			if code, ok := phonePrefixCodes[digits[:length]]; ok {
				return code
			}
		}
	}
	return ""
}
