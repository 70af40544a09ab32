package extract

import (
	"regexp"
	"strings"
)

// platformMatcher classifies one outbound URL. Order matters: the first
// matcher to claim a URL wins, and the first URL per platform wins.
type platformMatcher struct {
	name string
	re   *regexp.Regexp
}

var platformMatchers = []platformMatcher{
	{"instagram", regexp.MustCompile(`(?i)instagram\.com/([a-zA-Z0-9._]+)`)},
	{"twitter", regexp.MustCompile(`(?i)(?:twitter\.com|(?:^|[^a-z0-9])x\.com)/([a-zA-Z0-9_]+)`)},
	{"facebook", regexp.MustCompile(`(?i)facebook\.com/([a-zA-Z0-9.]+)`)},
	{"tiktok", regexp.MustCompile(`(?i)tiktok\.com/@?([a-zA-Z0-9._]+)`)},
	{"discord", regexp.MustCompile(`(?i)discord(?:\.gg|\.com/invite)/([a-zA-Z0-9\-]+)`)},
	{"twitch", regexp.MustCompile(`(?i)twitch\.tv/([a-zA-Z0-9_]+)`)},
	{"linkedin", regexp.MustCompile(`(?i)linkedin\.com/(?:in|company)/([a-zA-Z0-9\-%_]+)`)},
}

var (
	urlRe = regexp.MustCompile(`https?://[^\s"'<>\\)\]}]+`)

	// Hosts that are never a creator's own website.
	ownPlatformHosts = []string{
		"youtube.com", "youtu.be", "google.com", "gstatic.com", "ggpht.com",
		"googleusercontent.com", "schema.org", "w3.org",
	}
)

// OutboundLinks scans the page text and raw markup for known platform
// profiles plus the first generic external link as the "website" entry.
// URLs are considered in document order; the first match per platform wins.
func OutboundLinks(text, html string) map[string]string {
	links := make(map[string]string)
	for _, candidate := range urlRe.FindAllString(html+"\n"+text, -1) {
		candidate = strings.TrimRight(candidate, ".,;")
		claimed := false
		for _, pm := range platformMatchers {
			if !pm.re.MatchString(candidate) {
				continue
			}
			claimed = true
			if _, ok := links[pm.name]; !ok {
				links[pm.name] = candidate
			}
			break
		}
		if claimed {
			continue
		}
		if _, ok := links["website"]; !ok && isExternalWebsite(candidate) {
			links["website"] = candidate
		}
	}
	if len(links) == 0 {
		return nil
	}
	return links
}

func isExternalWebsite(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	host := lower
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	for _, own := range ownPlatformHosts {
		if host == own || strings.HasSuffix(host, "."+own) {
			return false
		}
	}
	return true
}
