package extract

import (
	"regexp"
	"strings"
)

// Domains that only ever appear as placeholders in page copy, plus the
// platform's own domain. Matches are dropped after pattern union.
var blockedEmailDomains = map[string]struct{}{
	"example.com":    {},
	"test.com":       {},
	"email.com":      {},
	"domain.com":     {},
	"yourdomain.com": {},
	"youtube.com":    {},
	"sentry.io":      {},
}

var (
	standardEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// "local @ domain . tld" with arbitrary spacing around separators.
	spacedEmailRe = regexp.MustCompile(`([a-zA-Z0-9._%+\-]+)\s*@\s*([a-zA-Z0-9\-]+(?:\s*\.\s*[a-zA-Z0-9\-]+)*)\s*\.\s*([a-zA-Z]{2,})`)
	// "local at domain dot tld" obfuscation, with optional brackets.
	textualEmailRe = regexp.MustCompile(`(?i)([a-z0-9._%+\-]+)\s+(?:at|\(at\)|\[at\])\s+([a-z0-9\-]+(?:\s+(?:dot|\(dot\)|\[dot\])\s+[a-z0-9\-]+)*)\s+(?:dot|\(dot\)|\[dot\])\s+([a-z]{2,})\b`)

	textualDotRe = regexp.MustCompile(`(?i)\s+(?:dot|\(dot\)|\[dot\])\s+`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// Emails unions the matches of the standard, spaced, and textual patterns,
// normalizes to lowercase, deduplicates, and drops placeholder domains.
// Pattern order carries no priority.
func Emails(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(email string) {
		email = strings.ToLower(email)
		if !plausibleEmail(email) {
			return
		}
		if _, dup := seen[email]; dup {
			return
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}

	for _, m := range standardEmailRe.FindAllString(text, -1) {
		add(strings.Trim(m, "."))
	}
	for _, m := range spacedEmailRe.FindAllStringSubmatch(text, -1) {
		domain := spacesRe.ReplaceAllString(m[2], "")
		add(m[1] + "@" + domain + "." + m[3])
	}
	for _, m := range textualEmailRe.FindAllStringSubmatch(text, -1) {
		domain := textualDotRe.ReplaceAllString(m[2], ".")
		domain = spacesRe.ReplaceAllString(domain, "")
		add(m[1] + "@" + domain + "." + m[3])
	}
	return out
}

func plausibleEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}
	if _, blocked := blockedEmailDomains[domain]; blocked {
		return false
	}
	return true
}
