// Package extract contains stateless parsers that turn rendered page text
// and markup into structured facts. Missing data is never an error; absent
// fields are simply nil so callers can fall back to other sources.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// CountSet carries the numeric facts extracted from a channel surface.
type CountSet struct {
	Audience *int64
	Items    *int64
	Views    *int64
}

// Sanity bounds per field; values outside are treated as parser noise.
const (
	minAudience = 1
	maxAudience = 10_000_000_000
	maxItems    = 1_000_000
	maxViews    = 10_000_000_000_000
)

var (
	audienceUnits = []string{"subscribers", "subscriber", "followers", "follower"}
	itemUnits     = []string{"videos", "video", "uploads"}
	viewUnits     = []string{"views", "view"}

	numericToken = `([0-9][0-9.,]*)\s*([KMBkmb]?)`

	metaAudienceRe = regexp.MustCompile(`(?i)content="([0-9][0-9.,]*\s*[KMB]?)\s+(?:subscribers|followers)`)
	metaViewsRe    = regexp.MustCompile(`(?i)content="([0-9][0-9.,]*\s*[KMB]?)\s+views`)
)

// countStrategy is one partial parser in a prioritized chain: first
// strategy to produce a value wins its field, strategies never
// cross-validate.
type countStrategy func(text, html string) *int64

// Counts applies, in order, a labeled-row lookup, a whole-page line scan,
// and a meta-tag scan for each field.
func Counts(text, html string) CountSet {
	return CountSet{
		Audience: firstHit(text, html, minAudience, maxAudience,
			labeledRowStrategy(audienceUnits),
			lineScanStrategy(audienceUnits),
			metaStrategy(metaAudienceRe),
		),
		Items: firstHit(text, html, 0, maxItems,
			labeledRowStrategy(itemUnits),
			lineScanStrategy(itemUnits),
		),
		Views: firstHit(text, html, 0, maxViews,
			labeledRowStrategy(viewUnits),
			lineScanStrategy(viewUnits),
			metaStrategy(metaViewsRe),
		),
	}
}

func firstHit(text, html string, lo, hi int64, strategies ...countStrategy) *int64 {
	for _, s := range strategies {
		if v := s(text, html); v != nil && *v >= lo && *v <= hi {
			return v
		}
	}
	return nil
}

// labeledRowStrategy matches stat rows where the number and unit share one
// line, e.g. "1.2M subscribers".
func labeledRowStrategy(units []string) countStrategy {
	res := make([]*regexp.Regexp, len(units))
	for i, unit := range units {
		res[i] = regexp.MustCompile(`(?i)^\s*` + numericToken + `\s+` + unit + `\b`)
	}
	return func(text, _ string) *int64 {
		for _, line := range strings.Split(text, "\n") {
			for _, re := range res {
				if m := re.FindStringSubmatch(line); m != nil {
					if v, ok := parseNumericToken(m[1], m[2]); ok {
						return &v
					}
				}
			}
		}
		return nil
	}
}

// lineScanStrategy scans the whole page for a numeric token immediately
// adjacent to a unit word, anywhere in a line.
func lineScanStrategy(units []string) countStrategy {
	res := make([]*regexp.Regexp, len(units))
	for i, unit := range units {
		res[i] = regexp.MustCompile(`(?i)` + numericToken + `\s+` + unit + `\b`)
	}
	return func(text, _ string) *int64 {
		for _, re := range res {
			if m := re.FindStringSubmatch(text); m != nil {
				if v, ok := parseNumericToken(m[1], m[2]); ok {
					return &v
				}
			}
		}
		return nil
	}
}

func metaStrategy(re *regexp.Regexp) countStrategy {
	return func(_, html string) *int64 {
		if html == "" {
			return nil
		}
		m := re.FindStringSubmatch(html)
		if m == nil {
			return nil
		}
		token := strings.TrimSpace(m[1])
		suffix := ""
		if n := len(token); n > 0 {
			switch token[n-1] {
			case 'K', 'M', 'B', 'k', 'm', 'b':
				suffix = string(token[n-1])
				token = strings.TrimSpace(token[:n-1])
			}
		}
		if v, ok := parseNumericToken(token, suffix); ok {
			return &v
		}
		return nil
	}
}

// parseNumericToken converts "1.2" + "M" style tokens into an absolute
// count using K=1e3, M=1e6, B=1e9 multipliers.
func parseNumericToken(digits, suffix string) (int64, bool) {
	digits = strings.ReplaceAll(digits, ",", "")
	digits = strings.TrimRight(digits, ".")
	if digits == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(suffix) {
	case "K":
		f *= 1e3
	case "M":
		f *= 1e6
	case "B":
		f *= 1e9
	case "":
	default:
		return 0, false
	}
	return int64(f), true
}
