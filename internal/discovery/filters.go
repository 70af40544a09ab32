// Package discovery implements the keyword discovery crawler and its
// session protocol.
package discovery

import (
	"strings"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// Verdict is the outcome of testing one channel against active filters.
type Verdict int

// Verdict values. Unknown means enrichment produced no audience count, so
// the channel is skipped for filtering purposes rather than counted as a
// pass or a fail.
const (
	VerdictPass Verdict = iota
	VerdictFail
	VerdictUnknown
)

// Keyword tables for the two heuristic exclusions. Matching is
// case-insensitive substring matching over name and description.
var (
	musicKeywords = []string{
		"official music", "music video", "records", "recordings", "record label",
		"label", "vevo", "new single", "new album", "discography",
	}
	// Tutorial/education/production contexts cancel the music exclusion:
	// a channel teaching music production is a creator, not a label.
	musicOverrides = []string{
		"tutorial", "lesson", "how to", "learn", "course", "education",
		"production", "producer", "cover", "review",
	}

	brandKeywords = []string{
		" inc", " llc", " ltd", " corp", "corporation", " gmbh",
		"official store", "official brand", "we are", "our team", "our company",
		"brand store", "headquarters",
	}
	creatorOverrides = []string{
		"vlog", "creator", "influencer", "youtuber", "my channel",
		"follow my", "i make", "i share", "solo",
	}
)

// brandAudienceThreshold is the audience count above which a channel is
// presumed corporate unless its description signals an individual creator
// or its name is short.
const brandAudienceThreshold = 5_000_000

// Evaluate tests one (possibly enriched) channel against the active
// filters. Subscriber bounds are inclusive; a missing audience count with
// subscriber bounds set yields VerdictUnknown. A missing country excludes
// the channel whenever a country filter is set.
func Evaluate(ch scout.Channel, f scout.DiscoveryFilters) Verdict {
	if f.MinSubscribers != nil || f.MaxSubscribers != nil {
		if ch.Subscribers == nil {
			return VerdictUnknown
		}
		if f.MinSubscribers != nil && *ch.Subscribers < *f.MinSubscribers {
			return VerdictFail
		}
		if f.MaxSubscribers != nil && *ch.Subscribers > *f.MaxSubscribers {
			return VerdictFail
		}
	}
	if f.Country != "" {
		if ch.Country == "" || !strings.EqualFold(ch.Country, f.Country) {
			return VerdictFail
		}
	}
	if f.ExcludeMusic && IsMusicChannel(ch.Name, ch.Description) {
		return VerdictFail
	}
	if f.ExcludeBrands && IsBrandChannel(ch.Name, ch.Description, ch.Subscribers) {
		return VerdictFail
	}
	return VerdictPass
}

// IsMusicChannel reports whether the name/description look like a music
// act or label rather than an individual creator.
func IsMusicChannel(name, description string) bool {
	haystack := strings.ToLower(name + " " + description)
	if !containsAny(haystack, musicKeywords) {
		return false
	}
	return !containsAny(haystack, musicOverrides)
}

// IsBrandChannel reports whether the channel looks corporate. Beyond the
// keyword match, an audience count above brandAudienceThreshold is
// presumptively a brand unless overridden.
func IsBrandChannel(name, description string, audience *int64) bool {
	haystack := strings.ToLower(name + " " + description)
	if containsAny(strings.ToLower(description), creatorOverrides) {
		return false
	}
	if containsAny(haystack, brandKeywords) {
		return true
	}
	if audience != nil && *audience > brandAudienceThreshold && !shortName(name) {
		return true
	}
	return false
}

// shortName treats one- or two-word names as personal names, which are
// common for very large individual creators.
func shortName(name string) bool {
	return len(strings.Fields(name)) <= 2
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
