// Package enrich runs the multi-source contact enrichment pipeline.
package enrich

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/extract"
	"github.com/creatorscout/creatorscout/internal/metrics"
	"github.com/creatorscout/creatorscout/internal/scout"
)

// Email attribution sources, in pipeline order.
const (
	SourceSelfAbout = "self_about"
	SourceSelfItems = "self_items"
	SourceInstagram = "instagram"
	SourceLinkedIn  = "linkedin"
	SourceWebsite   = "website"
)

// Config bounds one orchestrator run.
type Config struct {
	// MaxRecentItems is how many recent content items to open for emails.
	MaxRecentItems int
	// MaxContactPages is how many same-host contact pages the website
	// harvester may open beyond the root.
	MaxContactPages int
	// NavTimeout bounds each surface navigation.
	NavTimeout time.Duration
	// PaceMin/PaceMax bound the randomized pause between successive item
	// and contact-page visits. PaceMax <= 0 disables pacing.
	PaceMin time.Duration
	PaceMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRecentItems <= 0 {
		c.MaxRecentItems = 3
	}
	if c.MaxContactPages <= 0 {
		c.MaxContactPages = 3
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 15 * time.Second
	}
	if c.PaceMin == 0 && c.PaceMax == 0 {
		c.PaceMin = time.Second
		c.PaceMax = 3 * time.Second
	}
	return c
}

// WebsiteHarvester fetches a creator's own website for contact emails.
// The colly-backed implementation is in this package.
type WebsiteHarvester interface {
	Harvest(ctx context.Context, rootURL string) ([]string, error)
}

// Archiver optionally persists raw page snapshots for later re-extraction.
type Archiver interface {
	Archive(ctx context.Context, surface, pageURL string, body []byte)
}

// Orchestrator runs the fixed-order enrichment steps for one channel. Every
// step is best effort: a failing surface is logged and skipped, and whatever
// the remaining surfaces produce still counts.
type Orchestrator struct {
	profiles scout.Visitor
	website  WebsiteHarvester
	archiver Archiver
	cfg      Config
	logger   *zap.Logger
}

// NewOrchestrator builds an Orchestrator. profiles navigates JS-rendered
// surfaces; website may be nil to skip step 5; archiver may be nil.
func NewOrchestrator(profiles scout.Visitor, website WebsiteHarvester, archiver Archiver, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Orchestrator{
		profiles: profiles,
		website:  website,
		archiver: archiver,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Enrich runs all five steps for ch. The returned error is non-nil only
// when the primary about surface failed and nothing else was recovered,
// which is the signal for the job queue to retry.
func (o *Orchestrator) Enrich(ctx context.Context, ch scout.Channel) (scout.EnrichmentFacts, error) {
	facts := scout.EnrichmentFacts{Emails: scout.NewSourceMap()}

	aboutErr := o.aboutSurface(ctx, ch, &facts)
	o.recentItems(ctx, ch, &facts)

	if link := o.socialLink(ch, facts, SourceInstagram); link != "" {
		o.profileSurface(ctx, link, SourceInstagram, &facts)
	}
	if link := o.socialLink(ch, facts, SourceLinkedIn); link != "" {
		o.profileSurface(ctx, link, SourceLinkedIn, &facts)
	}
	if root := o.socialLink(ch, facts, SourceWebsite); root != "" && o.website != nil {
		o.websiteSurface(ctx, root, &facts)
	}

	if aboutErr != nil && facts.Emails.Len() == 0 && facts.Subscribers == nil {
		return facts, fmt.Errorf("about surface: %w", aboutErr)
	}
	return facts, nil
}

// aboutSurface harvests counts, description, country, emails, and outbound
// links from the channel's about page.
func (o *Orchestrator) aboutSurface(ctx context.Context, ch scout.Channel, facts *scout.EnrichmentFacts) error {
	aboutURL := strings.TrimRight(ch.CanonicalURL, "/") + "/about"
	visit, err := o.profiles.Visit(ctx, aboutURL, o.cfg.NavTimeout)
	if err != nil {
		metrics.ObserveSurfaceVisit(SourceSelfAbout, "error")
		o.logger.Warn("about surface failed", zap.String("channel", ch.ID), zap.Error(err))
		return err
	}
	metrics.ObserveSurfaceVisit(SourceSelfAbout, "ok")
	o.archive(ctx, SourceSelfAbout, aboutURL, visit.HTML)

	counts := extract.Counts(visit.Text, visit.HTML)
	facts.Subscribers = counts.Audience
	facts.Videos = counts.Items
	facts.Views = counts.Views
	facts.Description = aboutDescription(visit.Text)
	facts.Country = aboutCountry(visit.Text)

	inserted := facts.Emails.InsertAll(extract.Emails(visit.Text), SourceSelfAbout)
	metrics.ObserveEmailsFound(SourceSelfAbout, inserted)

	if links := extract.OutboundLinks(visit.Text, visit.HTML); len(links) > 0 {
		facts.SocialLinks = links
	}
	return nil
}

// itemExpandSelector matches the "more" control that unfolds a truncated
// item description.
const itemExpandSelector = "tp-yt-paper-button#expand"

// recentItems opens up to MaxRecentItems recent content items, expands each
// truncated description, and scans the expanded text for emails.
func (o *Orchestrator) recentItems(ctx context.Context, ch scout.Channel, facts *scout.EnrichmentFacts) {
	listURL := strings.TrimRight(ch.CanonicalURL, "/") + "/videos"
	visit, err := o.profiles.Visit(ctx, listURL, o.cfg.NavTimeout)
	if err != nil {
		metrics.ObserveSurfaceVisit(SourceSelfItems, "error")
		o.logger.Warn("item listing failed", zap.String("channel", ch.ID), zap.Error(err))
		return
	}
	for i, itemURL := range contentItemURLs(visit.HTML, o.cfg.MaxRecentItems) {
		if i > 0 {
			pause(ctx, o.cfg.PaceMin, o.cfg.PaceMax)
		}
		item, err := o.profiles.VisitExpanded(ctx, itemURL, itemExpandSelector, o.cfg.NavTimeout)
		if err != nil {
			metrics.ObserveSurfaceVisit(SourceSelfItems, "error")
			o.logger.Debug("item visit failed", zap.String("url", itemURL), zap.Error(err))
			continue
		}
		metrics.ObserveSurfaceVisit(SourceSelfItems, "ok")
		o.archive(ctx, SourceSelfItems, itemURL, item.HTML)
		inserted := facts.Emails.InsertAll(extract.Emails(item.Text), SourceSelfItems)
		metrics.ObserveEmailsFound(SourceSelfItems, inserted)
	}
}

// profileSurface harvests emails from one linked external profile.
func (o *Orchestrator) profileSurface(ctx context.Context, pageURL, source string, facts *scout.EnrichmentFacts) {
	visit, err := o.profiles.Visit(ctx, pageURL, o.cfg.NavTimeout)
	if err != nil {
		metrics.ObserveSurfaceVisit(source, "error")
		o.logger.Debug("profile surface failed", zap.String("surface", source),
			zap.String("url", pageURL), zap.Error(err))
		return
	}
	metrics.ObserveSurfaceVisit(source, "ok")
	o.archive(ctx, source, pageURL, visit.HTML)
	inserted := facts.Emails.InsertAll(extract.Emails(visit.Text), source)
	metrics.ObserveEmailsFound(source, inserted)
}

func (o *Orchestrator) websiteSurface(ctx context.Context, root string, facts *scout.EnrichmentFacts) {
	emails, err := o.website.Harvest(ctx, root)
	if err != nil {
		metrics.ObserveSurfaceVisit(SourceWebsite, "error")
		o.logger.Debug("website harvest failed", zap.String("url", root), zap.Error(err))
		return
	}
	metrics.ObserveSurfaceVisit(SourceWebsite, "ok")
	inserted := facts.Emails.InsertAll(emails, SourceWebsite)
	metrics.ObserveEmailsFound(SourceWebsite, inserted)
}

// socialLink resolves a platform link from this run's extraction first,
// falling back to links already stored on the channel.
func (o *Orchestrator) socialLink(ch scout.Channel, facts scout.EnrichmentFacts, platform string) string {
	if link, ok := facts.SocialLinks[platform]; ok {
		return link
	}
	return ch.SocialLinks[platform]
}

func (o *Orchestrator) archive(ctx context.Context, surface, pageURL, html string) {
	if o.archiver == nil || html == "" {
		return
	}
	o.archiver.Archive(ctx, surface, pageURL, []byte(html))
}

// pause sleeps for a random duration in [min, max], returning early when
// the context is canceled. max <= 0 disables pacing.
func pause(ctx context.Context, min, max time.Duration) {
	if max <= 0 {
		return
	}
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

var contentItemRe = regexp.MustCompile(`(?:watch\?v=|/shorts/)([a-zA-Z0-9_-]{8,})`)

// contentItemURLs pulls up to max unique content-item URLs from the channel
// item listing, preserving page order.
func contentItemURLs(html string, max int) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range contentItemRe.FindAllStringSubmatch(html, -1) {
		id := m[1]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		urls = append(urls, "https://www.youtube.com/watch?v="+id)
		if len(urls) >= max {
			break
		}
	}
	return urls
}

var countryInlineRe = regexp.MustCompile(`(?im)^\s*(?:country|location)\s*:\s*(\S.*)$`)

// aboutCountry pulls the declared country off the about page text, accepting
// both "Country: X" inline form and a label line followed by the value.
func aboutCountry(text string) string {
	if m := countryInlineRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		label := strings.ToLower(strings.TrimSpace(line))
		if label != "country" && label != "location" {
			continue
		}
		for _, next := range lines[i+1:] {
			if v := strings.TrimSpace(next); v != "" {
				return v
			}
		}
	}
	return ""
}

var descriptionTerminators = map[string]struct{}{
	"links": {}, "channel details": {}, "stats": {}, "more info": {}, "details": {},
}

// aboutDescription pulls the free-text description block from the about
// page, stopping at the next section heading.
func aboutDescription(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), "description") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}
	var out []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if _, terminal := descriptionTerminators[lower]; terminal {
			break
		}
		if trimmed == "" && len(out) > 0 {
			break
		}
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
