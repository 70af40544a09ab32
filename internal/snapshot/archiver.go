// Package snapshot archives raw page markup for later re-extraction.
package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// Archiver writes visited-page snapshots to a blob store, keyed by content
// hash so re-visits of unchanged pages are stored once. Archival is strictly
// best effort: failures are logged and never surface to the caller.
type Archiver struct {
	store  scout.BlobStore
	hasher scout.Hasher
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	stored map[string]struct{}
}

// New builds an Archiver writing under prefix.
func New(store scout.BlobStore, hasher scout.Hasher, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "pages"
	}
	return &Archiver{
		store:  store,
		hasher: hasher,
		prefix: prefix,
		stored: make(map[string]struct{}),
		logger: logger,
	}
}

// Archive stores one page body under <prefix>/<surface>/<host>/<hash>.html.
func (a *Archiver) Archive(ctx context.Context, surface, pageURL string, body []byte) {
	if len(body) == 0 {
		return
	}
	digest, err := a.hasher.Hash(body)
	if err != nil {
		a.logger.Warn("snapshot hash failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	a.mu.Lock()
	if _, dup := a.stored[digest]; dup {
		a.mu.Unlock()
		return
	}
	a.stored[digest] = struct{}{}
	a.mu.Unlock()

	path := fmt.Sprintf("%s/%s/%s/%s.html", a.prefix, surface, hostOf(pageURL), digest)
	uri, err := a.store.PutObject(ctx, path, "text/html", body)
	if err != nil {
		a.logger.Warn("snapshot store failed", zap.String("url", pageURL), zap.Error(err))
		a.mu.Lock()
		delete(a.stored, digest)
		a.mu.Unlock()
		return
	}
	a.logger.Debug("snapshot archived", zap.String("url", pageURL), zap.String("uri", uri))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
