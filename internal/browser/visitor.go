package browser

import (
	"context"
	"time"

	"github.com/creatorscout/creatorscout/internal/metrics"
	"github.com/creatorscout/creatorscout/internal/scout"
)

// PooledVisitor adapts the session pool to scout.Visitor. Each Visit checks
// out a session keyed by the target host, so repeated visits to the same
// site reuse a warm browser.
type PooledVisitor struct {
	pool *Pool
}

// NewPooledVisitor wraps a pool.
func NewPooledVisitor(pool *Pool) *PooledVisitor {
	return &PooledVisitor{pool: pool}
}

// Visit acquires a session, navigates, and releases the session.
func (v *PooledVisitor) Visit(ctx context.Context, url string, timeout time.Duration) (scout.PageVisit, error) {
	s, err := v.pool.Acquire(ctx, metrics.SanitizeSite(url))
	if err != nil {
		return scout.PageVisit{}, err
	}
	defer v.pool.Release(s)
	return s.Visit(ctx, url, timeout)
}

// VisitExpanded navigates and expands the control matching selector before
// reading, all within one session checkout.
func (v *PooledVisitor) VisitExpanded(ctx context.Context, url, selector string, timeout time.Duration) (scout.PageVisit, error) {
	s, err := v.pool.Acquire(ctx, metrics.SanitizeSite(url))
	if err != nil {
		return scout.PageVisit{}, err
	}
	defer v.pool.Release(s)
	return s.VisitExpanded(ctx, url, selector, timeout)
}
