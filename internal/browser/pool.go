// Package browser manages a bounded pool of headless browser sessions.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/metrics"
)

// ErrPoolExhausted is returned when no session frees up within the
// acquisition ceiling.
var ErrPoolExhausted = errors.New("browser pool exhausted")

const acquireRepollInterval = 500 * time.Millisecond

// Config controls pool sizing and eviction behavior.
type Config struct {
	MaxSessions    int
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
	SweepInterval  time.Duration
	NavTimeout     time.Duration
	UserAgent      string
}

func (c Config) withDefaults() Config {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 3
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 20 * time.Second
	}
	return c
}

// launcher abstracts session creation so tests can avoid spawning Chrome.
type launcher interface {
	newSession(index int) (*Session, error)
}

// Pool owns up to MaxSessions exclusive browser sessions. Sessions are
// created lazily, reused by affinity key, and idle-evicted by a background
// sweep that always keeps at least one instance alive.
type Pool struct {
	cfg      Config
	launcher launcher
	logger   *zap.Logger

	mu      sync.Mutex
	slots   []*Session
	nextIdx int
	closed  bool

	allocCancel context.CancelFunc
	sweepStop   chan struct{}
	closeOnce   sync.Once
}

// NewPool creates a Pool backed by a shared chromedp exec allocator. The
// first browser process is not spawned until the first Acquire.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	p := &Pool{
		cfg:         cfg,
		launcher:    &chromedpLauncher{allocator: allocCtx, navTimeout: cfg.NavTimeout},
		logger:      logger,
		allocCancel: allocCancel,
		sweepStop:   make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// newPoolWithLauncher is the test seam; it skips the exec allocator.
func newPoolWithLauncher(cfg Config, l launcher, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	p := &Pool{
		cfg:         cfg,
		launcher:    l,
		logger:      logger,
		allocCancel: func() {},
		sweepStop:   make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Acquire returns an exclusive session, preferring one whose idle affinity
// matches affinityKey. When the pool is full and busy it repolls every
// 500ms until a session frees or the acquisition ceiling elapses.
func (p *Pool) Acquire(ctx context.Context, affinityKey string) (*Session, error) {
	start := time.Now()
	deadline := start.Add(p.cfg.AcquireTimeout)
	for {
		s, err := p.tryAcquire(affinityKey)
		if err != nil {
			return nil, err
		}
		if s != nil {
			metrics.ObserveAcquireWait(time.Since(start))
			p.publishGauges()
			return s, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no session freed within %s", ErrPoolExhausted, p.cfg.AcquireTimeout)
		}
		timer := time.NewTimer(acquireRepollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("acquire canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (p *Pool) tryAcquire(affinityKey string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("browser pool is closed")
	}

	if affinityKey != "" {
		for _, s := range p.slots {
			if !s.inUse && s.affinityKey == affinityKey {
				return p.checkout(s, affinityKey), nil
			}
		}
	}
	for _, s := range p.slots {
		if !s.inUse {
			return p.checkout(s, affinityKey), nil
		}
	}
	if len(p.slots) < p.cfg.MaxSessions {
		s, err := p.launcher.newSession(p.nextIdx)
		if err != nil {
			return nil, fmt.Errorf("create browser session: %w", err)
		}
		p.nextIdx++
		p.slots = append(p.slots, s)
		p.logger.Debug("browser session created", zap.Int("slot", s.index))
		return p.checkout(s, affinityKey), nil
	}
	return nil, nil
}

func (p *Pool) checkout(s *Session, affinityKey string) *Session {
	s.inUse = true
	s.lastUsedAt = time.Now()
	if affinityKey != "" {
		s.affinityKey = affinityKey
	}
	return s
}

// Release returns a session to the pool. The affinity key is retained so a
// follow-up Acquire with the same key reuses the warm session.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	s.inUse = false
	s.lastUsedAt = time.Now()
	p.mu.Unlock()
	p.publishGauges()
}

// Stats reports the number of open and checked-out sessions.
func (p *Pool) Stats() (open, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if s.inUse {
			inUse++
		}
	}
	return len(p.slots), inUse
}

// CloseAll stops the eviction sweep and force-closes every session. It is
// safe to call multiple times.
func (p *Pool) CloseAll() {
	p.closeOnce.Do(func() {
		close(p.sweepStop)
		p.mu.Lock()
		p.closed = true
		slots := p.slots
		p.slots = nil
		p.mu.Unlock()
		for _, s := range slots {
			if err := s.close(); err != nil {
				p.logger.Warn("browser session close failed", zap.Int("slot", s.index), zap.Error(err))
			}
		}
		p.allocCancel()
		p.publishGauges()
	})
}

func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.sweepStop:
			return
		case <-ticker.C:
			p.sweepIdle(time.Now())
		}
	}
}

// sweepIdle closes sessions idle beyond the threshold, always keeping at
// least one instance alive.
func (p *Pool) sweepIdle(now time.Time) {
	var evicted []*Session
	p.mu.Lock()
	if p.closed || len(p.slots) <= 1 {
		p.mu.Unlock()
		return
	}
	kept := p.slots[:0]
	for _, s := range p.slots {
		idle := !s.inUse && now.Sub(s.lastUsedAt) >= p.cfg.IdleTimeout
		if idle && len(p.slots)-len(evicted) > 1 {
			evicted = append(evicted, s)
			continue
		}
		kept = append(kept, s)
	}
	p.slots = kept
	p.mu.Unlock()

	for _, s := range evicted {
		if err := s.close(); err != nil {
			p.logger.Warn("idle session close failed", zap.Int("slot", s.index), zap.Error(err))
		} else {
			p.logger.Debug("idle session evicted", zap.Int("slot", s.index))
		}
	}
	if len(evicted) > 0 {
		p.publishGauges()
	}
}

func (p *Pool) publishGauges() {
	open, inUse := p.Stats()
	metrics.SetPoolSessions(open, inUse)
}
