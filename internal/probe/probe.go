// Package probe runs the background loop of the service: it checks that the
// transit API answers and prunes idle sessions.
package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campuspulse/internal/domain"
)

type UpstreamChecker interface {
	Locations(ctx context.Context, query string, results int) ([]domain.StopCandidate, error)
}

// Pruner removes idle sessions and returns their ids. Stores with native
// expiry do not need one.
type Pruner interface {
	PruneStale() []string
}

type Broadcaster interface {
	Publish(sessionID string, commands []domain.SurfaceCommand)
}

type Probe struct {
	upstream    UpstreamChecker
	pruner      Pruner
	broadcaster Broadcaster
	query       string
	interval    time.Duration
	timeout     time.Duration
	logger      *slog.Logger

	ready       bool
	lastError   string
	lastChecked time.Time
	readyMu     sync.RWMutex
}

// New creates a probe that searches for query every interval.
func New(upstream UpstreamChecker, pruner Pruner, broadcaster Broadcaster, query string, interval, timeout time.Duration, logger *slog.Logger) *Probe {
	return &Probe{
		upstream:    upstream,
		pruner:      pruner,
		broadcaster: broadcaster,
		query:       query,
		interval:    interval,
		timeout:     timeout,
		logger:      logger.With("component", "probe"),
	}
}

func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(p.interval * 3)
	defer pruneTicker.Stop()

	p.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		case <-pruneTicker.C:
			p.prune()
		}
	}
}

func (p *Probe) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	candidates, err := p.upstream.Locations(ctx, p.query, 1)

	p.readyMu.Lock()
	wasReady := p.ready
	p.ready = err == nil
	p.lastChecked = start
	if err != nil {
		p.lastError = err.Error()
	} else {
		p.lastError = ""
	}
	p.readyMu.Unlock()

	switch {
	case err != nil && wasReady:
		p.logger.Error("upstream became unavailable", "error", err)
	case err != nil:
		p.logger.Warn("upstream check failed", "error", err)
	case !wasReady:
		p.logger.Info("upstream ready", "candidates", len(candidates), "latency", time.Since(start))
	default:
		p.logger.Debug("upstream check completed", "latency", time.Since(start))
	}
}

func (p *Probe) prune() {
	if p.pruner == nil {
		return
	}
	ids := p.pruner.PruneStale()
	if len(ids) == 0 {
		return
	}
	if p.broadcaster != nil {
		for _, id := range ids {
			p.broadcaster.Publish(id, []domain.SurfaceCommand{{Type: domain.CommandSessionEnded}})
		}
	}
	p.logger.Info("pruned idle sessions", "count", len(ids))
}

func (p *Probe) IsReady() bool {
	p.readyMu.RLock()
	defer p.readyMu.RUnlock()
	return p.ready
}

// Status reports the outcome of the latest check.
type Status struct {
	Ready       bool      `json:"ready"`
	LastError   string    `json:"lastError,omitempty"`
	LastChecked time.Time `json:"lastChecked"`
}

func (p *Probe) Status() Status {
	p.readyMu.RLock()
	defer p.readyMu.RUnlock()
	return Status{Ready: p.ready, LastError: p.lastError, LastChecked: p.lastChecked}
}
