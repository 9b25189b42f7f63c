// Package domain holds the monitored domain list and the round-robin
// processor that refreshes expiry dates a few domains at a time.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/logger"
	"github.com/mallocator/domain-mon/pkg/state"
)

// ExpiryChecker resolves the expiry record of a single domain
type ExpiryChecker interface {
	GetExpiry(ctx context.Context, domain string) state.Record
}

// Processor handles domain processing operations
type Processor struct {
	cfg   *config.Config
	log   *logger.Logger
	whois ExpiryChecker
	state state.Backend
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new domain processor
func New(cfg *config.Config, log *logger.Logger, whoisChecker ExpiryChecker, backend state.Backend) *Processor {
	return &Processor{
		cfg:   cfg,
		log:   log,
		whois: whoisChecker,
		state: backend,
		sleep: sleepContext,
	}
}

// Update refreshes up to count domains starting at the persisted cursor,
// then saves the store and the advanced cursor. Nothing is saved when the
// run is interrupted.
func (p *Processor) Update(ctx context.Context, count int, list List, store *state.Store) (string, error) {
	cursor, err := p.state.LoadCursor(ctx)
	if err != nil {
		return "", fmt.Errorf("loading cursor: %w", err)
	}

	next, err := p.Run(ctx, count, list, store, cursor)
	if err != nil {
		return "", err
	}

	if err := p.state.SaveStore(ctx, store); err != nil {
		return "", fmt.Errorf("saving expiry store: %w", err)
	}
	if err := p.state.SaveCursor(ctx, next); err != nil {
		return "", fmt.Errorf("saving cursor: %w", err)
	}
	return next, nil
}

// Run checks count domains round-robin from cursor, recording each result in
// store, and returns the domain the next run should start with.
func (p *Processor) Run(ctx context.Context, count int, list List, store *state.Store, cursor string) (string, error) {
	if len(list) == 0 {
		return "", fmt.Errorf("empty domain list")
	}
	if count > len(list) {
		count = len(list)
	}

	p.log.Infof("Updating %d domain(s)...", count)
	pos := p.StartPosition(list, cursor)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p.ProcessDomain(ctx, list[pos], store)

		pos++
		if pos == len(list) {
			p.log.Debugf("Reached end of domain list, resetting head to start")
			pos = 0
		}

		if i == count-1 || len(list) == 1 || p.cfg.Wait == 0 {
			continue
		}
		p.log.Debugf("Sleeping for %s...", p.cfg.Wait)
		if err := p.sleep(ctx, p.cfg.Wait); err != nil {
			return "", err
		}
	}

	next := list[pos]
	p.log.Infof("Updated %d domain(s). Setting head to '%s' (position %d).", count, next, pos)
	return next, nil
}

// StartPosition resolves the cursor domain to its position in list. A
// cursor that is missing from the list restarts at the first domain.
func (p *Processor) StartPosition(list List, cursor string) int {
	if cursor == "" {
		return 0
	}
	pos, ok := list.Index(cursor)
	if !ok {
		p.log.Warnf("Domain under head ('%s') cannot be found (it may have been removed from the domains list) - resetting head to 0.", cursor)
		return 0
	}
	p.log.Debugf("Domain under head (%s) found at position %d.", cursor, pos)
	return pos
}

// ProcessDomain looks up a single domain and records the result
func (p *Processor) ProcessDomain(ctx context.Context, domain string, store *state.Store) {
	store.Set(domain, p.whois.GetExpiry(ctx, domain))
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
