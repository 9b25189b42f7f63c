// Package report buckets monitored domains by days until expiry and renders
// the HTML report sent to the operator.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/domain"
	"github.com/mallocator/domain-mon/pkg/logger"
	"github.com/mallocator/domain-mon/pkg/state"
)

// Bucket groups domains by days until expiry
type Bucket int

const (
	Expired Bucket = iota
	Within7
	Within28
	Within90
	Beyond90
	Errors
	numBuckets
)

// errorDescription is shown for domains without a known expiry date
const errorDescription = "Unable to find renewal date."

// Entry is one row of the report
type Entry struct {
	Domain string
	Expiry string
	Days   int
	Err    bool
}

// Report is the bucketed view of the store at a point in time
type Report struct {
	Now     time.Time
	Total   int
	Buckets [numBuckets][]Entry
}

// Options control what Render includes
type Options struct {
	// Full adds domains expiring in more than 90 days
	Full bool
	// Headers prepends email headers when sender and recipient are configured
	Headers bool
}

// Generator builds reports from the expiry store
type Generator struct {
	cfg   *config.Config
	log   *logger.Logger
	state state.Backend
}

// New creates a new report generator
func New(cfg *config.Config, log *logger.Logger, backend state.Backend) *Generator {
	return &Generator{
		cfg:   cfg,
		log:   log,
		state: backend,
	}
}

// Generate drops store entries for domains no longer monitored, saving the
// store if anything was removed, and renders the report.
func (g *Generator) Generate(ctx context.Context, store *state.Store, list domain.List, now time.Time, opts Options) (string, error) {
	if removed := Prune(store, list); len(removed) > 0 {
		g.log.Infof("Removing %d domain(s) no longer in the monitoring list: %v", len(removed), removed)
		if err := g.state.SaveStore(ctx, store); err != nil {
			return "", fmt.Errorf("saving pruned expiry store: %w", err)
		}
	}

	r, err := Build(store, list, now.In(g.cfg.Location()))
	if err != nil {
		return "", err
	}
	return g.Render(r, opts), nil
}

// Prune removes store entries for domains missing from list
func Prune(store *state.Store, list domain.List) []string {
	return store.Prune(list.Contains)
}

// Build computes days until expiry for every stored domain and sorts the
// entries into buckets, earliest expiry first.
func Build(store *state.Store, list domain.List, now time.Time) (*Report, error) {
	entries := make([]Entry, 0, store.Len())
	for _, d := range store.Domains() {
		rec, _ := store.Get(d)
		if rec.IsNotFound() {
			entries = append(entries, Entry{Domain: d, Expiry: errorDescription, Err: true})
			continue
		}
		expiry, err := rec.Time(now.Location())
		if err != nil {
			return nil, fmt.Errorf("expiry date for %s: %w", d, err)
		}
		date, _ := rec.Date()
		entries = append(entries, Entry{Domain: d, Expiry: date, Days: DaysUntil(now, expiry)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Err != b.Err {
			return !a.Err
		}
		if a.Expiry != b.Expiry {
			return a.Expiry < b.Expiry
		}
		return a.Days < b.Days
	})

	r := &Report{Now: now, Total: len(list)}
	for _, e := range entries {
		b := Errors
		if !e.Err {
			b = Classify(e.Days)
		}
		r.Buckets[b] = append(r.Buckets[b], e)
	}
	return r, nil
}

// DaysUntil returns the whole days from now until expiry on the wall clock
// of now's location, negative once expired. Partial days are dropped, so an
// expiry later today is 0. DST changes in between do not shift the count.
func DaysUntil(now, expiry time.Time) int {
	return int(wallClock(expiry.In(now.Location())).Sub(wallClock(now)) / (24 * time.Hour))
}

// wallClock returns t's local date and time read as UTC
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Classify returns the bucket for a day count
func Classify(days int) Bucket {
	switch {
	case days < 0:
		return Expired
	case days <= 7:
		return Within7
	case days <= 28:
		return Within28
	case days <= 90:
		return Within90
	default:
		return Beyond90
	}
}

// HasDue reports whether any domain is expired or due within 90 days
func (r *Report) HasDue() bool {
	for b := Expired; b <= Within90; b++ {
		if len(r.Buckets[b]) > 0 {
			return true
		}
	}
	return false
}
