// Package memberapi resolves the §9 open question the source marks FIXME:
// when to trust a stale MemberSnapshot versus re-scrape the federation's
// membership page. internal/category and internal/pending both need a
// category-of-record lookup (spec §4.7); this package is the single place
// that policy lives, so the two callers can't drift.
package memberapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// staleAfter is the freshness window (§9 decision, see DESIGN.md): a
// snapshot on or after the request date is trusted outright; one dated
// more than staleAfter before the request date triggers a re-scrape.
const staleAfter = 30 * 24 * time.Hour

// PersonScraper populates a MemberSnapshot for a Person on demand — the
// external collaborator of spec §4.7/§6.
type PersonScraper interface {
	ScrapePerson(ctx context.Context, personID int64) error
}

// Client resolves (person, date) -> category-of-record, applying the
// freshness policy before falling back to storage.Store's raw lookups.
type Client struct {
	store   storage.Store
	scraper PersonScraper
	log     zerolog.Logger
}

// New constructs a Client. scraper may be nil, in which case nothing is
// refreshed: a stale snapshot is used as-is and a missing one resolves to
// nil ("no opinion").
func New(store storage.Store, scraper PersonScraper, log zerolog.Logger) *Client {
	return &Client{store: store, scraper: scraper, log: log.With().Str("component", "memberapi").Logger()}
}

// Lookup implements spec §4.7: the most recent snapshot on/before
// requestDate; else the oldest snapshot after it; else a scrape. The §9
// freshness policy sits in front of the first case: a snapshot older than
// staleAfter relative to requestDate is refreshed once before being
// trusted, the refreshed value winning only if the scrape succeeds. tx is
// the caller's discipline transaction (spec §5); Lookup runs its reads
// (and any scrape-triggered write) against it so the whole thing is part
// of that transaction's savepoint.
func (c *Client) Lookup(ctx context.Context, tx storage.Tx, personID int64, requestDate time.Time) (*types.MemberSnapshot, error) {
	snap, err := c.store.MemberSnapshotOnOrBefore(ctx, tx, personID, requestDate)
	switch {
	case err == nil:
		if c.isFresh(snap, requestDate) {
			return snap, nil
		}
		refreshed, rerr := c.refresh(ctx, tx, personID, requestDate)
		if rerr != nil || refreshed == nil {
			return snap, nil // stale snapshot still beats no snapshot
		}
		return refreshed, nil
	case errors.Is(err, storage.ErrNotFound):
		// fall through to the "oldest after" / scrape path
	default:
		return nil, fmt.Errorf("member snapshot on or before: %w", err)
	}

	snap, err = c.store.MemberSnapshotOldestAfter(ctx, tx, personID, requestDate)
	switch {
	case err == nil:
		return snap, nil
	case errors.Is(err, storage.ErrNotFound):
		return c.refresh(ctx, tx, personID, requestDate)
	default:
		return nil, fmt.Errorf("member snapshot oldest after: %w", err)
	}
}

// isFresh reports whether snap is trustworthy as-is for requestDate: the
// snapshot is at or after the request date (it can't be stale relative to
// a date it postdates), or it is within staleAfter of it.
func (c *Client) isFresh(snap *types.MemberSnapshot, requestDate time.Time) bool {
	if !snap.Date.Before(requestDate) {
		return true
	}
	return requestDate.Sub(snap.Date) <= staleAfter
}

func (c *Client) refresh(ctx context.Context, tx storage.Tx, personID int64, requestDate time.Time) (*types.MemberSnapshot, error) {
	if c.scraper == nil {
		return nil, nil
	}
	if err := c.scraper.ScrapePerson(ctx, personID); err != nil {
		c.log.Warn().Err(err).Int64("person_id", personID).Msg("member refresh scrape failed")
		return nil, nil
	}
	snap, err := c.store.MemberSnapshotOnOrBefore(ctx, tx, personID, requestDate)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("member snapshot after refresh: %w", err)
	}
	return snap, nil
}
