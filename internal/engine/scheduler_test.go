package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
)

func TestRunOnceDrivesEveryDiscipline(t *testing.T) {
	store := &emptyStore{}
	scraper := &countingScraper{}
	e := New(store, scraper, nil, nil, zerolog.Nop())
	s := NewScheduler(e, time.Hour, time.Hour, 14, zerolog.Nop())

	s.RunOnce(context.Background(), true)

	if scraper.recentCalls != len(discipline.All()) {
		t.Errorf("recentCalls = %d, want %d (one per discipline)", scraper.recentCalls, len(discipline.All()))
	}
}

func TestRunOnceFullPassUsesScrapeNew(t *testing.T) {
	store := &emptyStore{}
	scraper := &countingScraper{}
	e := New(store, scraper, nil, nil, zerolog.Nop())
	s := NewScheduler(e, time.Hour, time.Hour, 14, zerolog.Nop())

	s.RunOnce(context.Background(), false)

	if scraper.newCalls != len(discipline.All()) {
		t.Errorf("newCalls = %d, want %d", scraper.newCalls, len(discipline.All()))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &emptyStore{}
	e := New(store, nil, nil, nil, zerolog.Nop())
	s := NewScheduler(e, time.Hour, time.Hour, 14, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
