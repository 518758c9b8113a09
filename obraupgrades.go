// Package obraupgrades provides a minimal public API for extending the
// upgrade-and-ranking engine with custom orchestration.
//
// Most extensions should use the Store interface directly against the
// engine's database. This package exports only the essential types and
// constructors Go-based extensions need.
package obraupgrades

import (
	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/cache"
	"github.com/brandond/obra-upgrades/internal/category"
	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/engine"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/storage/sqlite"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Core domain types for working with results and points.
type (
	Result     = types.Result
	Race       = types.Race
	Person     = types.Person
	Points     = types.Points
	Rank       = types.Rank
	Quality    = types.Quality
	Discipline = discipline.Tag
)

// The four upgrade-disciplines.
const (
	Cyclocross   = discipline.Cyclocross
	Road         = discipline.Road
	MountainBike = discipline.MountainBike
	Track        = discipline.Track
)

// Store provides the minimal interface for extension orchestration.
type Store = storage.Store

// OpenSQLite opens an obrad SQLite database for programmatic access. Most
// extensions should use this to query race results and points without
// driving the full pipeline.
func OpenSQLite(path string, log zerolog.Logger) (Store, error) {
	return sqlite.Open(path, log)
}

// Engine re-exports the pipeline orchestrator so an extension can drive a
// discipline run directly rather than through cmd/obrad.
type Engine = engine.Engine

// MemberLookup re-exports the Category State Machine's membership
// collaborator interface, so callers can supply their own.
type MemberLookup = category.MemberLookup

// Cache re-exports the named-namespace cache interface.
type Cache = cache.Cache

// NewEngine constructs an Engine over store. scraper, members, and c may
// all be nil (no scraping, no membership opinion, no cache invalidation).
func NewEngine(store Store, scraper engine.Scraper, members MemberLookup, c Cache, log zerolog.Logger) *Engine {
	return engine.New(store, scraper, members, c, log)
}
