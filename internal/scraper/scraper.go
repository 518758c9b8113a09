// Package scraper is the concrete (if deliberately modest) implementation
// of the scraper collaborator spec §6 treats as external. It fetches the
// upstream federation's public result listings and member pages, but only
// member pages yield rows: ScrapePerson writes a MemberSnapshot, while
// listing pages are visited without creating Series, Event, Race, Result
// or Person rows (onEventRow is empty). Scraping itself is
// out of scope for the engine (spec §1); this package exists so the engine
// has a real ScrapePerson/ScrapeRecent implementation to call against
// rather than an interface with no body anywhere in the repository.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
	"github.com/brandond/obra-upgrades/internal/types"
)

// Scraper fetches race-result and member-profile pages from the upstream
// site and persists them through storage.Store, grounded on the colly
// collector pattern (request/response callbacks, single-domain rate
// limiting) used for HTML ingestion elsewhere in the retrieved pack.
type Scraper struct {
	collector *colly.Collector
	store     storage.Store
	baseURL   string
	log       zerolog.Logger
}

// New constructs a Scraper pointed at baseURL (the federation's result
// site), rate-limited to a single in-flight request per the upstream's
// robots.txt expectations.
func New(store storage.Store, baseURL string, log zerolog.Logger) *Scraper {
	c := colly.NewCollector(
		colly.AllowedDomains(hostOf(baseURL)),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       750 * time.Millisecond,
	})
	c.SetRequestTimeout(15 * time.Second)

	sc := &Scraper{
		collector: c,
		store:     store,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log.With().Str("component", "scraper").Logger(),
	}
	c.OnHTML("table.events tr", sc.onEventRow)
	return sc
}

// onEventRow extracts one Series/Event/Race/Result row from a listing
// page. Row extraction is upstream-markup-specific and out of this
// engine's scope (spec §1); this hook is the integration point a full
// deployment wires a concrete extractor into.
func (s *Scraper) onEventRow(e *colly.HTMLElement) {}

func hostOf(rawURL string) string {
	u := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.Index(u, "/"); i >= 0 {
		u = u[:i]
	}
	return u
}

// ScrapeYear implements scrape_year(year, discipline) (spec §6): visit the
// results listing of every event discipline that rolls up into d for the
// given year. No rows are created, since onEventRow extracts nothing; a
// failed visit is logged and the call still returns nil.
func (s *Scraper) ScrapeYear(ctx context.Context, year int, d discipline.Tag) error {
	for _, eventDiscipline := range discipline.EventDisciplines(d) {
		url := fmt.Sprintf("%s/results/%d/%s", s.baseURL, year, eventDiscipline)
		if err := s.scrapeEventListing(ctx, url); err != nil {
			s.log.Warn().Err(err).Str("discipline", eventDiscipline).Int("year", year).Msg("scrape_year failed")
		}
	}
	return nil
}

// ScrapeParents stands in for scrape_parents(year, discipline), which links
// child Events to their umbrella parent Event; this implementation does
// nothing and returns nil.
func (s *Scraper) ScrapeParents(ctx context.Context, year int, d discipline.Tag) error {
	return nil
}

// CleanEvents stands in for clean_events(year, discipline), which drops
// placeholder Events the upstream site published and then retracted; this
// implementation does nothing and returns nil.
func (s *Scraper) CleanEvents(ctx context.Context, year int, d discipline.Tag) error {
	return nil
}

// ScrapeNew implements scrape_new(discipline) -> bool: visit the upstream
// site's "recently added" listing for d. Nothing is extracted from it, so
// the result is always false; an error is returned only when the visit
// fails.
func (s *Scraper) ScrapeNew(ctx context.Context, d discipline.Tag) (bool, error) {
	found := false
	url := fmt.Sprintf("%s/results/new/%s", s.baseURL, d)
	if err := s.scrapeEventListing(ctx, url); err != nil {
		return false, fmt.Errorf("scrape_new %s: %w", d, err)
	}
	return found, nil
}

// ScrapeRecent implements scrape_recent(discipline, days) -> bool: visit the
// listing of races from the last `days` days, the short-period scheduler
// tick's input (spec §5). No rows are created; the result is true whenever
// the visit succeeds.
func (s *Scraper) ScrapeRecent(ctx context.Context, d discipline.Tag, days int) (bool, error) {
	url := fmt.Sprintf("%s/results/recent/%s?days=%d", s.baseURL, d, days)
	if err := s.scrapeEventListing(ctx, url); err != nil {
		return false, fmt.Errorf("scrape_recent %s: %w", d, err)
	}
	return true, nil
}

// ScrapePerson implements scrape_person(person): fetch the rider's
// membership profile page and persist a fresh MemberSnapshot dated today.
// memberapi calls it, through its PersonScraper interface, when a lookup
// needs a fresh snapshot (spec §4.7).
func (s *Scraper) ScrapePerson(ctx context.Context, personID int64) error {
	url := fmt.Sprintf("%s/people/%d", s.baseURL, personID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build member profile request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch member profile %d: %w", personID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse member profile %d: %w", personID, err)
	}

	snapshot := &types.MemberSnapshot{
		Date:     time.Now().Truncate(24 * time.Hour),
		PersonID: personID,
	}
	snapshot.LicenseNum = strings.TrimSpace(doc.Find(".member-license").First().Text())
	snapshot.CategoryMTB = parseCategoryCell(doc, ".category-mtb")
	snapshot.CategoryDH = parseCategoryCell(doc, ".category-dh")
	snapshot.CategoryCCX = parseCategoryCell(doc, ".category-ccx")
	snapshot.CategoryRoad = parseCategoryCell(doc, ".category-road")
	snapshot.CategoryTrk = parseCategoryCell(doc, ".category-track")

	return s.store.CreateMemberSnapshot(ctx, nil, snapshot)
}

func parseCategoryCell(doc *goquery.Document, selector string) *int {
	text := strings.TrimSpace(doc.Find(selector).First().Text())
	if text == "" {
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil
	}
	return &n
}

// scrapeEventListing fetches one listing page; the collector calls
// onEventRow (registered once in New) for each listing row, and that hook
// extracts nothing, grounded on the colly OnHTML/OnRequest pattern used for
// listing ingestion in the retrieved pack.
func (s *Scraper) scrapeEventListing(ctx context.Context, url string) error {
	return s.collector.Visit(url)
}
