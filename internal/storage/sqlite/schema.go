package sqlite

// schema is applied on every Open (each statement is IF NOT EXISTS),
// alongside schema_version bookkeeping modeled on the teacher's migrations table: rather than the
// teacher's one-file-per-ALTER approach (appropriate for a live, decade-old
// issue tracker), this repo is new enough to ship one baseline schema and
// grow it the same way from here.
const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS series (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    year       INTEGER NOT NULL,
    date_range TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    discipline TEXT NOT NULL,
    year       INTEGER NOT NULL,
    date       TEXT NOT NULL,
    series_id  INTEGER REFERENCES series(id),
    parent_id  INTEGER REFERENCES events(id),
    ignore     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_discipline ON events(discipline);

CREATE TABLE IF NOT EXISTS races (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    date       TEXT NOT NULL,
    categories TEXT NOT NULL DEFAULT '[]', -- JSON array of ints
    starters   INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    event_id   INTEGER NOT NULL REFERENCES events(id)
);
CREATE INDEX IF NOT EXISTS idx_races_event ON races(event_id);
CREATE INDEX IF NOT EXISTS idx_races_date ON races(date, created_at);

CREATE TABLE IF NOT EXISTS people (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL DEFAULT '',
    last_name  TEXT NOT NULL DEFAULT '',
    team       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS member_snapshots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    date          TEXT NOT NULL,
    person_id     INTEGER NOT NULL REFERENCES people(id),
    license_num   TEXT,
    category_mtb  INTEGER,
    category_dh   INTEGER,
    category_ccx  INTEGER,
    category_road INTEGER,
    category_trk  INTEGER,
    UNIQUE(date, person_id)
);
CREATE INDEX IF NOT EXISTS idx_member_snapshots_person_date ON member_snapshots(person_id, date);

CREATE TABLE IF NOT EXISTS results (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    race_id     INTEGER NOT NULL REFERENCES races(id) ON DELETE CASCADE,
    person_id   INTEGER REFERENCES people(id),
    place       TEXT NOT NULL,
    finish_time INTEGER, -- nanoseconds, nullable
    laps        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_results_race ON results(race_id);
CREATE INDEX IF NOT EXISTS idx_results_person ON results(person_id);

CREATE TABLE IF NOT EXISTS points (
    result_id            INTEGER PRIMARY KEY REFERENCES results(id) ON DELETE CASCADE,
    value                INTEGER NOT NULL DEFAULT 0,
    notes                TEXT NOT NULL DEFAULT '',
    needs_upgrade        INTEGER NOT NULL DEFAULT 0,
    upgrade_confirmation INTEGER REFERENCES member_snapshots(id),
    sum_value            INTEGER NOT NULL DEFAULT 0,
    sum_categories       TEXT NOT NULL DEFAULT '[]' -- JSON array of ints
);
CREATE INDEX IF NOT EXISTS idx_points_needs_upgrade ON points(needs_upgrade);

CREATE TABLE IF NOT EXISTS pending_upgrades (
    result_id          INTEGER PRIMARY KEY REFERENCES results(id) ON DELETE CASCADE,
    member_snapshot_id INTEGER NOT NULL REFERENCES member_snapshots(id),
    upgrade_discipline TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_upgrades_discipline ON pending_upgrades(upgrade_discipline);

CREATE TABLE IF NOT EXISTS ranks (
    result_id INTEGER PRIMARY KEY REFERENCES results(id) ON DELETE CASCADE,
    value     REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS quality (
    race_id          INTEGER PRIMARY KEY REFERENCES races(id) ON DELETE CASCADE,
    value            REAL NOT NULL,
    points_per_place REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS config (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// currentSchemaVersion is bumped whenever schema changes; Open() applies
// schema unconditionally (CREATE TABLE IF NOT EXISTS) then records the
// version, so a fresh database and an up-to-date one converge.
const currentSchemaVersion = 1
