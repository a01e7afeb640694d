// Package persistence provides SQLite-based storage for the economy state,
// turn history and events.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/engine"
)

// Meta keys.
const (
	MetaVersion   = "version"
	MetaSeed      = "seed"
	MetaTurn      = "turn"
	MetaWorldSeed = "world_seed"
)

// DB wraps a SQLite connection for economy persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deposits (
		tile INTEGER PRIMARY KEY,
		resource_id TEXT NOT NULL,
		improved INTEGER NOT NULL,
		improvement_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS state_economies (
		state_id INTEGER PRIMARY KEY,
		known_tech_json TEXT NOT NULL,
		stockpiles_json TEXT NOT NULL,
		caps_json TEXT NOT NULL,
		luxuries_json TEXT NOT NULL,
		traded_luxuries_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_deals (
		id TEXT PRIMARY KEY,
		from_state INTEGER NOT NULL,
		to_state INTEGER NOT NULL,
		resource_id TEXT NOT NULL,
		created_turn INTEGER NOT NULL,
		expiry_turn INTEGER
	);

	CREATE TABLE IF NOT EXISTS revealed (
		resource_id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS turn_stats (
		turn INTEGER NOT NULL,
		state_id INTEGER NOT NULL,
		food REAL NOT NULL,
		production REAL NOT NULL,
		gold REAL NOT NULL,
		science REAL NOT NULL,
		amenities INTEGER NOT NULL,
		PRIMARY KEY (turn, state_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS economy_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn);
	CREATE INDEX IF NOT EXISTS idx_turn_stats_state ON turn_stats(state_id, turn);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type depositRow struct {
	Tile          int    `db:"tile"`
	ResourceID    string `db:"resource_id"`
	Improved      bool   `db:"improved"`
	ImprovementID string `db:"improvement_id"`
}

type stateRow struct {
	StateID        int    `db:"state_id"`
	KnownTech      string `db:"known_tech_json"`
	Stockpiles     string `db:"stockpiles_json"`
	Caps           string `db:"caps_json"`
	Luxuries       string `db:"luxuries_json"`
	TradedLuxuries string `db:"traded_luxuries_json"`
}

type dealRow struct {
	ID          string        `db:"id"`
	From        int           `db:"from_state"`
	To          int           `db:"to_state"`
	ResourceID  string        `db:"resource_id"`
	CreatedTurn int           `db:"created_turn"`
	ExpiryTurn  sql.NullInt64 `db:"expiry_turn"`
}

// SaveEconomy writes the economy snapshot (full replace).
func (db *DB) SaveEconomy(snap economy.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"deposits", "state_economies", "trade_deals", "revealed"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, d := range snap.Deposits {
		_, err := tx.NamedExec(`INSERT INTO deposits (tile, resource_id, improved, improvement_id)
			VALUES (:tile, :resource_id, :improved, :improvement_id)`,
			depositRow{Tile: d.Tile, ResourceID: d.ResourceID, Improved: d.Improved, ImprovementID: d.ImprovementID},
		)
		if err != nil {
			return fmt.Errorf("insert deposit %d: %w", d.Tile, err)
		}
	}

	for _, s := range snap.States {
		techJSON, _ := json.Marshal(s.KnownTech)
		stockJSON, _ := json.Marshal(s.Stockpiles)
		capsJSON, _ := json.Marshal(s.Caps)
		luxJSON, _ := json.Marshal(nonNil(s.Luxuries))
		tradedJSON, _ := json.Marshal(nonNil(s.TradedLuxuries))

		_, err := tx.Exec(`INSERT INTO state_economies
			(state_id, known_tech_json, stockpiles_json, caps_json, luxuries_json, traded_luxuries_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.StateID, string(techJSON), string(stockJSON), string(capsJSON), string(luxJSON), string(tradedJSON),
		)
		if err != nil {
			return fmt.Errorf("insert state economy %d: %w", s.StateID, err)
		}
	}

	for _, d := range snap.Deals {
		var expiry sql.NullInt64
		if d.ExpiryTurn != nil {
			expiry = sql.NullInt64{Int64: int64(*d.ExpiryTurn), Valid: true}
		}
		_, err := tx.Exec(`INSERT INTO trade_deals (id, from_state, to_state, resource_id, created_turn, expiry_turn)
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, d.From, d.To, d.ResourceID, d.CreatedTurn, expiry,
		)
		if err != nil {
			return fmt.Errorf("insert trade deal %s: %w", d.ID, err)
		}
	}

	for _, id := range snap.Revealed {
		if _, err := tx.Exec("INSERT INTO revealed (resource_id) VALUES (?)", id); err != nil {
			return fmt.Errorf("insert revealed %s: %w", id, err)
		}
	}

	meta := map[string]string{
		MetaVersion: strconv.Itoa(snap.Version),
		MetaSeed:    strconv.FormatInt(snap.Seed, 10),
		MetaTurn:    strconv.Itoa(snap.Turn),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO economy_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// LoadEconomy reads the stored economy snapshot. The caller validates it.
func (db *DB) LoadEconomy() (economy.Snapshot, error) {
	var snap economy.Snapshot

	version, err := db.metaInt(MetaVersion)
	if err != nil {
		return snap, err
	}
	seed, err := db.metaInt(MetaSeed)
	if err != nil {
		return snap, err
	}
	turn, err := db.metaInt(MetaTurn)
	if err != nil {
		return snap, err
	}
	snap.Version = int(version)
	snap.Seed = seed
	snap.Turn = int(turn)

	var deposits []depositRow
	if err := db.conn.Select(&deposits, "SELECT tile, resource_id, improved, improvement_id FROM deposits ORDER BY tile"); err != nil {
		return snap, fmt.Errorf("load deposits: %w", err)
	}
	snap.Deposits = make([]economy.DepositRecord, 0, len(deposits))
	for _, d := range deposits {
		snap.Deposits = append(snap.Deposits, economy.DepositRecord{
			Tile:          d.Tile,
			ResourceID:    d.ResourceID,
			Improved:      d.Improved,
			ImprovementID: d.ImprovementID,
		})
	}

	var states []stateRow
	if err := db.conn.Select(&states, "SELECT * FROM state_economies ORDER BY state_id"); err != nil {
		return snap, fmt.Errorf("load state economies: %w", err)
	}
	snap.States = make([]economy.StateRecord, 0, len(states))
	for _, s := range states {
		rec := economy.StateRecord{StateID: s.StateID}
		for _, f := range []struct {
			raw string
			dst any
		}{
			{s.KnownTech, &rec.KnownTech},
			{s.Stockpiles, &rec.Stockpiles},
			{s.Caps, &rec.Caps},
			{s.Luxuries, &rec.Luxuries},
			{s.TradedLuxuries, &rec.TradedLuxuries},
		} {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return snap, fmt.Errorf("state economy %d: %w", s.StateID, err)
			}
		}
		snap.States = append(snap.States, rec)
	}

	var deals []dealRow
	if err := db.conn.Select(&deals, "SELECT * FROM trade_deals ORDER BY created_turn, rowid"); err != nil {
		return snap, fmt.Errorf("load trade deals: %w", err)
	}
	snap.Deals = make([]economy.TradeDeal, 0, len(deals))
	for _, d := range deals {
		deal := economy.TradeDeal{
			ID:          d.ID,
			From:        d.From,
			To:          d.To,
			ResourceID:  d.ResourceID,
			CreatedTurn: d.CreatedTurn,
		}
		if d.ExpiryTurn.Valid {
			expiry := int(d.ExpiryTurn.Int64)
			deal.ExpiryTurn = &expiry
		}
		snap.Deals = append(snap.Deals, deal)
	}

	if err := db.conn.Select(&snap.Revealed, "SELECT resource_id FROM revealed ORDER BY resource_id"); err != nil {
		return snap, fmt.Errorf("load revealed: %w", err)
	}

	return snap, nil
}

// HasEconomyState reports whether an economy has been saved.
func (db *DB) HasEconomyState() bool {
	_, err := db.GetMeta(MetaTurn)
	return err == nil
}

func (db *DB) metaInt(key string) (int64, error) {
	v, err := db.GetMeta(key)
	if err != nil {
		return 0, fmt.Errorf("meta %s: %w", key, err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("meta %s: %w", key, err)
	}
	return n, nil
}

// SaveTurnStats appends per-state turn statistics. Re-saving a turn replaces it.
func (db *DB) SaveTurnStats(stats []engine.TurnStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, st := range stats {
		_, err := tx.NamedExec(`INSERT OR REPLACE INTO turn_stats
			(turn, state_id, food, production, gold, science, amenities)
			VALUES (:turn, :state_id, :food, :production, :gold, :science, :amenities)`, st)
		if err != nil {
			return fmt.Errorf("insert turn stat %d/%d: %w", st.Turn, st.StateID, err)
		}
	}

	return tx.Commit()
}

// TurnHistory returns up to limit of the most recent turn statistics for a
// state, oldest first.
func (db *DB) TurnHistory(stateID, limit int) ([]engine.TurnStat, error) {
	var stats []engine.TurnStat
	err := db.conn.Select(&stats, `SELECT * FROM (
			SELECT turn, state_id, food, production, gold, science, amenities
			FROM turn_stats WHERE state_id = ? ORDER BY turn DESC LIMIT ?
		) ORDER BY turn`,
		stateID, limit,
	)
	return stats, err
}

// ClearHistory removes turn statistics and events, used after a reset.
func (db *DB) ClearHistory() error {
	_, err := db.conn.Exec("DELETE FROM turn_stats; DELETE FROM events;")
	return err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (turn, description, category) VALUES (?, ?, ?)",
			e.Turn, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT turn, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in economy metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO economy_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key yields sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM economy_meta WHERE key = ?", key)
	return value, err
}

// SaveSimulation performs a full save: economy state plus any events and
// statistics recorded since the previous save. The simulation keeps its
// buffered events and statistics unless every write succeeds.
func (db *DB) SaveSimulation(sim *engine.Simulation) error {
	cp := sim.Pending()
	snap, events, stats := cp.Snapshot, cp.Events, cp.Stats

	slog.Info("saving economy state",
		"turn", snap.Turn,
		"deposits", humanize.Comma(int64(len(snap.Deposits))),
		"states", len(snap.States),
		"deals", len(snap.Deals),
	)

	if err := db.SaveEconomy(snap); err != nil {
		return fmt.Errorf("save economy: %w", err)
	}
	if err := db.SaveTurnStats(stats); err != nil {
		return fmt.Errorf("save turn stats: %w", err)
	}
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta(MetaWorldSeed, strconv.FormatInt(sim.World.Seed(), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	sim.MarkSaved(cp)

	slog.Info("economy state saved")
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
