// Package persistence archives generated worlds and journey events in SQLite.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tileworld/internal/autotile"
	"github.com/talgya/tileworld/internal/engine"
	"github.com/talgya/tileworld/internal/world"
)

// ErrNotFound is returned when a world id has no archive.
var ErrNotFound = errors.New("world not found")

// DB wraps a SQLite connection for world archives.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
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
	CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		world_id TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		elevation REAL NOT NULL,
		biome TEXT NOT NULL,
		traversal_rate REAL NOT NULL,
		resource REAL NOT NULL,
		poi TEXT NOT NULL,
		seen INTEGER NOT NULL,
		PRIMARY KEY (world_id, x, y)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		day REAL NOT NULL,
		kind TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		true_cost REAL NOT NULL,
		display_cost REAL NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		world_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (world_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_world ON events(world_id, seq);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// WorldRecord is one archived world header.
type WorldRecord struct {
	ID        string `db:"id" json:"id"`
	Seed      int64  `db:"seed" json:"seed"`
	Width     int    `db:"width" json:"width"`
	Height    int    `db:"height" json:"height"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

type cellRow struct {
	X             int     `db:"x"`
	Y             int     `db:"y"`
	Elevation     float64 `db:"elevation"`
	Biome         string  `db:"biome"`
	TraversalRate float64 `db:"traversal_rate"`
	Resource      float64 `db:"resource"`
	POI           string  `db:"poi"`
	Seen          bool    `db:"seen"`
}

// SaveWorld writes a grid under id, replacing any previous archive.
func (db *DB) SaveWorld(id string, g *world.Grid) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cells WHERE world_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO worlds (id, seed, width, height, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET seed = excluded.seed, width = excluded.width, height = excluded.height`,
		id, g.Seed(), g.Width(), g.Height(), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("insert world %s: %w", id, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO cells
		(world_id, x, y, elevation, biome, traversal_rate, resource, poi, seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var insertErr error
	g.Each(func(c world.Coord, cell world.Cell) {
		if insertErr != nil {
			return
		}
		seen := 0
		if cell.Seen() {
			seen = 1
		}
		_, insertErr = stmt.Exec(id, c.X, c.Y, cell.Elevation, cell.Biome.String(),
			cell.TraversalRate, cell.Resource, cell.POI, seen)
		if insertErr != nil {
			insertErr = fmt.Errorf("insert cell %s: %w", c, insertErr)
		}
	})
	if insertErr != nil {
		return insertErr
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("world archived", "id", id, "cells", g.CellCount(), "seen", g.SeenCount())
	return nil
}

// LoadWorld rebuilds an archived grid. Seen bits are restored through a
// VisibilityWriter; occupancy is not archived.
func (db *DB) LoadWorld(id string) (*world.Grid, error) {
	var rec WorldRecord
	err := db.conn.Get(&rec, "SELECT id, seed, width, height, created_at FROM worlds WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var rows []cellRow
	if err := db.conn.Select(&rows, `SELECT x, y, elevation, biome, traversal_rate, resource, poi, seen
		FROM cells WHERE world_id = ?`, id); err != nil {
		return nil, err
	}
	if len(rows) != rec.Width*rec.Height {
		return nil, fmt.Errorf("world %s: %d cells archived, want %d", id, len(rows), rec.Width*rec.Height)
	}

	byCoord := make(map[world.Coord]cellRow, len(rows))
	for _, r := range rows {
		byCoord[world.Coord{X: r.X, Y: r.Y}] = r
	}
	var parseErr error
	g, err := world.NewGrid(rec.Width, rec.Height, func(c world.Coord) world.Cell {
		r := byCoord[c]
		biome, err := world.ParseBiome(r.Biome)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("cell %s: %w", c, err)
		}
		return world.Cell{
			Elevation:     r.Elevation,
			Biome:         biome,
			TraversalRate: r.TraversalRate,
			Resource:      r.Resource,
			POI:           r.POI,
		}
	})
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}
	g.SetSeed(rec.Seed)

	vis := world.NewVisibilityWriter(g)
	for _, r := range rows {
		if r.Seen {
			vis.Reveal(world.Coord{X: r.X, Y: r.Y})
		}
	}
	return g, nil
}

// Worlds lists archived worlds, newest first.
func (db *DB) Worlds() ([]WorldRecord, error) {
	var out []WorldRecord
	err := db.conn.Select(&out, "SELECT id, seed, width, height, created_at FROM worlds ORDER BY created_at DESC, id")
	return out, err
}

// SaveEvents appends journey events for a world.
func (db *DB) SaveEvents(worldID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(`INSERT INTO events
			(world_id, seq, day, kind, x, y, true_cost, display_cost, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			worldID, e.Seq, e.Day, e.Kind, e.At.X, e.At.Y, e.TrueCost, e.DisplayCost, e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	Seq         uint64  `db:"seq"`
	Day         float64 `db:"day"`
	Kind        string  `db:"kind"`
	X           int     `db:"x"`
	Y           int     `db:"y"`
	TrueCost    float64 `db:"true_cost"`
	DisplayCost float64 `db:"display_cost"`
	Description string  `db:"description"`
}

// RecentEvents returns the most recent limit events for a world, newest first.
func (db *DB) RecentEvents(worldID string, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT seq, day, kind, x, y, true_cost, display_cost, description
		FROM events WHERE world_id = ? ORDER BY id DESC LIMIT ?`,
		worldID, limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, len(rows))
	for i, r := range rows {
		events[i] = engine.Event{
			Seq:         r.Seq,
			Day:         r.Day,
			Kind:        r.Kind,
			At:          world.Coord{X: r.X, Y: r.Y},
			TrueCost:    r.TrueCost,
			DisplayCost: r.DisplayCost,
			Description: r.Description,
		}
	}
	return events, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(worldID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (world_id, key, value) VALUES (?, ?, ?)",
		worldID, key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(worldID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE world_id = ? AND key = ?", worldID, key)
	return value, err
}

// SaveSession archives a session's grid, new events and travel day.
// Returns the highest event sequence written so callers can resume from it.
func (db *DB) SaveSession(worldID string, s *engine.Session, sinceSeq uint64) (uint64, error) {
	events := s.EventsSince(sinceSeq)
	if err := db.SaveEvents(worldID, events); err != nil {
		return sinceSeq, fmt.Errorf("save events: %w", err)
	}
	if len(events) > 0 {
		sinceSeq = events[len(events)-1].Seq
	}

	var saveErr error
	s.View(func(g *world.Grid, _ *autotile.Layer, _ bool) {
		saveErr = db.SaveWorld(worldID, g)
	})
	if saveErr != nil {
		return sinceSeq, fmt.Errorf("save world: %w", saveErr)
	}
	if err := db.SaveMeta(worldID, "day", strconv.FormatFloat(s.Day(), 'f', 1, 64)); err != nil {
		return sinceSeq, fmt.Errorf("save meta: %w", err)
	}
	return sinceSeq, nil
}
