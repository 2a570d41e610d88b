// Package persistence provides SQLite-based world state storage and the
// compressed event log.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/social"
	"github.com/talgya/mini-city/internal/world"
)

// Meta keys.
const (
	MetaLastTick = "last_tick"
	MetaSeed     = "seed"
	MetaNextID   = "next_id"
	MetaRunID    = "run_id"
	MetaEventSeq = "event_seq"
)

// DB wraps a SQLite connection for world state persistence. It is also an
// event sink: emitted events are buffered and written on Flush.
type DB struct {
	conn *sqlx.DB

	mu      sync.Mutex
	pending []engine.Event
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

// Close flushes pending events and closes the database connection.
func (db *DB) Close() error {
	ferr := db.Flush()
	return errors.Join(ferr, db.conn.Close())
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		archetype TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		heading REAL NOT NULL,
		home_id INTEGER NOT NULL,
		work_id INTEGER NOT NULL,
		state INTEGER NOT NULL,
		state_detail TEXT NOT NULL,
		born_tick INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		needs_json TEXT NOT NULL,
		personality_json TEXT NOT NULL,
		inventory_json TEXT NOT NULL,
		memory_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relationships (
		from_id INTEGER NOT NULL,
		to_id INTEGER NOT NULL,
		score INTEGER NOT NULL,
		PRIMARY KEY (from_id, to_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		actor INTEGER NOT NULL,
		target INTEGER NOT NULL,
		magnitude REAL NOT NULL,
		detail TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// agentRow is the flat form of an agent in the agents table.
type agentRow struct {
	ID          uint64  `db:"id"`
	Name        string  `db:"name"`
	Archetype   string  `db:"archetype"`
	PosX        float64 `db:"pos_x"`
	PosY        float64 `db:"pos_y"`
	Heading     float64 `db:"heading"`
	HomeID      uint64  `db:"home_id"`
	WorkID      uint64  `db:"work_id"`
	State       uint8   `db:"state"`
	StateDetail string  `db:"state_detail"`
	BornTick    uint64  `db:"born_tick"`
	Alive       bool    `db:"alive"`
	Needs       string  `db:"needs_json"`
	Personality string  `db:"personality_json"`
	Inventory   string  `db:"inventory_json"`
	Memory      string  `db:"memory_json"`
}

// SaveAgents writes all agents to the database (full replace).
func (db *DB) SaveAgents(agentList []agents.Agent, memories map[agents.AgentID][]agents.MemoryEvent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAgents(tx, agentList, memories); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAgents(tx *sqlx.Tx, agentList []agents.Agent, memories map[agents.AgentID][]agents.MemoryEvent) error {
	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO agents
		(id, name, archetype, pos_x, pos_y, heading, home_id, work_id,
		 state, state_detail, born_tick, alive,
		 needs_json, personality_json, inventory_json, memory_json)
		VALUES (:id, :name, :archetype, :pos_x, :pos_y, :heading, :home_id, :work_id,
		 :state, :state_detail, :born_tick, :alive,
		 :needs_json, :personality_json, :inventory_json, :memory_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range agentList {
		a := &agentList[i]
		needsJSON, _ := json.Marshal(a.Needs)
		persJSON, _ := json.Marshal(a.Personality)
		invJSON, _ := json.Marshal(a.Inventory)
		memJSON, err := json.Marshal(memories[a.ID])
		if err != nil {
			return fmt.Errorf("encode memory %d: %w", a.ID, err)
		}

		row := agentRow{
			ID:          uint64(a.ID),
			Name:        a.Name,
			Archetype:   a.Archetype,
			PosX:        a.Position.X,
			PosY:        a.Position.Y,
			Heading:     a.Heading,
			HomeID:      a.HomeID,
			WorkID:      a.WorkID,
			State:       uint8(a.State),
			StateDetail: a.StateDetail,
			BornTick:    a.BornTick,
			Alive:       a.Alive,
			Needs:       string(needsJSON),
			Personality: string(persJSON),
			Inventory:   string(invJSON),
			Memory:      string(memJSON),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}
	return nil
}

// LoadAgents reads every saved agent and its memories, ordered by id.
func (db *DB) LoadAgents() ([]agents.Agent, map[agents.AgentID][]agents.MemoryEvent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, nil, fmt.Errorf("select agents: %w", err)
	}

	out := make([]agents.Agent, 0, len(rows))
	memories := make(map[agents.AgentID][]agents.MemoryEvent, len(rows))
	for _, r := range rows {
		a := agents.Agent{
			ID:          agents.AgentID(r.ID),
			Name:        r.Name,
			Archetype:   r.Archetype,
			Position:    world.Vec2{X: r.PosX, Y: r.PosY},
			Heading:     r.Heading,
			HomeID:      r.HomeID,
			WorkID:      r.WorkID,
			State:       agents.State(r.State),
			StateDetail: r.StateDetail,
			BornTick:    r.BornTick,
			Alive:       r.Alive,
		}
		if err := json.Unmarshal([]byte(r.Needs), &a.Needs); err != nil {
			return nil, nil, fmt.Errorf("agent %d needs: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.Personality), &a.Personality); err != nil {
			return nil, nil, fmt.Errorf("agent %d personality: %w", r.ID, err)
		}
		if err := a.Personality.Validate(); err != nil {
			return nil, nil, fmt.Errorf("agent %d: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.Inventory), &a.Inventory); err != nil {
			return nil, nil, fmt.Errorf("agent %d inventory: %w", r.ID, err)
		}
		var mem []agents.MemoryEvent
		if err := json.Unmarshal([]byte(r.Memory), &mem); err != nil {
			return nil, nil, fmt.Errorf("agent %d memory: %w", r.ID, err)
		}
		memories[a.ID] = mem
		out = append(out, a)
	}
	return out, memories, nil
}

// SaveRelationships writes every relationship (full replace).
func (db *DB) SaveRelationships(entries []social.Entry) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRelationships(tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRelationships(tx *sqlx.Tx, entries []social.Entry) error {
	if _, err := tx.Exec("DELETE FROM relationships"); err != nil {
		return err
	}
	stmt, err := tx.Preparex("INSERT INTO relationships (from_id, to_id, score) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.From, e.To, e.Score); err != nil {
			return fmt.Errorf("insert relationship %d->%d: %w", e.From, e.To, err)
		}
	}
	return nil
}

// LoadRelationships reads every relationship ordered by (from, to).
func (db *DB) LoadRelationships() ([]social.Entry, error) {
	var rows []struct {
		From  uint64 `db:"from_id"`
		To    uint64 `db:"to_id"`
		Score int    `db:"score"`
	}
	if err := db.conn.Select(&rows, "SELECT from_id, to_id, score FROM relationships ORDER BY from_id, to_id"); err != nil {
		return nil, fmt.Errorf("select relationships: %w", err)
	}
	out := make([]social.Entry, len(rows))
	for i, r := range rows {
		out[i] = social.Entry{Pair: social.Pair{From: agents.AgentID(r.From), To: agents.AgentID(r.To)}, Score: r.Score}
	}
	return out, nil
}

// Emit buffers ev until the next Flush.
func (db *DB) Emit(ev engine.Event) {
	db.mu.Lock()
	db.pending = append(db.pending, ev)
	db.mu.Unlock()
}

// Flush writes buffered events.
func (db *DB) Flush() error {
	db.mu.Lock()
	batch := db.pending
	db.pending = nil
	db.mu.Unlock()

	if err := db.SaveEvents(batch); err != nil {
		// Keep the batch for the next attempt.
		db.mu.Lock()
		db.pending = append(batch, db.pending...)
		db.mu.Unlock()
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

// SaveEvents appends events to the database. Re-saving a sequence number
// replaces the earlier row.
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
		_, err := tx.NamedExec(
			`INSERT OR REPLACE INTO events (seq, tick, kind, actor, target, magnitude, detail)
			 VALUES (:seq, :tick, :kind, :actor, :target, :magnitude, :detail)`,
			e,
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
		"SELECT seq, tick, kind, actor, target, magnitude, detail FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	return events, err
}

// EventsFor returns up to limit of the newest events with id as actor or
// target, newest first.
func (db *DB) EventsFor(id agents.AgentID, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		`SELECT seq, tick, kind, actor, target, magnitude, detail FROM events
		 WHERE actor = ? OR target = ? ORDER BY seq DESC LIMIT ?`,
		id, id, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. ok is false when the key is unset.
func (db *DB) GetMeta(key string) (string, bool, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SaveSnapshot performs a full save of the world state in one transaction.
func (db *DB) SaveSnapshot(snap engine.Snapshot, runID string) error {
	slog.Info("saving world state", "tick", snap.Tick, "agents", len(snap.Agents), "relationships", len(snap.Relations))

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAgents(tx, snap.Agents, snap.Memories); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := insertRelationships(tx, snap.Relations); err != nil {
		return fmt.Errorf("save relationships: %w", err)
	}
	meta := map[string]string{
		MetaLastTick: strconv.FormatUint(snap.Tick, 10),
		MetaSeed:     strconv.FormatInt(snap.Seed, 10),
		MetaNextID:   strconv.FormatUint(uint64(snap.NextID), 10),
		MetaRunID:    runID,
		MetaEventSeq: strconv.FormatUint(snap.EventSeq, 10),
	}
	for _, k := range []string{MetaLastTick, MetaSeed, MetaNextID, MetaRunID, MetaEventSeq} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, meta[k]); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("world state saved")
	return nil
}

// LoadSnapshot reads the last saved world. ok is false for an empty
// database.
func (db *DB) LoadSnapshot() (engine.Snapshot, bool, error) {
	var snap engine.Snapshot
	last, ok, err := db.GetMeta(MetaLastTick)
	if err != nil || !ok {
		return snap, false, err
	}
	if snap.Tick, err = strconv.ParseUint(last, 10, 64); err != nil {
		return snap, false, fmt.Errorf("meta %s: %w", MetaLastTick, err)
	}
	if v, ok, err := db.GetMeta(MetaSeed); err != nil {
		return snap, false, err
	} else if ok {
		if snap.Seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return snap, false, fmt.Errorf("meta %s: %w", MetaSeed, err)
		}
	}
	if v, ok, err := db.GetMeta(MetaNextID); err != nil {
		return snap, false, err
	} else if ok {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return snap, false, fmt.Errorf("meta %s: %w", MetaNextID, err)
		}
		snap.NextID = agents.AgentID(id)
	}
	if v, ok, err := db.GetMeta(MetaEventSeq); err != nil {
		return snap, false, err
	} else if ok {
		if snap.EventSeq, err = strconv.ParseUint(v, 10, 64); err != nil {
			return snap, false, fmt.Errorf("meta %s: %w", MetaEventSeq, err)
		}
	}

	if snap.Agents, snap.Memories, err = db.LoadAgents(); err != nil {
		return snap, false, err
	}
	if snap.Relations, err = db.LoadRelationships(); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}
