package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of office events. Writes are
// queued to a single writer goroutine and dropped when it falls behind; the
// JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMovement atomic.Uint64
	dropPresence atomic.Uint64
}

type reqKind int

const (
	reqMovement reqKind = iota + 1
	reqPresence
	reqFlush
)

type req struct {
	kind reqKind

	movement events.Movement
	presence events.Presence
	done     chan struct{}
}

type Stats struct {
	DropMovementTotal uint64
	DropPresenceTotal uint64
	QueueDepth        int
	QueueCapacity     int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			request_id TEXT NOT NULL,
			from_name TEXT NOT NULL,
			to_name TEXT NOT NULL,
			type TEXT NOT NULL,
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			route_id TEXT,
			kind TEXT,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_movements_request ON movements(request_id);`,
		`CREATE INDEX IF NOT EXISTS idx_movements_from_at ON movements(from_name, at);`,
		`CREATE TABLE IF NOT EXISTS presence (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			agent TEXT NOT NULL,
			change TEXT NOT NULL,
			last_seen TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_presence_agent_at ON presence(agent, at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Movement implements events.Sink.
func (s *SQLiteIndex) Movement(m events.Movement) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqMovement, movement: m}:
	default:
		s.dropMovement.Add(1)
	}
}

// Presence implements events.Sink.
func (s *SQLiteIndex) Presence(p events.Presence) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqPresence, presence: p}:
	default:
		s.dropPresence.Add(1)
	}
}

// Flush waits until everything queued so far is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return errors.New("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropMovementTotal: s.dropMovement.Load(),
		DropPresenceTotal: s.dropPresence.Load(),
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
	}
}

// UpsertCatalogs stores the route catalog and the tuning in effect, keyed by
// name with a content digest.
func (s *SQLiteIndex) UpsertCatalogs(cat *routes.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cat != nil {
		b, err := routes.Encode(cat.Routes())
		if err != nil {
			return err
		}
		rows = append(rows, kv{name: "routes", digest: cat.Digest(), json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest for a catalog name.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}

// RecentMovements returns up to limit movement rows, newest first. A non-empty
// agent restricts to rows where it is either endpoint.
func (s *SQLiteIndex) RecentMovements(ctx context.Context, agent string, limit int) ([]events.Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT at,request_id,from_name,to_name,type,priority,status,route_id,kind,reason FROM movements`
	args := []any{}
	if agent != "" {
		q += ` WHERE from_name=? OR to_name=?`
		args = append(args, agent, agent)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.Movement
	for rows.Next() {
		var (
			m                     events.Movement
			at, status            string
			routeID, kind, reason sql.NullString
		)
		if err := rows.Scan(&at, &m.RequestID, &m.From, &m.To, &m.Type, &m.Priority, &status, &routeID, &kind, &reason); err != nil {
			return nil, err
		}
		m.At, _ = time.Parse(time.RFC3339Nano, at)
		m.Status = events.MovementStatus(status)
		m.RouteID, m.Kind, m.Reason = routeID.String, kind.String, reason.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// PresenceHistory returns the presence changes of one agent, oldest first.
func (s *SQLiteIndex) PresenceHistory(ctx context.Context, agent string) ([]events.Presence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT at,agent,change,last_seen FROM presence WHERE agent=? ORDER BY id`, agent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.Presence
	for rows.Next() {
		var p events.Presence
		var at, change, seen string
		if err := rows.Scan(&at, &p.Agent, &change, &seen); err != nil {
			return nil, err
		}
		p.At, _ = time.Parse(time.RFC3339Nano, at)
		p.LastSeen, _ = time.Parse(time.RFC3339Nano, seen)
		p.Change = events.PresenceChange(change)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMovement, _ := s.db.Prepare(`INSERT INTO movements(at,request_id,from_name,to_name,type,priority,status,route_id,kind,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertPresence, _ := s.db.Prepare(`INSERT INTO presence(at,agent,change,last_seen) VALUES(?,?,?,?)`)
	defer func() {
		if insertMovement != nil {
			_ = insertMovement.Close()
		}
		if insertPresence != nil {
			_ = insertPresence.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqMovement:
			m := r.movement
			if insertMovement != nil {
				if _, err := tx.Stmt(insertMovement).Exec(
					m.At.UTC().Format(time.RFC3339Nano),
					m.RequestID,
					m.From,
					m.To,
					m.Type,
					m.Priority,
					string(m.Status),
					m.RouteID,
					m.Kind,
					m.Reason,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqPresence:
			p := r.presence
			if insertPresence != nil {
				if _, err := tx.Stmt(insertPresence).Exec(
					p.At.UTC().Format(time.RFC3339Nano),
					p.Agent,
					string(p.Change),
					p.LastSeen.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
