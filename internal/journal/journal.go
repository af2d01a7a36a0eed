// Package journal persists controller decisions to SQLite, grouped into
// sessions opened and closed by the engine's session boundary records.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"splitguard/internal/decision"
)

// Writer tuning.
const (
	DefaultQueueSize = 1024
	maxBatch         = 128
)

// Journal is a decision.Sink backed by SQLite. Record never blocks: when the
// queue is full the record is dropped and counted.
type Journal struct {
	db    *sql.DB
	queue chan decision.Record
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	written atomic.Uint64
	dropped atomic.Uint64

	// owned by the writer goroutine
	session string

	log *logrus.Entry
}

// Stats reports writer counters.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
}

// Open opens (creating when needed) the database at path, migrates it and
// starts the writer.
func Open(path string, queueSize int) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	j := &Journal{
		db:    db,
		queue: make(chan decision.Record, queueSize),
		done:  make(chan struct{}),
		log:   logrus.WithField("component", "journal"),
	}
	go j.writeLoop()
	return j, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		end_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		at INTEGER NOT NULL,
		game_time REAL NOT NULL,
		controller TEXT NOT NULL,
		action TEXT NOT NULL,
		cause TEXT,
		item TEXT,
		queue INTEGER NOT NULL,
		reason TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record queues rec for writing.
func (j *Journal) Record(rec decision.Record) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- rec:
	default:
		j.dropped.Add(1)
	}
}

// Stats returns the writer counters.
func (j *Journal) Stats() Stats {
	return Stats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Pending: len(j.queue),
	}
}

// Close drains the queue, ends any open session and closes the database.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()

		<-j.done
		err = j.db.Close()
	})
	return err
}

func (j *Journal) writeLoop() {
	defer close(j.done)

	batch := make([]decision.Record, 0, maxBatch)
	for rec := range j.queue {
		batch = append(batch[:0], rec)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := j.writeBatch(batch); err != nil {
			j.dropped.Add(uint64(len(batch)))
			j.log.WithError(err).Warn("⚠️ Journal batch failed")
		}
	}

	if j.session != "" {
		if err := j.endSession(time.Now(), "shutdown"); err != nil {
			j.log.WithError(err).Warn("⚠️ Journal could not close session")
		}
	}
}

func (j *Journal) writeBatch(batch []decision.Record) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	session := j.session
	written := 0
	for _, rec := range batch {
		ok, err := j.apply(tx, rec)
		if err != nil {
			j.session = session
			return err
		}
		if ok {
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		j.session = session
		return fmt.Errorf("commit: %w", err)
	}
	j.written.Add(uint64(written))
	return nil
}

// apply writes one record. Engine boundary records open and close sessions;
// everything else becomes a decision row. Reports whether a row was written.
func (j *Journal) apply(tx *sql.Tx, rec decision.Record) (bool, error) {
	if rec.Controller == decision.Engine {
		switch rec.Action {
		case decision.ActionSessionStart:
			if j.session != "" {
				if err := endSessionTx(tx, j.session, rec.At, "restarted"); err != nil {
					return false, err
				}
			}
			return false, j.beginSession(tx, rec.At)
		case decision.ActionReset:
			if j.session == "" {
				return false, nil
			}
			err := endSessionTx(tx, j.session, rec.At, rec.Reason)
			j.session = ""
			return false, err
		}
	}

	if j.session == "" {
		if err := j.beginSession(tx, rec.At); err != nil {
			return false, err
		}
	}

	_, err := tx.Exec(
		`INSERT INTO decisions (session_id, at, game_time, controller, action, cause, item, queue, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.session, rec.At.UnixNano(), rec.GameTime, rec.Controller, string(rec.Action),
		string(rec.Cause), rec.Item, rec.Queue, rec.Reason,
	)
	if err != nil {
		return false, fmt.Errorf("insert decision: %w", err)
	}
	return true, nil
}

func (j *Journal) beginSession(tx *sql.Tx, at time.Time) error {
	id := uuid.New().String()
	if _, err := tx.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, id, at.UnixNano()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	j.session = id
	j.log.WithField("session", id).Debug("Journal session started")
	return nil
}

func (j *Journal) endSession(at time.Time, reason string) error {
	_, err := j.db.Exec(
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
		at.UnixNano(), reason, j.session,
	)
	j.session = ""
	return err
}

func endSessionTx(tx *sql.Tx, id string, at time.Time, reason string) error {
	_, err := tx.Exec(
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
		at.UnixNano(), reason, id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// Ping checks the database connection is alive.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

var _ decision.Sink = (*Journal)(nil)
