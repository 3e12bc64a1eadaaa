package sink

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/milk9111/contactsim/event"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	step        INTEGER NOT NULL,
	sim_time_ns INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	label       TEXT    NOT NULL,
	actor_a     TEXT    NOT NULL,
	actor_b     TEXT    NOT NULL,
	category_a  INTEGER NOT NULL,
	category_b  INTEGER NOT NULL,
	pos_x       REAL    NOT NULL,
	pos_y       REAL    NOT NULL,
	angle       REAL    NOT NULL,
	joint       TEXT    NOT NULL,
	force       REAL    NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run_kind ON events (run_id, kind);
`

const insertEvent = `
INSERT INTO events (
	run_id, step, sim_time_ns, kind, label, actor_a, actor_b,
	category_a, category_b, pos_x, pos_y, angle, joint, force, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Journal persists records to a SQLite file, one row per record, grouped by
// a random run id.
type Journal struct {
	db       *sql.DB
	insert   *sql.Stmt
	runID    string
	advances bool
}

type JournalOption func(*Journal)

// WithJournalAdvances also stores pose advance records.
func WithJournalAdvances(on bool) JournalOption {
	return func(j *Journal) { j.advances = on }
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string, opts ...JournalOption) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	insert, err := db.Prepare(insertEvent)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	j := &Journal{db: db, insert: insert, runID: uuid.NewString()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *Journal) RunID() string {
	return j.runID
}

func (j *Journal) Emit(r event.Record) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal is not open")
	}
	if r.Kind == event.KindAdvance && !j.advances {
		return nil
	}
	_, err := j.insert.Exec(
		j.runID,
		int64(r.Step),
		int64(r.SimTime),
		string(r.Kind),
		string(r.Label),
		r.A.String(),
		r.B.String(),
		int64(r.CategoryA),
		int64(r.CategoryB),
		r.Pose.Position.X,
		r.Pose.Position.Y,
		r.Pose.Angle,
		r.Joint,
		r.Force,
		toMillis(r.At),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.Kind, err)
	}
	return nil
}

// Counts returns the number of stored records per label for a run and kind.
func (j *Journal) Counts(ctx context.Context, runID string, kind event.Kind) (map[event.Label]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM events WHERE run_id = ? AND kind = ? GROUP BY label`,
		runID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	out := map[event.Label]int{}
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan counts: %w", err)
		}
		out[event.Label(label)] = n
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	if j.insert != nil {
		_ = j.insert.Close()
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}
