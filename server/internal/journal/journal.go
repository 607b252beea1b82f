package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver

	"github.com/talentmanager/talentmanager/pkg/types"
)

const createAdditionsTable = `
CREATE TABLE IF NOT EXISTS employee_additions (
    id TEXT PRIMARY KEY,
    employee_number TEXT NOT NULL,
    payload TEXT NOT NULL,
    added_at BIGINT NOT NULL
);
`

const createAdditionsIndex = `
CREATE INDEX IF NOT EXISTS employee_additions_added_at ON employee_additions (added_at);
`

// Entry is one journaled append.
type Entry struct {
	ID             string       `json:"id"`
	EmployeeNumber string       `json:"employee_number"`
	Record         types.Record `json:"record"`
	AddedAt        time.Time    `json:"added_at"`
}

// Journal records every employee appended through the API.
// It is safe for concurrent use.
type Journal struct {
	db       *sql.DB
	postgres bool
	idColumn string
	now      func() time.Time // injectable for deterministic tests
}

// Open connects to backend ("sqlite" or "postgres") and creates the schema.
func Open(ctx context.Context, backend, dsn, idColumn string) (*Journal, error) {
	var driver string
	switch backend {
	case "sqlite":
		driver = "sqlite3"
	case "postgres":
		driver = "pgx"
	default:
		return nil, fmt.Errorf("journal: unsupported backend %q", backend)
	}
	if dsn == "" {
		return nil, fmt.Errorf("journal: empty dsn for %s backend", backend)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", backend, err)
	}
	if backend == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping %s: %w", backend, err)
	}

	j := &Journal{db: db, postgres: backend == "postgres", idColumn: idColumn, now: time.Now}
	if err := j.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, createAdditionsTable); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, createAdditionsIndex); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores rec and returns the new entry.
func (j *Journal) Append(ctx context.Context, rec types.Record) (Entry, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode record: %w", err)
	}
	id, _ := rec.Get(j.idColumn)
	e := Entry{
		ID:             uuid.NewString(),
		EmployeeNumber: types.Text(id),
		Record:         rec.Clone(),
		AddedAt:        j.now().UTC(),
	}

	_, err = j.db.ExecContext(ctx,
		j.rebind(`INSERT INTO employee_additions (id, employee_number, payload, added_at) VALUES (?, ?, ?, ?)`),
		e.ID, e.EmployeeNumber, string(payload), e.AddedAt.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("journal: insert: %w", err)
	}
	return e, nil
}

// Recent returns at most limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		j.rebind(`SELECT id, employee_number, payload, added_at FROM employee_additions ORDER BY added_at DESC, id LIMIT ?`),
		limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			payload string
			addedAt int64
		)
		if err := rows.Scan(&e.ID, &e.EmployeeNumber, &payload, &addedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Record); err != nil {
			return nil, fmt.Errorf("journal: decode entry %s: %w", e.ID, err)
		}
		e.AddedAt = time.Unix(0, addedAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	return out, nil
}

// Prune deletes entries added before cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		j.rebind(`DELETE FROM employee_additions WHERE added_at < ?`),
		cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Run prunes entries older than retention on a ticker of half the retention
// (minimum one minute). A zero retention keeps entries forever and Run only
// waits for ctx. Run blocks until ctx is cancelled.
func (j *Journal) Run(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		<-ctx.Done()
		return
	}
	interval := retention / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := j.Prune(ctx, now.Add(-retention))
			if err != nil {
				slog.Error("journal: prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("journal: pruned entries", "count", n)
			}
		}
	}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (j *Journal) rebind(q string) string {
	if !j.postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
