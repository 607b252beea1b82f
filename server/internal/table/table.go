package table

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/talentmanager/talentmanager/pkg/types"
	"github.com/talentmanager/talentmanager/server/internal/alerts"
)

// Columns the service interprets. Every other column is carried through as-is.
const (
	ColJobRole         = "JobRole"
	ColAttrition       = "Attrition"
	ColPerformance     = "PerformanceRating"
	ColSatisfaction    = "JobSatisfaction"
	ColWorkLifeBalance = "WorkLifeBalance"
	ColOverTime        = "OverTime"
)

var (
	// ErrNotFound is returned by Get when no record has the requested identifier.
	ErrNotFound = errors.New("table: employee not found")

	// ErrMissingFile is returned by Open and Reload when the backing file is absent.
	ErrMissingFile = errors.New("table: backing file not found")
)

// Stats is the aggregate view of the whole table.
type Stats struct {
	TotalEmployees  int     `json:"total_employees"`
	AttritionRate   float64 `json:"attrition_rate"`
	AvgPerformance  float64 `json:"avg_performance"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

// Options configures a Table.
type Options struct {
	// IDColumn names the identifier column. Defaults to "EmployeeNumber".
	IDColumn string

	// Alerts selects the records returned by Alerts. Defaults to alerts.Default().
	Alerts *alerts.Evaluator
}

// Table is the in-memory employee table backed by a delimited file.
//
// A single RWMutex guards the rows: reads share it, Add and Reload hold it
// exclusively, and Add keeps it for the whole file rewrite. Records handed
// out are copies.
type Table struct {
	path     string
	idColumn string
	alerts   *alerts.Evaluator

	mu      sync.RWMutex
	columns []string
	rows    []types.Record
	sum     [sha256.Size]byte // content hash of the file as last read or written

	subMu sync.Mutex
	subs  []func(Event)
}

// Open loads the table from path. It returns ErrMissingFile when the file
// does not exist.
func Open(path string, opts Options) (*Table, error) {
	if opts.IDColumn == "" {
		opts.IDColumn = "EmployeeNumber"
	}
	if opts.Alerts == nil {
		opts.Alerts = alerts.Default()
	}
	t := &Table{
		path:     path,
		idColumn: opts.IDColumn,
		alerts:   opts.Alerts,
	}

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	columns, rows, err := decode(bytes.NewReader(data), t.idColumn)
	if err != nil {
		return nil, fmt.Errorf("table: parse %q: %w", path, err)
	}
	t.columns, t.rows, t.sum = columns, rows, sha256.Sum256(data)
	return t, nil
}

// Path returns the backing file path.
func (t *Table) Path() string { return t.path }

// IDColumn returns the identifier column name.
func (t *Table) IDColumn() string { return t.idColumn }

// Len returns the number of records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// List returns at most limit records starting at offset skip, in table order.
// Offsets past the end yield an empty, non-nil slice.
func (t *Table) List(skip, limit int) []types.Record {
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.rows)
	if skip >= n || limit == 0 {
		return []types.Record{}
	}
	end := n
	if limit < n-skip {
		end = skip + limit
	}

	out := make([]types.Record, 0, end-skip)
	for _, rec := range t.rows[skip:end] {
		out = append(out, rec.Project(t.columns...))
	}
	return out
}

// Get returns the first record whose identifier equals id.
func (t *Table) Get(id string) (types.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rec := range t.rows {
		v, _ := rec.Get(t.idColumn)
		if types.Text(v) == id {
			return rec.Project(t.columns...), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Stats aggregates the whole table. Means skip empty and non-numeric cells.
// An empty table yields all zeros.
func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := len(t.rows)
	if total == 0 {
		return Stats{}
	}

	var attrition int
	var perf, sat mean
	for _, rec := range t.rows {
		if v, _ := rec.Get(ColAttrition); v == "Yes" {
			attrition++
		}
		p, _ := rec.Get(ColPerformance)
		perf.add(p)
		s, _ := rec.Get(ColSatisfaction)
		sat.add(s)
	}

	return Stats{
		TotalEmployees:  total,
		AttritionRate:   round2(float64(attrition) / float64(total)),
		AvgPerformance:  round2(perf.value()),
		AvgSatisfaction: round2(sat.value()),
	}
}

// AlertFields are the columns, after the identifier, of each Alerts entry.
var AlertFields = []string{ColJobRole, ColPerformance, ColWorkLifeBalance, ColOverTime}

// Alerts returns the records matching any alert rule: rule by rule, each in
// table order, keeping the first occurrence of records that are identical
// across every column. Each entry carries only the identifier and
// AlertFields.
func (t *Table) Alerts() []types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fields := append([]string{t.idColumn}, AlertFields...)
	seen := make(map[string]struct{})
	out := []types.Record{}

	for _, rule := range t.alerts.Rules() {
		for _, rec := range t.rows {
			if !rule.Matches(rec) {
				continue
			}
			key := contentKey(rec, t.columns)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec.Project(fields...))
		}
	}
	return out
}

// Add appends rec as the last row and rewrites the whole backing file while
// holding the write lock. Columns rec introduces are appended to the header.
// When the rewrite fails the table is left unchanged.
func (t *Table) Add(rec types.Record) error {
	rec = rec.Clone()
	if v, ok := rec.Get(t.idColumn); ok && v != nil {
		if _, isText := v.(string); !isText {
			rec.Set(t.idColumn, types.Text(v))
		}
	}

	t.mu.Lock()
	columns := mergeColumns(t.columns, rec)
	rows := append(t.rows[:len(t.rows):len(t.rows)], rec)

	data, err := encode(columns, rows)
	if err == nil {
		err = writeFile(t.path, data)
	}
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("table: persist %q: %w", t.path, err)
	}
	t.columns, t.rows, t.sum = columns, rows, sha256.Sum256(data)
	n := len(rows)
	added := rec.Project(columns...)
	t.mu.Unlock()

	t.publish(Event{Kind: EventAdded, Record: added, Count: n})
	return nil
}

// Reload re-reads the backing file and swaps the table in one step. It
// reports false without touching the table when the file content is what
// this Table last read or wrote.
func (t *Table) Reload() (bool, error) {
	changed, n, err := t.reload()
	if err != nil {
		t.publish(Event{Kind: EventReloadFailed, Err: err})
		return false, err
	}
	if changed {
		t.publish(Event{Kind: EventReloaded, Count: n})
	}
	return changed, nil
}

func (t *Table) reload() (bool, int, error) {
	data, err := readFile(t.path)
	if err != nil {
		return false, 0, err
	}
	sum := sha256.Sum256(data)

	t.mu.RLock()
	prev := t.sum
	t.mu.RUnlock()
	if sum == prev {
		return false, 0, nil
	}

	columns, rows, err := decode(bytes.NewReader(data), t.idColumn)
	if err != nil {
		return false, 0, fmt.Errorf("table: parse %q: %w", t.path, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sum != prev {
		// An Add rewrote the file after it was read; data is already stale.
		return false, 0, nil
	}
	t.columns, t.rows, t.sum = columns, rows, sum
	return true, len(rows), nil
}

// --- helpers ----------------------------------------------------------------

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("table: read %q: %w", path, err)
	}
	return data, nil
}

func mergeColumns(columns []string, rec types.Record) []string {
	out := columns[:len(columns):len(columns)]
	for _, name := range rec.Names() {
		found := false
		for _, c := range out {
			if c == name {
				found = true
				break
			}
		}
		if !found {
			out = append(out, name)
		}
	}
	return out
}

// contentKey identifies a record by every column value, typed.
func contentKey(rec types.Record, columns []string) string {
	var b strings.Builder
	for _, c := range columns {
		v, _ := rec.Get(c)
		fmt.Fprintf(&b, "%T:%s\x1f", v, types.Text(v))
	}
	return b.String()
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v any) {
	if f, ok := types.Number(v); ok {
		m.sum += f
		m.n++
	}
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// round2 rounds to two decimals. Exact binary halves go to the even digit,
// so 0.125 becomes 0.12.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
