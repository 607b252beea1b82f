package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talentmanager/talentmanager/pkg/types"
	"github.com/talentmanager/talentmanager/server/internal/auth"
	"github.com/talentmanager/talentmanager/server/internal/journal"
	"github.com/talentmanager/talentmanager/server/internal/metrics"
	"github.com/talentmanager/talentmanager/server/internal/table"
)

const (
	defaultLimit        = 50
	defaultJournalLimit = 20
	maxBodyBytes        = 1 << 20

	msgActive   = "API de Empleados activa"
	msgAdded    = "Empleado añadido con éxito"
	msgNotFound = "Empleado no encontrado"

	detailMethodNotAllowed = "Method Not Allowed"
	detailNotFound         = "Not Found"
)

// Journal is the optional audit trail of appended employees.
type Journal interface {
	Append(ctx context.Context, rec types.Record) (journal.Entry, error)
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	// Auth guards POST /employees. Nil leaves the write path open.
	Auth *auth.APIKey

	// Metrics counts requests per route. Nil disables counting.
	Metrics *metrics.Metrics

	// Journal records appends and serves GET /journal. Nil disables both.
	Journal Journal
}

// Handler is the HTTP handler for the employee endpoints.
// It reads from and appends to the employee table and returns JSON responses.
type Handler struct {
	table *table.Table
	opts  Options
	mux   *http.ServeMux
}

// New creates a Handler wired to tbl and registers all routes.
func New(tbl *table.Table, opts Options) http.Handler {
	h := &Handler{table: tbl, opts: opts, mux: http.NewServeMux()}

	h.handle("/", "root", h.root)
	h.handle("/employees", "employees", h.employees)
	h.handle("/employees/", "employee", h.getEmployee) // subtree, extracts {employee_id}
	h.handle("/stats", "stats", h.stats)
	h.handle("/alerts", "alerts", h.alerts)
	h.handle("/healthz", "healthz", h.healthz)
	h.handle("/journal", "journal", h.journal)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handle registers fn under pattern, counting responses under route.
func (h *Handler) handle(pattern, route string, fn http.HandlerFunc) {
	if h.opts.Metrics == nil {
		h.mux.HandleFunc(pattern, fn)
		return
	}
	m := h.opts.Metrics
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		fn(rec, r)
		m.Observe(route, rec.code)
	})
}

// --- route handlers ---------------------------------------------------------

// root returns GET /, the liveness banner. Unknown paths fall through here.
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, detailNotFound)
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
		return
	}
	jsonResp(w, http.StatusOK, messageResponse{Message: msgActive})
}

// employees dispatches GET /employees (list) and POST /employees (append).
func (h *Handler) employees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listEmployees(w, r)
	case http.MethodPost:
		if h.opts.Auth != nil {
			h.opts.Auth.Middleware(http.HandlerFunc(h.addEmployee)).ServeHTTP(w, r)
			return
		}
		h.addEmployee(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
	}
}

// listEmployees returns GET /employees?skip=&limit= : a page of records.
func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := queryInt(q.Get("skip"), 0)
	if err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, "skip: "+err.Error())
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultLimit)
	if err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, "limit: "+err.Error())
		return
	}
	jsonResp(w, http.StatusOK, h.table.List(skip, limit))
}

// addEmployee handles POST /employees. It appends the JSON object body as a new
// row and rewrites the backing file.
func (h *Handler) addEmployee(w http.ResponseWriter, r *http.Request) {
	var rec types.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, "body must be a JSON object")
		return
	}

	if err := h.table.Add(rec); err != nil {
		slog.Error("api: append failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not persist employee")
		return
	}

	if h.opts.Journal != nil {
		if _, err := h.opts.Journal.Append(r.Context(), rec); err != nil {
			slog.Error("api: journal append failed", "err", err)
		}
	}

	jsonResp(w, http.StatusOK, messageResponse{Message: msgAdded})
}

// getEmployee returns GET /employees/{employee_id}: the first matching record.
func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/employees/")
	if id == "" {
		// Bare /employees/ behaves like /employees.
		h.employees(w, r)
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
		return
	}

	rec, err := h.table.Get(id)
	if errors.Is(err, table.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

// stats returns GET /stats: aggregates over the whole table.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
		return
	}
	jsonResp(w, http.StatusOK, h.table.Stats())
}

// alerts returns GET /alerts: flagged employees, five fields each.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
		return
	}
	jsonResp(w, http.StatusOK, h.table.Alerts())
}

// healthz returns GET /healthz: process liveness and table size.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok", Employees: h.table.Len()})
}

// journal returns GET /journal?limit=: most recent appends, newest first.
func (h *Handler) journal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
		return
	}
	if h.opts.Journal == nil {
		jsonErr(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit, err := queryInt(r.URL.Query().Get("limit"), defaultJournalLimit)
	if err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, "limit: "+err.Error())
		return
	}
	entries, err := h.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("api: journal query failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not read journal")
		return
	}
	jsonResp(w, http.StatusOK, entries)
}

// --- helpers ----------------------------------------------------------------

// BuildStream assembles the payload pushed to WebSocket clients.
func BuildStream(tbl *table.Table) StreamResponse {
	return StreamResponse{
		Stats:       tbl.Stats(),
		AlertCount:  len(tbl.Alerts()),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Detail: msg})
}

// queryInt parses a non-negative integer query value, or returns def when empty.
func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}
