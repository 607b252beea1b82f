// Package journal keeps an optional audit trail of employees appended through
// the API, in SQLite (mattn/go-sqlite3) or Postgres (pgx stdlib driver).
//
// The CSV file stays the system of record: a journal write that fails is
// logged by the caller and never rejects an append. Run prunes entries older
// than the configured retention.
package journal
