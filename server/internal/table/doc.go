// Package table holds the employee table: rows loaded once from a delimited
// file with a header row, served from memory, and written back in full on
// every append.
//
// Open(path, opts) loads the file and fails with ErrMissingFile when it is
// absent. Reads (List, Get, Stats, Alerts) share a read lock; Add takes the
// write lock and keeps it while the whole file is rewritten through a temp
// file and rename. Watch reloads the table when another process replaces the
// file; writes made by the Table itself are recognised by content hash and
// ignored.
//
// Subscribe delivers added/reloaded/reload_failed events to the metrics,
// stream and alert notifier.
package table
