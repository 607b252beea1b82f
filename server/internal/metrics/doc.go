// Package metrics exposes talentmanager-server's Prometheus metrics on a
// dedicated registry: request counts per route, the table size, appends and
// reloads.
package metrics
