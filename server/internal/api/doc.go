// Package api implements the HTTP REST API for talentmanager-server.
//
// New(table, opts) returns an http.Handler that serves:
//
//	GET  /                      banner {"message": "API de Empleados activa"}
//	GET  /employees             page of records (?skip=0&limit=50)
//	POST /employees             append one record and rewrite the CSV
//	GET  /employees/{id}        first record whose id column matches; 404 otherwise
//	GET  /stats                 headcount, attrition rate, average ratings
//	GET  /alerts                flagged employees, five fields each
//	GET  /healthz               liveness and current row count
//	GET  /journal               recent appends, newest first (?limit=20)
//
// All endpoints respond with Content-Type: application/json and report
// failures as {"detail": "..."}. Methods other than the ones listed get 405.
// WithCORS wraps any handler with the permissive browser policy the
// dashboard relies on. No external HTTP framework is used for routing.
package api
