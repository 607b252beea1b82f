// Package config loads the talentmanager-server configuration from config.yaml.
//
// Config fields:
//   - Server.HTTPPort       : REST API, /metrics and /ws/stream (default 8000)
//   - Server.GRPCPort       : gRPC health service, 0 disables it (default 0)
//   - Server.Auth           : "apikey" or "none"; protects POST /employees
//   - Server.Stream.Interval: WebSocket broadcast period (default 5s)
//   - Data.Path             : backing CSV (default HR-Employee-Attrition.csv)
//   - Data.IDColumn         : identifier column (default EmployeeNumber)
//   - Data.Watch            : reload on external file changes (default true)
//   - Alerts.Rules          : "column op value" rules; defaults to the three
//     built-in criteria when none are given
//   - Storage               : optional sqlite|postgres journal of appends
//
// Load(path) applies defaults, unmarshals the file (an empty path skips it),
// applies the TALENTMANAGER_DATA_PATH and PORT overrides, then validates.
package config
