// Package health serves the standard gRPC health-checking protocol for
// talentmanager-server. The status follows the employee table: SERVING once
// it is loaded, NOT_SERVING after a failed reload of the backing file.
package health
