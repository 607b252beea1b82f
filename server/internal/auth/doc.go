// Package auth provides API key authentication for talentmanager-server.
//
// NewAPIKey(mode, header, key) builds a checker shared by the gRPC health
// listener (UnaryInterceptor, StreamInterceptor) and the REST write path
// (Middleware).
//
// When mode != "apikey" or key == "", all calls pass through, matching the
// open behaviour of the service when auth is not configured. A wrong or
// absent key yields codes.Unauthenticated on gRPC and 401 on HTTP.
package auth
