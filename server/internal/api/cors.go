package api

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS wraps h so that any browser origin may call the API with
// credentials. The request Origin is echoed back instead of "*", which is
// what browsers require once credentials are allowed.
func WithCORS(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc: func(string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(h)
}
