package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// APIKey checks a shared key carried in an HTTP header or gRPC metadata.
//
// When mode != "apikey" or key == "", every caller is allowed.
type APIKey struct {
	mode   string
	header string
	key    string
}

// NewAPIKey returns a checker for the given mode, header name and expected key.
func NewAPIKey(mode, header, key string) *APIKey {
	return &APIKey{mode: mode, header: header, key: key}
}

// Enabled reports whether callers must present the key.
func (a *APIKey) Enabled() bool {
	return a.mode == "apikey" && a.key != ""
}

func (a *APIKey) valid(got string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.key)) == 1
}

// UnaryInterceptor enforces the key on unary gRPC calls.
// A missing, empty or incorrect key returns codes.Unauthenticated.
func (a *APIKey) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if err := a.checkContext(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor enforces the key on streaming gRPC calls.
func (a *APIKey) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := a.checkContext(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// checkContext reads the key from incoming metadata. gRPC lowercases
// metadata keys, so the header is matched in lowercase.
func (a *APIKey) checkContext(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(strings.ToLower(a.header))
	if len(vals) == 0 || !a.valid(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

// Middleware rejects HTTP requests without the key with 401.
func (a *APIKey) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Enabled() && !a.valid(r.Header.Get(a.header)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
