package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// passHandler is a grpc.UnaryHandler that returns ("ok", nil).
func passHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func callWithKey(t *testing.T, a *APIKey, header, key string) (interface{}, error) {
	t.Helper()
	ctx := context.Background()
	if key != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(header, key))
	}
	return a.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, passHandler)
}

// fakeStream is a grpc.ServerStream carrying only a context.
type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestUnary_ModeNone_PassesThrough(t *testing.T) {
	a := NewAPIKey("none", "x-api-key", "secret")
	res, err := a.UnaryInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{}, passHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "ok" {
		t.Errorf("result: got %v, want ok", res)
	}
}

func TestUnary_EmptyKey_PassesThrough(t *testing.T) {
	a := NewAPIKey("apikey", "x-api-key", "")
	if a.Enabled() {
		t.Error("Enabled: got true with empty key, want false")
	}
	if _, err := callWithKey(t, a, "x-api-key", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnary_CorrectKey_Passes(t *testing.T) {
	a := NewAPIKey("apikey", "x-api-key", "supersecret")
	res, err := callWithKey(t, a, "x-api-key", "supersecret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "ok" {
		t.Errorf("result: got %v, want ok", res)
	}
}

func TestUnary_WrongKey_Unauthenticated(t *testing.T) {
	a := NewAPIKey("apikey", "x-api-key", "supersecret")
	_, err := callWithKey(t, a, "x-api-key", "wrong")
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

func TestUnary_NoMetadata_Unauthenticated(t *testing.T) {
	a := NewAPIKey("apikey", "x-api-key", "supersecret")
	_, err := a.UnaryInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{}, passHandler)
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

func TestUnary_MixedCaseHeader(t *testing.T) {
	a := NewAPIKey("apikey", "X-Api-Key", "supersecret")
	if _, err := callWithKey(t, a, "x-api-key", "supersecret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStream(t *testing.T) {
	a := NewAPIKey("apikey", "x-api-key", "supersecret")
	called := false
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return nil
	}

	bad := &fakeStream{ctx: context.Background()}
	if err := a.StreamInterceptor()(nil, bad, &grpc.StreamServerInfo{}, handler); status.Code(err) != codes.Unauthenticated {
		t.Errorf("no key: got %v, want Unauthenticated", err)
	}
	if called {
		t.Error("handler called without key")
	}

	good := &fakeStream{ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "supersecret"))}
	if err := a.StreamInterceptor()(nil, good, &grpc.StreamServerInfo{}, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler not called with valid key")
	}
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	cases := []struct {
		name string
		mode string
		key  string
		sent string
		want int
	}{
		{"disabled", "none", "secret", "", http.StatusCreated},
		{"no key configured", "apikey", "", "", http.StatusCreated},
		{"correct", "apikey", "secret", "secret", http.StatusCreated},
		{"wrong", "apikey", "secret", "nope", http.StatusUnauthorized},
		{"missing", "apikey", "secret", "", http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := NewAPIKey(c.mode, "x-api-key", c.key).Middleware(ok)
			req := httptest.NewRequest(http.MethodPost, "/employees", nil)
			if c.sent != "" {
				req.Header.Set("x-api-key", c.sent)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != c.want {
				t.Errorf("status: got %d, want %d", rr.Code, c.want)
			}
		})
	}
}
