package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer counts exchanges and serves sequentially numbered tokens.
type tokenServer struct {
	*httptest.Server
	exchanges atomic.Int64
}

func newTokenServer(t *testing.T, expiresIn int) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		require.NotEmpty(t, r.PostForm.Get("client_id"))
		require.NotEmpty(t, r.PostForm.Get("client_secret"))

		n := ts.exchanges.Add(1)
		resp := map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   expiresIn,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func newTestCache(t *testing.T, authHost string, opts ...CacheOption) *Cache {
	t.Helper()

	cache, err := NewCache(Config{
		TenantID: "contoso.example.com",
		AuthHost: authHost,
		ClientID: "client-id",
		Secret:   StaticSecret("client-secret"),
		Resource: "https://api.example.com",
	}, opts...)
	require.NoError(t, err)

	return cache
}

func TestNewCache_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCache(Config{})
	assert.Error(t, err)

	_, err = NewCache(Config{TenantID: "t", AuthHost: "h", ClientID: "c"})
	assert.ErrorContains(t, err, "secret source")
}

func TestCache_Token_Bootstrap(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600)
	cache := newTestCache(t, ts.URL)

	assert.False(t, cache.Populated())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.True(t, cache.Populated())
	assert.Equal(t, int64(1), ts.exchanges.Load())
}

func TestCache_Token_ServedFromCache(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600)
	cache := newTestCache(t, ts.URL)

	for i := 0; i < 5; i++ {
		token, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
	}

	assert.Equal(t, int64(1), ts.exchanges.Load())
}

func TestCache_Token_SingleFlight(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600)
	cache := newTestCache(t, ts.URL)

	const callers = 50

	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = cache.Token(context.Background())
		}(i)
	}
	wg.Wait()

	// All concurrent callers observe the result of a single exchange.
	assert.Equal(t, int64(1), ts.exchanges.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "token-1", tokens[i])
	}
}

func TestCache_Token_ExpiryWindow(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 300)

	now := time.Now()
	current := now
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}

	cache := newTestCache(t, ts.URL, WithClock(clock))

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// 300s lifetime minus the 90s buffer: still valid at 209s.
	advance(209 * time.Second)
	token, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, int64(1), ts.exchanges.Load())

	// Crossing the 210s boundary forces a refresh.
	advance(2 * time.Second)
	token, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, int64(2), ts.exchanges.Load())
}

func TestCache_Token_FailedRefreshKeepsState(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	var exchanges atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
			return
		}
		exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"expires_in":   300,
		})
	}))
	t.Cleanup(srv.Close)

	now := time.Now()
	current := now
	var mu sync.Mutex
	cache := newTestCache(t, srv.URL, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}))

	_, err := cache.Token(context.Background())
	require.NoError(t, err)

	// Expire the token, then make the authority fail.
	mu.Lock()
	current = current.Add(300 * time.Second)
	mu.Unlock()
	fail.Store(true)

	_, err = cache.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenAcquisition)

	// The cache still reports a past successful population so the next
	// attempt retries instead of treating this as bootstrap.
	assert.True(t, cache.Populated())

	// Recovery: the authority comes back and the next call succeeds.
	fail.Store(false)
	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
}

func TestCache_Token_ExpiryFromClaims(t *testing.T) {
	t.Parallel()

	// Unsigned JWT with an exp claim one hour out; the response omits
	// expires_in entirely.
	exp := time.Now().Add(time.Hour).Unix()
	token := unsignedJWT(t, exp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token})
	}))
	t.Cleanup(srv.Close)

	cache := newTestCache(t, srv.URL)

	got, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.True(t, cache.Populated())
}

func TestCache_Token_MissingAccessToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"expires_in": 300})
	}))
	t.Cleanup(srv.Close)

	cache := newTestCache(t, srv.URL)

	_, err := cache.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenAcquisition)
	assert.Contains(t, err.Error(), "access_token")
}

func TestCache_Token_SecretSourceFailure(t *testing.T) {
	t.Parallel()

	cache, err := NewCache(Config{
		TenantID: "contoso.example.com",
		AuthHost: "https://login.example.com",
		ClientID: "client-id",
		Secret: func(context.Context) (string, error) {
			return "", fmt.Errorf("vault sealed")
		},
		Resource: "https://api.example.com",
	})
	require.NoError(t, err)

	_, err = cache.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenAcquisition)
	assert.Contains(t, err.Error(), "client secret")
}

func TestAcquisitionError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := &AcquisitionError{
		TenantID: "contoso.example.com",
		Message:  "token endpoint unreachable",
		Cause:    cause,
	}

	assert.ErrorIs(t, err, ErrTokenAcquisition)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "contoso.example.com")
}

// unsignedJWT builds an alg=none token with the given exp claim.
func unsignedJWT(t *testing.T, exp int64) string {
	t.Helper()

	header := base64JSON(t, map[string]any{"alg": "none", "typ": "JWT"})
	claims := base64JSON(t, map[string]any{"exp": exp})
	return header + "." + claims + "."
}

func base64JSON(t *testing.T, v any) string {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(raw)
}
