package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/actor"
	"tminus/internal/queue"
	"tminus/internal/ratelimit"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	q := queue.NewWithClient(client, "test:outbound")

	pool := actor.NewPool(t.TempDir(), actor.Deps{Queue: q})
	t.Cleanup(func() { _ = pool.CloseAll() })
	return NewServer(pool, nil, nil)
}

func post(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestDispatch_UnknownOperationReturns404(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, "/users/user-1/notAnOperation", map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatch_ApplyThenGetCanonicalEventRoundTrips(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/users/user-1/applyProviderDelta", map[string]interface{}{
		"origin_account_id": "acct-a",
		"origin_event_id":   "evt-1",
		"title":             "Standup",
		"start_ts":          "2026-08-01T09:00:00Z",
		"end_ts":             "2026-08-01T10:00:00Z",
		"timezone":          "UTC",
		"status":            "confirmed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var applied struct {
		Event struct {
			CanonicalEventID string `json:"CanonicalEventID"`
		} `json:"Event"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	require.NotEmpty(t, applied.Event.CanonicalEventID)

	rec = post(t, s, "/users/user-1/getCanonicalEvent", map[string]string{
		"canonical_event_id": applied.Event.CanonicalEventID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Standup")
}

func TestDispatch_GetCanonicalEventMissingIDReturnsNullNotError(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, "/users/user-1/getCanonicalEvent", map[string]string{
		"canonical_event_id": "does-not-exist",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestDispatch_WrongMethodReturns405(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/users/user-1/getCanonicalEvent", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDispatch_ApplyProviderDeltaMissingRequiredFieldIsRejected(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, "/users/user-1/applyProviderDelta", map[string]interface{}{
		"title":    "Standup",
		"start_ts": "2026-08-01T09:00:00Z",
		"end_ts":   "2026-08-01T10:00:00Z",
		"timezone": "UTC",
		"status":   "confirmed",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid input")
}

func TestDispatch_RateLimitExceededReturns429(t *testing.T) {
	s := testServer(t)
	s.limiter = ratelimit.NewRegistry(ratelimit.Config{RequestsPerSecond: 1, Burst: 1})

	first := post(t, s, "/users/user-1/getCanonicalEvent", map[string]string{"canonical_event_id": "does-not-exist"})
	require.Equal(t, http.StatusOK, first.Code)

	second := post(t, s, "/users/user-1/getCanonicalEvent", map[string]string{"canonical_event_id": "does-not-exist"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := post(t, s, "/users/user-2/getCanonicalEvent", map[string]string{"canonical_event_id": "does-not-exist"})
	assert.Equal(t, http.StatusOK, other.Code, "a different user_id has its own token bucket")
}
