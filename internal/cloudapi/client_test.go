package cloudapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/questsync/internal/common"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithHTTPClient(srv.Client()))
}

func TestPing(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestRecords(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quests", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{{"id": "q1", "last_updated": "2024-01-01T00:00:00Z"}},
		})
	})

	rows, err := c.Records(context.Background(), "quests", map[string][]string{"project_id": {"p1"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "q1", rows[0].RecordID())
}

func TestRecordsPage(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quests", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "4", r.URL.Query().Get("offset"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records":     []map[string]any{{"id": "q5"}, {"id": "q6"}},
			"total_count": 11,
		})
	})

	rows, total, err := c.RecordsPage(context.Background(), "quests",
		map[string][]string{"project_id": {"p1"}}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "q5", rows[0].RecordID())
}

func TestExecutor(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []map[string]any{{"id": "a1"}}})
	})

	rows, err := c.Executor("assets", nil)(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestQuestExists(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/quests/q1":
			_ = json.NewEncoder(w).Encode(map[string]any{"active": true})
		case "/v1/quests/q2":
			_ = json.NewEncoder(w).Encode(map[string]any{"active": false})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	ok, err := c.QuestExists(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.QuestExists(ctx, "q2")
	require.NoError(t, err)
	assert.False(t, ok, "inactive quest does not count as present")

	ok, err = c.QuestExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistingAssetIDs(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/assets/existing", r.URL.Path)
		var in map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, []string{"a1", "a2", "a3"}, in["ids"])
		_ = json.NewEncoder(w).Encode(map[string]any{"ids": []string{"a1", "a3"}})
	})

	ids, err := c.ExistingAssetIDs(context.Background(), []string{"a1", "a2", "a3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a3"}, ids)

	// empty input never hits the network
	ids, err = c.ExistingAssetIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDo_ErrorMapping(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/missing":
			http.NotFound(w, r)
		default:
			http.Error(w, "broken", http.StatusInternalServerError)
		}
	})
	ctx := context.Background()

	err := c.get(ctx, "/v1/missing", nil, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = c.get(ctx, "/v1/broken", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestTokenRefresh(t *testing.T) {
	fresh := signedToken(t, time.Now().Add(time.Hour))
	refreshes := 0

	var c *Client
	c = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh":
			refreshes++
			_ = json.NewEncoder(w).Encode(map[string]string{
				"access_token":  fresh,
				"refresh_token": "r2",
			})
		case "/v1/health":
			assert.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})

	expired := signedToken(t, time.Now().Add(-time.Minute))
	c.SetTokens(expired, "r1")

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, refreshes)

	// the fresh token is reused without another refresh
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, refreshes)
}

func TestTokenPassthrough(t *testing.T) {
	valid := signedToken(t, time.Now().Add(time.Hour))
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+valid, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})
	c.SetTokens(valid, "r1")
	require.NoError(t, c.Ping(context.Background()))
}
