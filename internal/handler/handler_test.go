package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"session-service/internal/db"
	"session-service/internal/session"
)

func newTestRouter(t *testing.T) (*gin.Engine, session.Store) {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Migrate(ctx, database, "sqlite3", session.DefaultTableName))

	store, err := session.NewSQLStore(database, session.SQLConfig{Dialect: "sqlite3"})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(store).RegisterRoutes(router)
	return router, store
}

func do(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodPost, "/sessions", map[string]any{
		"principal":  "alice",
		"attributes": map[string]any{"theme": "dark"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	require.Equal(t, "alice", created.Principal)

	w = do(router, http.MethodGet, "/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.Equal(t, created.SessionID, fetched.SessionID)
	require.Equal(t, "dark", fetched.Attributes["theme"])
}

func TestGetSessionMalformedID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodGet, "/sessions/garbage", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodGet, "/sessions/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(router, http.MethodDelete, "/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodGet, "/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRotateSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodPost, "/sessions", map[string]any{
		"attributes": map[string]any{"foo": "bar"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(router, http.MethodPost, "/sessions/"+created.SessionID+"/rotate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rotated struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	require.NotEqual(t, created.SessionID, rotated.SessionID)

	w = do(router, http.MethodGet, "/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/sessions/"+rotated.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.Equal(t, "bar", fetched.Attributes["foo"])
}

func TestAttributeEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodPost, "/sessions", nil)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(router, http.MethodPut, "/sessions/"+created.SessionID+"/attributes/theme",
		map[string]any{"value": "light"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodGet, "/sessions/"+created.SessionID, nil)
	var fetched sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.Equal(t, "light", fetched.Attributes["theme"])

	w = do(router, http.MethodDelete, "/sessions/"+created.SessionID+"/attributes/theme", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodGet, "/sessions/"+created.SessionID, nil)
	fetched = sessionResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.NotContains(t, fetched.Attributes, "theme")
}

func TestFindByPrincipal(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		w := do(router, http.MethodPost, "/sessions", map[string]any{"principal": "alice"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := do(router, http.MethodPost, "/sessions", map[string]any{"principal": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodGet, "/sessions?principal=alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions map[string]sessionResponse `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)

	w = do(router, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
