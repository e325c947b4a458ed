package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/versehub/internal/config"
	"github.com/npezzotti/versehub/internal/database"
	"github.com/npezzotti/versehub/internal/server"
	"github.com/npezzotti/versehub/internal/stats"
	"github.com/npezzotti/versehub/internal/testutil"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

const adminId = 100

func newTestApp(t *testing.T, db *database.MockPlatformRepository) (*App, *server.ChatServer) {
	t.Helper()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, db, stats.NopStats{}, time.Hour, 5)
	require.NoError(t, err, "new chat server")

	app := NewApp(http.NewServeMux(), logger, cs, db, &config.Config{
		ServerAddr: "localhost:0",
		SigningKey: testSigningKey,
		AdminIds:   []int{adminId},
	})
	return app, cs
}

func tokenFor(t *testing.T, userId int) string {
	return testutil.SignedToken(t, testSigningKey, userId, time.Hour)
}

// doRequest runs an authenticated request for userId through the full
// handler chain. userId 0 sends no credentials.
func doRequest(t *testing.T, app *App, method, target string, body any, userId int) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, r)
	if userId > 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userId))
	}

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "decode response body")
	return v
}
