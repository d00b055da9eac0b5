package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwski/liveide-collab/backend/metrics"
	"github.com/adwski/liveide-collab/backend/model"
)

type fakeRoster struct {
	users  []model.User
	online []model.Identity
}

func (f *fakeRoster) Users(context.Context) []model.User { return f.users }
func (f *fakeRoster) Online() []model.Identity          { return f.online }

func newTestServer(t *testing.T, svc RosterService) *Server {
	t.Helper()
	logger := zerolog.Nop()
	m := metrics.New(nil)
	m.ActiveRooms.Set(3)
	return NewServer(Config{
		Logger:         &logger,
		RosterService:  svc,
		Metrics:        m.Handler(),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func do(t *testing.T, srv *Server, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestUsers(t *testing.T) {
	srv := newTestServer(t, &fakeRoster{users: []model.User{
		{ID: "1", Name: "alice", Online: true},
		{ID: "2", Name: "bob"},
	}})

	rec := do(t, srv, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Data []model.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []model.User{
		{ID: "1", Name: "alice", Online: true},
		{ID: "2", Name: "bob"},
	}, resp.Data)
}

func TestOnline(t *testing.T) {
	tests := []struct {
		name   string
		online []model.Identity
		want   string
	}{
		{name: "empty", online: nil, want: `{"data":[]}`},
		{name: "two", online: []model.Identity{"alice", "bob"}, want: `{"data":["alice","bob"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRoster{online: tt.online})
			rec := do(t, srv, http.MethodGet, "/api/online", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeRoster{})

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"OK"}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "liveide_active_rooms 3"), rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/users", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &fakeRoster{})

	rec := do(t, srv, http.MethodOptions, "/api/users", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, srv, http.MethodGet, "/api/users", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
