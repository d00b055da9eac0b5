package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateRegistries(t *testing.T) {
	a, b := New(nil), New(nil)
	a.HelpRequests.WithLabelValues(OutcomeDelivered).Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.HelpRequests.WithLabelValues(OutcomeDelivered)))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.HelpRequests.WithLabelValues(OutcomeDelivered)))
}

func TestSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	assert.Panics(t, func() { New(reg) }, "collectors are registered once per registry")

	m.OnlineUsers.Set(2)
	m.DroppedEvents.WithLabelValues("codeUpdated").Inc()

	n, err := testutil.GatherAndCount(reg, "liveide_online_users", "liveide_dropped_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.ActiveRooms.Set(1)
	m.CodeUpdates.Add(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "liveide_active_rooms 1"), body)
	assert.True(t, strings.Contains(body, "liveide_code_updates_total 5"), body)
}
