package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwski/liveide-collab/backend/metrics"
	"github.com/adwski/liveide-collab/backend/model"
	"github.com/adwski/liveide-collab/backend/service"
	"github.com/adwski/liveide-collab/backend/storage/memory"
	sw "github.com/adwski/liveide-collab/backend/switch"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, origins ...string) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	m := metrics.New(nil)
	svc := service.NewService(service.Config{
		Roster:    memory.NewRoster(),
		RoomStore: memory.NewRoomStore(),
		Switch:    sw.NewSwitch(&logger, m),
		Metrics:   m,
		Logger:    &logger,
	})
	srv := NewServer(Config{
		Logger:           &logger,
		SignalingService: svc,
		AllowedOrigins:   origins,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func socketURL(ts *httptest.Server, identity string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket?" + IdentityParam + "=" + url.QueryEscape(identity)
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(inbound{Type: typ, Payload: b}))
}

func recv(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg inbound
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, typ, msg.Type, string(msg.Payload))
	if payload != nil {
		require.NoError(t, json.Unmarshal(msg.Payload, payload))
	}
}

// join dials and waits for the user list, which is only answered once the
// connection is registered.
func join(t *testing.T, ts *httptest.Server, identity string) (*websocket.Conn, []model.User) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(socketURL(ts, identity), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	send(t, conn, model.EventGetUsers, nil)
	var users []model.User
	recv(t, conn, model.EventUserList, &users)
	return conn, users
}

func TestHelpSessionOverWebsocket(t *testing.T) {
	ts := newTestServer(t)

	alice, users := join(t, ts, "alice")
	require.Equal(t, []model.User{{ID: "alice", Name: "alice", Online: true}}, users)

	bob, users := join(t, ts, "bob")
	require.Len(t, users, 2)

	var connected model.User
	recv(t, alice, model.EventUserConnected, &connected)
	assert.Equal(t, model.User{ID: "bob", Name: "bob", Online: true}, connected)

	send(t, alice, model.EventAskHelp, model.AskHelp{Student: "alice", Teacher: "bob", StudentCode: "print(1)"})
	var req model.AskHelp
	recv(t, bob, model.EventHelpRequest, &req)
	assert.Equal(t, model.AskHelp{Student: "alice", Teacher: "bob", StudentCode: "print(1)"}, req)

	send(t, bob, model.EventHelpResponse, model.HelpResponse{
		Student: "alice", Teacher: "bob", Accepted: true, TeacherCode: "print(2)",
	})
	var resp model.HelpResponseReceived
	recv(t, alice, model.EventHelpResponseReceived, &resp)
	assert.Equal(t, model.HelpResponseReceived{Teacher: "bob", Accepted: true, TeacherCode: "print(2)"}, resp)

	var aliceJoin, bobJoin model.JoinRoom
	recv(t, alice, model.EventJoinRoom, &aliceJoin)
	recv(t, bob, model.EventJoinRoom, &bobJoin)
	assert.Equal(t, model.JoinRoom{RoomID: "alice:bob", Code: "print(2)"}, aliceJoin)
	assert.Equal(t, aliceJoin, bobJoin)

	send(t, bob, model.EventUpdateCode, model.UpdateCode{RoomID: "alice:bob", Code: "print(3)"})
	var upd model.CodeUpdated
	recv(t, alice, model.EventCodeUpdated, &upd)
	assert.Equal(t, "print(3)", upd.Code)

	require.NoError(t, alice.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	var left model.UserLeftRoom
	recv(t, bob, model.EventUserLeftRoom, &left)
	assert.Equal(t, "alice", left.Identity)

	var gone model.User
	recv(t, bob, model.EventUserDisconnected, &gone)
	assert.Equal(t, model.User{ID: "alice", Name: "alice"}, gone)
}

func TestMalformedMessagesKeepConnection(t *testing.T) {
	ts := newTestServer(t)
	conn, _ := join(t, ts, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, "dance", nil)
	send(t, conn, model.EventGetUsers, nil)

	var users []model.User
	recv(t, conn, model.EventUserList, &users)
	assert.Len(t, users, 1)
}

func TestCheckOrigin(t *testing.T) {
	ts := newTestServer(t, "http://localhost:3000")

	h := http.Header{}
	h.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(socketURL(ts, "alice"), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	h.Set("Origin", "http://localhost:3000")
	conn, resp, err := websocket.DefaultDialer.Dial(socketURL(ts, "alice"), h)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}

func TestCheckOriginFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/socket", nil)
	assert.True(t, checkOrigin(nil)(r))
	assert.True(t, checkOrigin([]string{"http://a"})(r), "requests without origin are allowed")

	r.Header.Set("Origin", "http://b")
	assert.False(t, checkOrigin([]string{"http://a"})(r))
	assert.True(t, checkOrigin([]string{"http://a", "*"})(r))
}
