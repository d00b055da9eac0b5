package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomID(t *testing.T) {
	assert.Equal(t, RoomID("alice", "bob"), RoomID("bob", "alice"))
	assert.Equal(t, "alice:bob", RoomID("bob", "alice"))

	// separator inside a name must not collide with another pair
	assert.NotEqual(t, RoomID("a:b", "c"), RoomID("a", "b:c"))
	assert.NotEqual(t, RoomID("a b", "c"), RoomID("a+b", "c"))
}

func TestRoomPeer(t *testing.T) {
	r := Room{Members: [2]Member{{Identity: "alice", Conn: "c1"}, {Identity: "bob", Conn: "c2"}}}

	p, ok := r.Peer("c1")
	require.True(t, ok)
	assert.Equal(t, "bob", p.Identity)

	p, ok = r.Peer("c2")
	require.True(t, ok)
	assert.Equal(t, "alice", p.Identity)

	_, ok = r.Peer("c3")
	assert.False(t, ok)
}

func TestEnvelopeDecode(t *testing.T) {
	env := Envelope{Type: EventUpdateCode, Payload: []byte(`{"roomId":"a:b","code":"x=1"}`)}
	var upd UpdateCode
	require.NoError(t, env.Decode(&upd))
	assert.Equal(t, UpdateCode{RoomID: "a:b", Code: "x=1"}, upd)

	var empty LeaveRoom
	require.NoError(t, Envelope{Type: EventLeaveRoom}.Decode(&empty))
	assert.Empty(t, empty.RoomID)
}
