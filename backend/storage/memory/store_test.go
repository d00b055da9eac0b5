package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwski/liveide-collab/backend/model"
)

var (
	alice = model.Member{Identity: "alice", Conn: "c1"}
	bob   = model.Member{Identity: "bob", Conn: "c2"}
)

func TestRoomStore_Lifecycle(t *testing.T) {
	rs := NewRoomStore()

	room, err := rs.Create(alice, bob, "x=2")
	require.NoError(t, err)
	assert.Equal(t, "alice:bob", room.ID)
	assert.Equal(t, "x=2", room.Code)
	assert.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{room.ID}, rs.RoomsOf("c1"))

	_, err = rs.Create(bob, alice, "other")
	assert.ErrorIs(t, err, model.ErrRoomExists)

	peer, err := rs.UpdateCode(room.ID, "c1", "x=3")
	require.NoError(t, err)
	assert.Equal(t, bob, peer)

	got, err := rs.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, "x=3", got.Code)

	_, err = rs.UpdateCode(room.ID, "c9", "x=4")
	assert.ErrorIs(t, err, model.ErrNotAMember)
	_, err = rs.UpdateCode("missing", "c1", "x=4")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)

	_, err = rs.Close(room.ID, "c9")
	assert.ErrorIs(t, err, model.ErrNotAMember)

	closed, err := rs.Close(room.ID, "c2")
	require.NoError(t, err)
	assert.Equal(t, "x=3", closed.Code)
	assert.Equal(t, 0, rs.Len())
	assert.Empty(t, rs.RoomsOf("c1"))

	_, err = rs.Close(room.ID, "c2")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
	_, err = rs.UpdateCode(room.ID, "c1", "x=5")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
	_, err = rs.Get(room.ID)
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}

func TestRoomStore_SameMember(t *testing.T) {
	rs := NewRoomStore()
	_, err := rs.Create(alice, model.Member{Identity: "alice", Conn: "c3"}, "")
	assert.ErrorIs(t, err, model.ErrSameMember)
	assert.Equal(t, 0, rs.Len())
}

func TestRoomStore_CloseAll(t *testing.T) {
	rs := NewRoomStore()
	carol := model.Member{Identity: "carol", Conn: "c3"}

	_, err := rs.Create(alice, bob, "")
	require.NoError(t, err)
	_, err = rs.Create(carol, alice, "")
	require.NoError(t, err)
	_, err = rs.Create(bob, carol, "")
	require.NoError(t, err)

	closed := rs.CloseAll("c1")
	assert.Len(t, closed, 2)
	assert.Equal(t, 1, rs.Len())
	assert.Empty(t, rs.CloseAll("c1"), "idempotent")
	assert.Equal(t, []string{"bob:carol"}, rs.RoomsOf("c2"))
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(model.User{ID: "1", Name: "zed", Online: true})

	u, err := d.Ensure(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.User{ID: "alice", Name: "alice"}, u)

	u, err = d.Ensure(ctx, "zed")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)

	users, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)
	assert.False(t, users[1].Online, "online is never stored")
}
