package memory

import (
	"sync"

	"github.com/adwski/liveide-collab/backend/model"
)

type room struct {
	mx     sync.Mutex
	closed bool
	model.Room
}

// RoomStore is the room table. The map lock guards room existence and the
// connection index, each room has its own lock for the shared buffer.
type RoomStore struct {
	mx     *sync.RWMutex
	db     map[string]*room
	byConn map[model.ConnID]map[string]struct{}
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		mx:     &sync.RWMutex{},
		db:     make(map[string]*room),
		byConn: make(map[model.ConnID]map[string]struct{}),
	}
}

// Create adds an active room for two members. The id is derived from the
// members' identities.
func (rs *RoomStore) Create(a, b model.Member, code string) (model.Room, error) {
	if a.Conn == b.Conn || a.Identity == b.Identity {
		return model.Room{}, model.ErrSameMember
	}
	id := model.RoomID(a.Identity, b.Identity)

	rs.mx.Lock()
	defer rs.mx.Unlock()

	if _, ok := rs.db[id]; ok {
		return model.Room{}, model.ErrRoomExists
	}
	r := &room{Room: model.Room{
		ID:      id,
		Members: [2]model.Member{a, b},
		Code:    code,
	}}
	rs.db[id] = r
	for _, m := range r.Members {
		rooms, ok := rs.byConn[m.Conn]
		if !ok {
			rooms = make(map[string]struct{})
			rs.byConn[m.Conn] = rooms
		}
		rooms[id] = struct{}{}
	}
	return r.Room, nil
}

func (rs *RoomStore) Get(roomID string) (model.Room, error) {
	rs.mx.RLock()
	r, ok := rs.db[roomID]
	rs.mx.RUnlock()
	if !ok {
		return model.Room{}, model.ErrRoomNotFound
	}

	r.mx.Lock()
	defer r.mx.Unlock()
	if r.closed {
		return model.Room{}, model.ErrRoomNotFound
	}
	return r.Room, nil
}

// UpdateCode overwrites the shared buffer and returns the member that
// should be notified. Last writer wins.
func (rs *RoomStore) UpdateCode(roomID string, from model.ConnID, code string) (model.Member, error) {
	rs.mx.RLock()
	r, ok := rs.db[roomID]
	rs.mx.RUnlock()
	if !ok {
		return model.Member{}, model.ErrRoomNotFound
	}

	r.mx.Lock()
	defer r.mx.Unlock()
	if r.closed {
		return model.Member{}, model.ErrRoomNotFound
	}
	peer, ok := r.Peer(from)
	if !ok {
		return model.Member{}, model.ErrNotAMember
	}
	r.Code = code
	return peer, nil
}

// Close removes the room if conn is one of its members and returns the
// final snapshot.
func (rs *RoomStore) Close(roomID string, conn model.ConnID) (model.Room, error) {
	rs.mx.Lock()
	defer rs.mx.Unlock()

	r, ok := rs.db[roomID]
	if !ok {
		return model.Room{}, model.ErrRoomNotFound
	}
	if _, ok = r.Peer(conn); !ok {
		return model.Room{}, model.ErrNotAMember
	}
	rs.remove(r)
	return r.Room, nil
}

// CloseAll removes every room conn belongs to.
func (rs *RoomStore) CloseAll(conn model.ConnID) []model.Room {
	rs.mx.Lock()
	defer rs.mx.Unlock()

	ids := rs.byConn[conn]
	out := make([]model.Room, 0, len(ids))
	for id := range ids {
		if r, ok := rs.db[id]; ok {
			rs.remove(r)
			out = append(out, r.Room)
		}
	}
	return out
}

// remove must be called with the map lock held.
func (rs *RoomStore) remove(r *room) {
	r.mx.Lock()
	r.closed = true
	r.mx.Unlock()

	delete(rs.db, r.ID)
	for _, m := range r.Members {
		if rooms, ok := rs.byConn[m.Conn]; ok {
			delete(rooms, r.ID)
			if len(rooms) == 0 {
				delete(rs.byConn, m.Conn)
			}
		}
	}
}

// RoomsOf returns ids of rooms conn belongs to.
func (rs *RoomStore) RoomsOf(conn model.ConnID) []string {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	out := make([]string, 0, len(rs.byConn[conn]))
	for id := range rs.byConn[conn] {
		out = append(out, id)
	}
	return out
}

func (rs *RoomStore) Len() int {
	rs.mx.RLock()
	defer rs.mx.RUnlock()
	return len(rs.db)
}
