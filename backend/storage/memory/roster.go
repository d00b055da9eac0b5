package memory

import (
	"sync"

	"github.com/adwski/liveide-collab/backend/model"
)

// Roster is the connection registry. It maps live connections to the
// identity they opened with and keeps the reverse index ordered by
// registration time, so the oldest connection of an identity comes first.
type Roster struct {
	mx    *sync.RWMutex
	conns map[model.ConnID]model.Identity
	index map[model.Identity][]model.ConnID
}

func NewRoster() *Roster {
	return &Roster{
		mx:    &sync.RWMutex{},
		conns: make(map[model.ConnID]model.Identity),
		index: make(map[model.Identity][]model.ConnID),
	}
}

// Register adds a connection. Anonymous connections are ignored, and a
// connection keeps the identity it was first registered with.
// first reports whether this is the only live connection of the identity.
func (rs *Roster) Register(conn model.ConnID, identity model.Identity) (first bool) {
	if identity == "" || conn == "" {
		return false
	}
	rs.mx.Lock()
	defer rs.mx.Unlock()

	if _, ok := rs.conns[conn]; ok {
		return false
	}
	rs.conns[conn] = identity
	rs.index[identity] = append(rs.index[identity], conn)
	return len(rs.index[identity]) == 1
}

// Unregister removes a connection and returns the identity it held.
// last reports whether the identity has no live connections left.
func (rs *Roster) Unregister(conn model.ConnID) (identity model.Identity, last, ok bool) {
	rs.mx.Lock()
	defer rs.mx.Unlock()

	identity, ok = rs.conns[conn]
	if !ok {
		return "", false, false
	}
	last = rs.remove(conn, identity)
	return identity, last, true
}

func (rs *Roster) remove(conn model.ConnID, identity model.Identity) bool {
	delete(rs.conns, conn)
	ids := rs.index[identity]
	for i, id := range ids {
		if id == conn {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(rs.index, identity)
		return true
	}
	rs.index[identity] = ids
	return false
}

// ListOnline returns distinct online identities in no particular order.
func (rs *Roster) ListOnline() []model.Identity {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	out := make([]model.Identity, 0, len(rs.index))
	for identity := range rs.index {
		out = append(out, identity)
	}
	return out
}

// Connections returns live connections of identity, oldest first.
func (rs *Roster) Connections(identity model.Identity) []model.ConnID {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	ids := rs.index[identity]
	out := make([]model.ConnID, len(ids))
	copy(out, ids)
	return out
}

// All returns every registered connection.
func (rs *Roster) All() []model.ConnID {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	out := make([]model.ConnID, 0, len(rs.conns))
	for conn := range rs.conns {
		out = append(out, conn)
	}
	return out
}

func (rs *Roster) Identity(conn model.ConnID) (model.Identity, bool) {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	identity, ok := rs.conns[conn]
	return identity, ok
}

func (rs *Roster) IsOnline(identity model.Identity) bool {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	_, ok := rs.index[identity]
	return ok
}
