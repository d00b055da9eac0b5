package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/adwski/liveide-collab/backend/model"
)

// Directory is an in-process account directory used when no
// document store is configured.
type Directory struct {
	mx    *sync.Mutex
	users map[string]model.User
}

func NewDirectory(users ...model.User) *Directory {
	d := &Directory{
		mx:    &sync.Mutex{},
		users: make(map[string]model.User, len(users)),
	}
	for _, u := range users {
		if u.ID == "" {
			u.ID = u.Name
		}
		u.Online = false
		d.users[u.Name] = u
	}
	return d
}

// Ensure returns the user with the given name, creating it if absent.
func (d *Directory) Ensure(_ context.Context, name string) (model.User, error) {
	d.mx.Lock()
	defer d.mx.Unlock()

	u, ok := d.users[name]
	if !ok {
		u = model.User{ID: name, Name: name}
		d.users[name] = u
	}
	return u, nil
}

func (d *Directory) List(_ context.Context) ([]model.User, error) {
	d.mx.Lock()
	defer d.mx.Unlock()

	out := make([]model.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
