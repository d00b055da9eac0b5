package service

import (
	"context"
	"sort"

	"github.com/adwski/liveide-collab/backend/model"
)

// Connect attaches a new transport session. Anonymous sessions get a wire
// but never enter the roster.
func (svc *Service) Connect(ctx context.Context, conn model.ConnID, identity model.Identity, wire model.Wire) {
	svc.sw.Connect(conn, wire)
	if identity == "" {
		svc.logger.Debug().Str("conn", conn).Msg("anonymous connection")
		return
	}

	// Persistence must not block presence: on failure the identity stays
	// online for the session without a directory record.
	user := svc.ensureUser(ctx, identity)

	// Transitions are broadcast under presenceMx so peers see them in roster order.
	svc.presenceMx.Lock()
	defer svc.presenceMx.Unlock()

	svc.users[identity] = user
	first := svc.roster.Register(conn, identity)
	svc.metrics.OnlineUsers.Set(float64(len(svc.roster.ListOnline())))

	svc.logger.Debug().
		Str("conn", conn).
		Str("identity", identity).
		Bool("first", first).
		Msg("user connected")

	if first {
		user.Online = true
		svc.sendMany(svc.roster.All(), conn, model.EventUserConnected, user)
	}
}

// Disconnect tears down rooms of conn and removes it from the roster.
// Calling it again for the same conn is a no-op.
func (svc *Service) Disconnect(conn model.ConnID) {
	for _, room := range svc.rooms.CloseAll(conn) {
		svc.notifyLeft(room, conn)
	}
	defer svc.sw.Disconnect(conn)

	svc.presenceMx.Lock()
	defer svc.presenceMx.Unlock()

	identity, last, ok := svc.roster.Unregister(conn)
	if !ok {
		return
	}
	svc.metrics.OnlineUsers.Set(float64(len(svc.roster.ListOnline())))

	svc.logger.Debug().
		Str("conn", conn).
		Str("identity", identity).
		Bool("last", last).
		Msg("user disconnected")

	if !last {
		return
	}
	user, known := svc.users[identity]
	delete(svc.users, identity)
	if !known {
		user = model.User{ID: identity, Name: identity}
	}
	user.Online = false
	svc.sendMany(svc.roster.All(), conn, model.EventUserDisconnected, user)
}

// GetUsers pushes the full roster to conn.
func (svc *Service) GetUsers(ctx context.Context, conn model.ConnID) {
	svc.send(conn, model.EventUserList, svc.Users(ctx))
}

// Users returns directory users merged with the live roster.
func (svc *Service) Users(ctx context.Context) []model.User {
	var known []model.User
	if svc.directory != nil {
		dctx, cancel := context.WithTimeout(ctx, svc.dirTimeout)
		defer cancel()
		var err error
		if known, err = svc.directory.List(dctx); err != nil {
			svc.logger.Error().Err(err).Msg("failed to list directory users")
		}
	}
	return MergeRoster(svc.roster.ListOnline(), known)
}

// Online returns live identities sorted by name.
func (svc *Service) Online() []model.Identity {
	online := svc.roster.ListOnline()
	sort.Strings(online)
	return online
}

func (svc *Service) ensureUser(ctx context.Context, identity model.Identity) model.User {
	fallback := model.User{ID: identity, Name: identity}
	if svc.directory == nil {
		return fallback
	}
	dctx, cancel := context.WithTimeout(ctx, svc.dirTimeout)
	defer cancel()
	user, err := svc.directory.Ensure(dctx, identity)
	if err != nil {
		svc.logger.Error().Err(err).Str("identity", identity).Msg("failed to persist identity")
		return fallback
	}
	return user
}

// MergeRoster joins directory users with live identities. Users are
// deduplicated by name, online is derived from live, and the result is
// sorted by name.
func MergeRoster(live []model.Identity, known []model.User) []model.User {
	online := make(map[model.Identity]struct{}, len(live))
	for _, identity := range live {
		online[identity] = struct{}{}
	}

	seen := make(map[string]struct{}, len(known)+len(live))
	out := make([]model.User, 0, len(known)+len(live))
	for _, u := range known {
		if _, dup := seen[u.Name]; dup || u.Name == "" {
			continue
		}
		seen[u.Name] = struct{}{}
		_, u.Online = online[u.Name]
		out = append(out, u)
	}
	for _, identity := range live {
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}
		out = append(out, model.User{ID: identity, Name: identity, Online: true})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
