package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adwski/liveide-collab/backend/metrics"
	"github.com/adwski/liveide-collab/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultDirectoryTimeout = 3 * time.Second
)

var (
	ErrDecode       = errors.New("unable to decode payload")
	ErrUnknownEvent = errors.New("unknown event type")
)

type (
	Roster interface {
		Register(conn model.ConnID, identity model.Identity) bool
		Unregister(conn model.ConnID) (model.Identity, bool, bool)
		ListOnline() []model.Identity
		Connections(identity model.Identity) []model.ConnID
		All() []model.ConnID
		Identity(conn model.ConnID) (model.Identity, bool)
	}

	RoomStore interface {
		Create(a, b model.Member, code string) (model.Room, error)
		UpdateCode(roomID string, from model.ConnID, code string) (model.Member, error)
		Close(roomID string, conn model.ConnID) (model.Room, error)
		CloseAll(conn model.ConnID) []model.Room
		Len() int
	}

	Switch interface {
		Connect(conn model.ConnID, wire model.Wire)
		Disconnect(conn model.ConnID)
		Send(conn model.ConnID, ev model.Event) bool
		SendMany(conns []model.ConnID, skip model.ConnID, ev model.Event) int
	}

	// Directory is the external account store.
	Directory interface {
		Ensure(ctx context.Context, name string) (model.User, error)
		List(ctx context.Context) ([]model.User, error)
	}

	Limiter interface {
		Allow(ctx context.Context, key string) (bool, error)
	}

	Service struct {
		roster    Roster
		rooms     RoomStore
		sw        Switch
		directory Directory
		limiter   Limiter
		metrics   *metrics.Metrics
		logger    zerolog.Logger

		dirTimeout time.Duration

		// presenceMx orders roster transitions with their broadcasts and
		// guards users, the directory records of online identities.
		presenceMx *sync.Mutex
		users      map[model.Identity]model.User
	}

	Config struct {
		Roster           Roster
		RoomStore        RoomStore
		Switch           Switch
		Directory        Directory
		Limiter          Limiter
		Metrics          *metrics.Metrics
		Logger           *zerolog.Logger
		DirectoryTimeout time.Duration
	}
)

func NewService(cfg Config) *Service {
	timeout := cfg.DirectoryTimeout
	if timeout <= 0 {
		timeout = defaultDirectoryTimeout
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	return &Service{
		roster:     cfg.Roster,
		rooms:      cfg.RoomStore,
		sw:         cfg.Switch,
		directory:  cfg.Directory,
		limiter:    cfg.Limiter,
		metrics:    m,
		logger:     cfg.Logger.With().Str("component", "service").Logger(),
		dirTimeout: timeout,
		presenceMx: &sync.Mutex{},
		users:      make(map[model.Identity]model.User),
	}
}

// Handle dispatches one inbound event of conn. Events of a connection
// must be handled sequentially.
func (svc *Service) Handle(ctx context.Context, conn model.ConnID, env model.Envelope) error {
	var err error
	switch env.Type {
	case model.EventGetUsers:
		svc.GetUsers(ctx, conn)

	case model.EventAskHelp:
		var req model.AskHelp
		if err = env.Decode(&req); err == nil {
			svc.AskHelp(ctx, conn, req)
		}

	case model.EventHelpResponse:
		var resp model.HelpResponse
		if err = env.Decode(&resp); err == nil {
			svc.RespondHelp(ctx, conn, resp)
		}

	case model.EventUpdateCode:
		var upd model.UpdateCode
		if err = env.Decode(&upd); err == nil {
			svc.UpdateCode(conn, upd)
		}

	case model.EventLeaveRoom:
		var leave model.LeaveRoom
		if err = env.Decode(&leave); err == nil {
			svc.LeaveRoom(conn, leave)
		}

	default:
		svc.metrics.InboundEvents.WithLabelValues("unknown").Inc()
		return ErrUnknownEvent
	}
	svc.metrics.InboundEvents.WithLabelValues(env.Type).Inc()
	if err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

func (svc *Service) send(conn model.ConnID, typ string, payload any) {
	svc.sw.Send(conn, model.Event{Type: typ, Payload: payload})
}

func (svc *Service) sendMany(conns []model.ConnID, skip model.ConnID, typ string, payload any) int {
	return svc.sw.SendMany(conns, skip, model.Event{Type: typ, Payload: payload})
}

func (svc *Service) identity(conn model.ConnID) (model.Identity, bool) {
	identity, ok := svc.roster.Identity(conn)
	return identity, ok && identity != ""
}
