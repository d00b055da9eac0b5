// Package client keeps the participant-side view of a collaboration
// session: the local buffer, room membership and the help request cooldown.
package client

import (
	"errors"
	"sync"
	"time"

	"github.com/adwski/liveide-collab/backend/model"
	"github.com/rs/zerolog"
)

const defaultCooldown = 15 * time.Second

var (
	ErrCooldown       = errors.New("help request cooldown is active")
	ErrInRoom         = errors.New("already in a room")
	ErrNotInRoom      = errors.New("not in a room")
	ErrNoPending      = errors.New("no pending help request")
	ErrInvalidTarget  = errors.New("invalid help request target")
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrDecode         = errors.New("unable to decode payload")
	ErrNotInitialized = errors.New("sender is not set")
)

type (
	// Sender delivers client events to the server.
	Sender interface {
		Send(ev model.Event) error
	}

	// Observer is called after a server event has been applied.
	Observer func(typ string, payload any)

	State struct {
		Code         string
		OriginalCode string
		InRoom       bool
		RoomID       string
		Pending      *model.AskHelp
		Users        []model.User
	}

	Config struct {
		Logger   *zerolog.Logger
		Identity model.Identity
		Code     string
		Sender   Sender
		Observer Observer
		Cooldown time.Duration
		Now      func() time.Time
	}

	Handler struct {
		logger   zerolog.Logger
		identity model.Identity
		sender   Sender
		observer Observer
		cooldown time.Duration
		now      func() time.Time

		mx      *sync.Mutex
		state   State
		nextAsk time.Time
	}
)

func NewHandler(cfg Config) *Handler {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Handler{
		logger:   logger.With().Str("component", "client").Str("identity", cfg.Identity).Logger(),
		identity: cfg.Identity,
		sender:   cfg.Sender,
		observer: cfg.Observer,
		cooldown: cooldown,
		now:      now,
		mx:       &sync.Mutex{},
		state:    State{Code: cfg.Code, OriginalCode: cfg.Code},
	}
}

func (h *Handler) setSender(s Sender) {
	h.mx.Lock()
	h.sender = s
	h.mx.Unlock()
}

// State returns a copy of the local view.
func (h *Handler) State() State {
	h.mx.Lock()
	defer h.mx.Unlock()
	st := h.state
	st.Users = append([]model.User(nil), h.state.Users...)
	if h.state.Pending != nil {
		req := *h.state.Pending
		st.Pending = &req
	}
	return st
}

// CooldownLeft is how long AskHelp stays refused.
func (h *Handler) CooldownLeft() time.Duration {
	h.mx.Lock()
	defer h.mx.Unlock()
	if left := h.nextAsk.Sub(h.now()); left > 0 {
		return left
	}
	return 0
}

// Edit applies a locally typed change. Inside a room it is sent to the peer.
func (h *Handler) Edit(code string) error {
	h.mx.Lock()
	h.state.Code = code
	if !h.state.InRoom {
		h.mx.Unlock()
		return nil
	}
	ev := model.Event{Type: model.EventUpdateCode, Payload: model.UpdateCode{RoomID: h.state.RoomID, Code: code}}
	h.mx.Unlock()
	return h.send(ev)
}

// AskHelp sends the current buffer to teacher and starts the cooldown.
func (h *Handler) AskHelp(teacher model.Identity) error {
	h.mx.Lock()
	switch {
	case teacher == "" || teacher == h.identity:
		h.mx.Unlock()
		return ErrInvalidTarget
	case h.state.InRoom:
		h.mx.Unlock()
		return ErrInRoom
	case h.now().Before(h.nextAsk):
		h.mx.Unlock()
		return ErrCooldown
	}
	prev := h.nextAsk
	h.nextAsk = h.now().Add(h.cooldown)
	deadline := h.nextAsk
	ev := model.Event{Type: model.EventAskHelp, Payload: model.AskHelp{
		Student:     h.identity,
		Teacher:     teacher,
		StudentCode: h.state.Code,
	}}
	h.mx.Unlock()

	if err := h.send(ev); err != nil {
		h.mx.Lock()
		if h.nextAsk.Equal(deadline) {
			h.nextAsk = prev
		}
		h.mx.Unlock()
		return err
	}
	return nil
}

// Respond answers the pending help request with the local buffer.
// Accepting is refused while in a room, declining is always possible.
func (h *Handler) Respond(accepted bool) error {
	h.mx.Lock()
	req := h.state.Pending
	switch {
	case req == nil:
		h.mx.Unlock()
		return ErrNoPending
	case accepted && h.state.InRoom:
		h.mx.Unlock()
		return ErrInRoom
	}
	h.state.Pending = nil
	ev := model.Event{Type: model.EventHelpResponse, Payload: model.HelpResponse{
		Student:     req.Student,
		Teacher:     h.identity,
		Accepted:    accepted,
		TeacherCode: h.state.Code,
	}}
	h.mx.Unlock()
	return h.send(ev)
}

// Leave ends the room and restores the buffer from before the session.
func (h *Handler) Leave() error {
	h.mx.Lock()
	if !h.state.InRoom {
		h.mx.Unlock()
		return ErrNotInRoom
	}
	ev := model.Event{Type: model.EventLeaveRoom, Payload: model.LeaveRoom{RoomID: h.state.RoomID}}
	h.exitRoom()
	h.mx.Unlock()
	return h.send(ev)
}

// RequestUsers asks the server for a roster snapshot.
func (h *Handler) RequestUsers() error {
	return h.send(model.Event{Type: model.EventGetUsers})
}

// Handle applies one server event. Pushed code is applied without being
// sent back.
func (h *Handler) Handle(env model.Envelope) error {
	payload, err := h.apply(env)
	if err != nil {
		return err
	}
	if h.observer != nil {
		h.observer(env.Type, payload)
	}
	return nil
}

func (h *Handler) apply(env model.Envelope) (any, error) {
	h.mx.Lock()
	defer h.mx.Unlock()

	switch env.Type {
	case model.EventUserList:
		var users []model.User
		if err := env.Decode(&users); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		h.state.Users = users
		return users, nil

	case model.EventUserConnected, model.EventUserDisconnected:
		var user model.User
		if err := env.Decode(&user); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		user.Online = env.Type == model.EventUserConnected
		h.upsertUser(user)
		return user, nil

	case model.EventHelpRequest:
		var req model.AskHelp
		if err := env.Decode(&req); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		h.state.Pending = &req
		return req, nil

	case model.EventHelpResponseReceived:
		var resp model.HelpResponseReceived
		if err := env.Decode(&resp); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		return resp, nil

	case model.EventJoinRoom:
		var join model.JoinRoom
		if err := env.Decode(&join); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		if !h.state.InRoom {
			h.state.OriginalCode = h.state.Code
		}
		h.state.InRoom = true
		h.state.RoomID = join.RoomID
		h.state.Code = join.Code
		return join, nil

	case model.EventCodeUpdated:
		var upd model.CodeUpdated
		if err := env.Decode(&upd); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		if !h.state.InRoom {
			h.logger.Debug().Msg("code update outside of room ignored")
			return upd, nil
		}
		h.state.Code = upd.Code
		return upd, nil

	case model.EventUserLeftRoom:
		var left model.UserLeftRoom
		if err := env.Decode(&left); err != nil {
			return nil, errors.Join(ErrDecode, err)
		}
		h.exitRoom()
		return left, nil
	}
	return nil, ErrUnknownEvent
}

func (h *Handler) exitRoom() {
	h.state.InRoom = false
	h.state.RoomID = ""
	h.state.Code = h.state.OriginalCode
}

func (h *Handler) upsertUser(user model.User) {
	for i, u := range h.state.Users {
		if u.Name == user.Name {
			if user.ID == "" {
				user.ID = u.ID
			}
			h.state.Users[i] = user
			return
		}
	}
	h.state.Users = append(h.state.Users, user)
}

// send must be called without h.mx held.
func (h *Handler) send(ev model.Event) error {
	h.mx.Lock()
	sender := h.sender
	h.mx.Unlock()
	if sender == nil {
		return ErrNotInitialized
	}
	return sender.Send(ev)
}
