package model

import (
	"encoding/json"
	"net/url"
)

type (
	// Identity is the display handle a participant connects with.
	Identity = string

	// ConnID is assigned by the transport on handshake.
	ConnID = string
)

// Client to server events.
const (
	EventGetUsers     = "getUsers"
	EventAskHelp      = "askHelp"
	EventHelpResponse = "helpResponse"
	EventUpdateCode   = "updateCode"
	EventLeaveRoom    = "leaveRoom"
)

// Server to client events.
const (
	EventUserList             = "userList"
	EventUserConnected        = "userConnected"
	EventUserDisconnected     = "userDisconnected"
	EventHelpRequest          = "helpRequest"
	EventHelpResponseReceived = "helpResponseReceived"
	EventJoinRoom             = "joinRoom"
	EventCodeUpdated          = "codeUpdated"
	EventUserLeftRoom         = "userLeftRoom"
)

// Event is an outgoing message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope is an incoming message with the payload left undecoded
// until the type is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals payload into v. Empty payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// User is a roster record.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Online    bool   `json:"online"`
}

type AskHelp struct {
	Student     Identity `json:"student"`
	Teacher     Identity `json:"teacher"`
	StudentCode string   `json:"studentCode"`
}

type HelpResponse struct {
	Student     Identity `json:"student"`
	Teacher     Identity `json:"teacher"`
	Accepted    bool     `json:"accepted"`
	TeacherCode string   `json:"teacherCode"`
}

type HelpResponseReceived struct {
	Teacher     Identity `json:"teacher"`
	Accepted    bool     `json:"accepted"`
	TeacherCode string   `json:"teacherCode"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type UpdateCode struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type CodeUpdated struct {
	Code string `json:"code"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type UserLeftRoom struct {
	Identity Identity `json:"identity"`
}

// Member is one side of a room.
type Member struct {
	Identity Identity `json:"identity"`
	Conn     ConnID   `json:"-"`
}

// Room is a snapshot of a collaboration room.
type Room struct {
	ID      string    `json:"roomId"`
	Members [2]Member `json:"members"`
	Code    string    `json:"code"`
}

// Peer returns the member on the other side of conn.
func (r *Room) Peer(conn ConnID) (Member, bool) {
	switch conn {
	case r.Members[0].Conn:
		return r.Members[1], true
	case r.Members[1].Conn:
		return r.Members[0], true
	}
	return Member{}, false
}

// RoomID derives the room id from an unordered pair of identities,
// so both sides can compute it without a round trip.
func RoomID(a, b Identity) string {
	a, b = url.QueryEscape(a), url.QueryEscape(b)
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Wire is the outbound side of a connection.
type Wire struct {
	TX chan Event
}

func NewWire(size int) Wire {
	return Wire{
		TX: make(chan Event, size),
	}
}
