package service

import (
	"errors"

	"github.com/adwski/liveide-collab/backend/model"
)

func (svc *Service) createRoom(student, teacher model.Member, code string) (model.Room, error) {
	room, err := svc.rooms.Create(student, teacher, code)
	if err != nil {
		return model.Room{}, err
	}
	svc.metrics.ActiveRooms.Set(float64(svc.rooms.Len()))
	svc.logger.Debug().
		Str("roomID", room.ID).
		Str("student", student.Identity).
		Str("teacher", teacher.Identity).
		Msg("room opened")
	return room, nil
}

func (svc *Service) announceRoom(room model.Room) {
	join := model.JoinRoom{RoomID: room.ID, Code: room.Code}
	for _, m := range room.Members {
		svc.send(m.Conn, model.EventJoinRoom, join)
	}
}

// UpdateCode overwrites the room buffer and forwards the code to the other
// member. Updates for unknown rooms or from non-members are ignored.
func (svc *Service) UpdateCode(conn model.ConnID, upd model.UpdateCode) {
	peer, err := svc.rooms.UpdateCode(upd.RoomID, conn, upd.Code)
	if err != nil {
		svc.logStale(err, upd.RoomID, conn, "code update ignored")
		return
	}
	svc.metrics.CodeUpdates.Inc()
	svc.send(peer.Conn, model.EventCodeUpdated, model.CodeUpdated{Code: upd.Code})
}

// LeaveRoom closes the room for both members and tells the other one.
func (svc *Service) LeaveRoom(conn model.ConnID, leave model.LeaveRoom) {
	room, err := svc.rooms.Close(leave.RoomID, conn)
	if err != nil {
		svc.logStale(err, leave.RoomID, conn, "leave ignored")
		return
	}
	svc.notifyLeft(room, conn)
}

func (svc *Service) notifyLeft(room model.Room, leaving model.ConnID) {
	svc.metrics.ActiveRooms.Set(float64(svc.rooms.Len()))
	peer, ok := room.Peer(leaving)
	if !ok {
		return
	}
	self, _ := room.Peer(peer.Conn)
	svc.send(peer.Conn, model.EventUserLeftRoom, model.UserLeftRoom{Identity: self.Identity})
	svc.logger.Debug().
		Str("roomID", room.ID).
		Str("identity", self.Identity).
		Msg("room closed")
}

func (svc *Service) logStale(err error, roomID string, conn model.ConnID, msg string) {
	ev := svc.logger.Debug()
	if !errors.Is(err, model.ErrRoomNotFound) && !errors.Is(err, model.ErrNotAMember) {
		ev = svc.logger.Error()
	}
	ev.Err(err).Str("roomID", roomID).Str("conn", conn).Msg(msg)
}
