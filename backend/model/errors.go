package model

import "errors"

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room is not found")
	ErrNotAMember   = errors.New("connection is not a member of this room")
	ErrSameMember   = errors.New("room members must be distinct")
)
