package server

import (
	"errors"
	"time"

	"github.com/aeolun/roomrelay/pkg/protocol"
)

// Domain error texts sent back in Response(error=true) packets
const (
	msgWrongPassword = "Wrong password"
	msgUserNotFound  = "User doesn't exist"
	msgRoomMismatch  = "Room mismatch (You can't speak in a room you're not in; you're not a good enough ventriloquist."
	msgNotInRoom     = "You're not in a room (You shout into the void. There is no response.)"
)

// dispatch handles one packet in StateActive.
// A returned error means the session's own connection failed and the session must end.
func (s *Session) dispatch(p protocol.Packet) error {
	switch msg := p.(type) {
	case *protocol.JoinMessage:
		return s.handleJoin(msg)
	case *protocol.LeaveMessage:
		return s.handleLeave()
	case *protocol.ListRoomsMessage:
		return s.handleListRooms()
	case *protocol.ListUsersMessage:
		return s.handleListUsers()
	case *protocol.NickMessage:
		return s.handleNick(msg)
	case *protocol.PrivateMessage:
		return s.handlePrivateMessage(msg)
	case *protocol.RoomMessage:
		return s.handleRoomMessage(msg)
	default:
		// A repeated Hello is well-formed but has no meaning once active
		s.logger.Debug().Str("type", protocol.TypeName(p.Type())).Msg("ignoring packet")
		return nil
	}
}

// handleJoin handles JOIN: create or enter a room, checking its password
func (s *Session) handleJoin(msg *protocol.JoinMessage) error {
	if _, err := s.dir.GetOrCreateRoom(msg.Room, msg.Password); err != nil {
		if errors.Is(err, ErrWrongPassword) {
			return s.respondError(msgWrongPassword)
		}
		return err
	}

	room := msg.Room
	if err := s.dir.SetUserRoom(s.userID, &room); err != nil {
		return err
	}

	s.logger.Debug().Str("room", room).Msg("joined room")
	return s.respondOK()
}

// handleLeave handles LEAVE. Leaving while not in a room ends the session.
func (s *Session) handleLeave() error {
	me, err := s.me()
	if err != nil {
		return err
	}

	if me.Room == nil {
		if err := s.respondOK(); err != nil {
			return err
		}
		s.setState(StateTerminated)
		return nil
	}

	if err := s.dir.SetUserRoom(s.userID, nil); err != nil {
		return err
	}

	s.logger.Debug().Str("room", *me.Room).Msg("left room")
	return s.respondOK()
}

// handleListRooms handles LIST_ROOMS
func (s *Session) handleListRooms() error {
	return s.respondList(s.dir.ListRoomNames())
}

// handleListUsers handles LIST_USERS, scoped to the caller's current room if it has one
func (s *Session) handleListUsers() error {
	me, err := s.me()
	if err != nil {
		return err
	}

	filter := AllUsers()
	if me.Room != nil {
		filter = InRoom(*me.Room)
	}
	return s.respondList(s.dir.ListUsers(filter))
}

// handleNick handles NICK. Names are not required to be unique.
func (s *Session) handleNick(msg *protocol.NickMessage) error {
	if err := s.dir.RenameUser(s.userID, msg.Name); err != nil {
		return err
	}

	s.logger.Debug().Str("name", msg.Name).Msg("renamed")
	return s.respondOK()
}

// handlePrivateMessage handles PRIVATE_MESSAGE: deliver to every user with the target name
func (s *Session) handlePrivateMessage(msg *protocol.PrivateMessage) error {
	me, err := s.me()
	if err != nil {
		return err
	}

	targets := s.dir.FindUsersByName(msg.Target)
	if len(targets) == 0 {
		return s.respondError(msgUserNotFound)
	}

	delivery := &protocol.PrivateDelivery{Sender: me.Name, Body: msg.Body}
	start := time.Now()
	delivered := 0
	for _, target := range targets {
		if s.deliver(target, delivery) {
			delivered++
		}
	}
	s.metrics.RecordBroadcast("private", delivered, time.Since(start))

	return s.respondOK()
}

// handleRoomMessage handles MESSAGE: the caller is answered first, then the room is broadcast to
func (s *Session) handleRoomMessage(msg *protocol.RoomMessage) error {
	me, err := s.me()
	if err != nil {
		return err
	}

	if !me.InRoom(msg.Room) {
		return s.respondError(msgRoomMismatch)
	}
	if *me.Room == "" {
		return s.respondError(msgNotInRoom)
	}

	if err := s.respondOK(); err != nil {
		return err
	}

	delivery := &protocol.RoomDelivery{Room: msg.Room, Sender: me.Name, Body: msg.Body}
	start := time.Now()
	delivered := 0
	s.dir.ForEachUserInRoom(msg.Room, s.userID, func(member UserInfo) {
		if s.deliver(member, delivery) {
			delivered++
		}
	})
	s.metrics.RecordBroadcast("room", delivered, time.Since(start))

	return nil
}

// deliver sends a packet to another user's connection.
// A failure there belongs to the recipient's session, so it is only logged.
func (s *Session) deliver(to UserInfo, p protocol.Packet) bool {
	if err := to.Conn.Send(p); err != nil {
		s.logger.Debug().Err(err).Uint64("to_user_id", to.ID).Msg("delivery failed")
		return false
	}
	s.metrics.RecordPacketSent(protocol.TypeName(p.Type()))
	return true
}

// me returns the caller's current directory record
func (s *Session) me() (UserInfo, error) {
	me, ok := s.dir.User(s.userID)
	if !ok {
		return UserInfo{}, ErrUnknownUser
	}
	return me, nil
}

func (s *Session) respondOK() error {
	return s.send(protocol.NewTextResponse(false, ""))
}

func (s *Session) respondError(text string) error {
	return s.send(protocol.NewTextResponse(true, text))
}

func (s *Session) respondList(items []string) error {
	resp, err := protocol.NewListResponse(items)
	if err != nil {
		return err
	}
	return s.send(resp)
}
