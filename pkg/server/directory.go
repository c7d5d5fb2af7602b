package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrWrongPassword is returned when joining an existing room with a different password
	ErrWrongPassword = errors.New("wrong password")
	// ErrUnknownUser is returned when the user id is not registered
	ErrUnknownUser = errors.New("user not registered")
)

// Room is a named broadcast group. Its password is fixed by whoever created it.
type Room struct {
	Name     string
	Password *string // nil means the room has no password
}

// UserInfo is a point-in-time copy of one user record
type UserInfo struct {
	ID   uint64
	Name string
	Room *string // nil when the user is not in a room
	Conn PacketSender
}

// InRoom reports whether the user is currently in the named room
func (u UserInfo) InRoom(name string) bool {
	return u.Room != nil && *u.Room == name
}

type user struct {
	id   uint64
	name string
	room *string
	conn PacketSender
}

func (u *user) info() UserInfo {
	return UserInfo{ID: u.id, Name: u.name, Room: u.room, Conn: u.conn}
}

// UserFilter selects which users ListUsers returns
type UserFilter struct {
	room *string
}

// AllUsers matches every connected user
func AllUsers() UserFilter {
	return UserFilter{}
}

// InRoom matches the current members of one room
func InRoom(name string) UserFilter {
	return UserFilter{room: &name}
}

func (f UserFilter) matches(u *user) bool {
	if f.room == nil {
		return true
	}
	return u.room != nil && *u.room == *f.room
}

// Directory is the registry of connected users and open rooms shared by all sessions.
// One mutex guards both maps so multi-step checks (room check-then-create) are atomic.
type Directory struct {
	mu     sync.Mutex
	users  map[uint64]*user
	rooms  map[string]*Room
	nextID atomic.Uint64
}

// NewDirectory creates an empty directory. The first user id is 0.
func NewDirectory() *Directory {
	return &Directory{
		users: make(map[uint64]*user),
		rooms: make(map[string]*Room),
	}
}

// RegisterUser allocates a fresh id and adds a roomless user named rand<id>
func (d *Directory) RegisterUser(conn PacketSender) (uint64, string) {
	id := d.nextID.Add(1) - 1
	name := fmt.Sprintf("rand%d", id)

	d.mu.Lock()
	d.users[id] = &user{id: id, name: name, conn: conn}
	d.mu.Unlock()

	return id, name
}

// RemoveUser deletes a user record. It reports whether this call removed it.
func (d *Directory) RemoveUser(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[id]; !ok {
		return false
	}
	delete(d.users, id)
	return true
}

// GetOrCreateRoom returns the named room, creating it with password if it does not exist.
// An existing room is returned only when password matches the one it was created with.
func (d *Directory) GetOrCreateRoom(name string, password *string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[name]
	if !ok {
		room = &Room{Name: name, Password: copyString(password)}
		d.rooms[name] = room
		return *room, nil
	}

	if !passwordsMatch(room.Password, password) {
		return Room{}, ErrWrongPassword
	}
	return *room, nil
}

// SetUserRoom moves a user into a room, or out of any room when room is nil
func (d *Directory) SetUserRoom(id uint64, room *string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return ErrUnknownUser
	}
	u.room = copyString(room)
	return nil
}

// RenameUser changes a user's display name
func (d *Directory) RenameUser(id uint64, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return ErrUnknownUser
	}
	u.name = name
	return nil
}

// User returns a copy of one user record
func (d *Directory) User(id uint64) (UserInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return UserInfo{}, false
	}
	return u.info(), true
}

// ListRoomNames returns the names of every room ever created, sorted
func (d *Directory) ListRoomNames() []string {
	d.mu.Lock()
	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	d.mu.Unlock()

	sort.Strings(names)
	return names
}

// ListUsers returns the display names of users matching filter, in id order
func (d *Directory) ListUsers(filter UserFilter) []string {
	users := d.snapshot(filter.matches)

	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return names
}

// FindUsersByName returns every user currently using a display name, ordered by id.
// The snapshots carry each user's connection, taken under the same lock.
func (d *Directory) FindUsersByName(name string) []UserInfo {
	return d.snapshot(func(u *user) bool { return u.name == name })
}

// ForEachUserInRoom calls fn for every member of room except excludeID and returns how many.
// Members are copied under the lock and fn runs after it is released, so fn may block.
func (d *Directory) ForEachUserInRoom(room string, excludeID uint64, fn func(UserInfo)) int {
	members := d.snapshot(func(u *user) bool {
		return u.id != excludeID && u.room != nil && *u.room == room
	})

	for _, u := range members {
		fn(u)
	}
	return len(members)
}

// Stats returns the number of connected users and of rooms
func (d *Directory) Stats() (users, rooms int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.users), len(d.rooms)
}

// snapshot copies matching users under the lock, ordered by id
func (d *Directory) snapshot(match func(*user) bool) []UserInfo {
	d.mu.Lock()
	users := make([]UserInfo, 0, len(d.users))
	for _, u := range d.users {
		if match(u) {
			users = append(users, u.info())
		}
	}
	d.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func passwordsMatch(want, got *string) bool {
	if want == nil || got == nil {
		return want == nil && got == nil
	}
	return *want == *got
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
