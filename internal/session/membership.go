package session

import (
	"slices"
	"sort"
)

// RoomID is the caller-supplied name of a collaboration room.
type RoomID string

// room keeps members in join order; set gives O(1) membership checks.
type room struct {
	order []ConnectionID
	set   map[ConnectionID]struct{}
}

// Membership indexes which connections sit in which rooms.
// A room exists only while it has members: absence of a key is "no such room".
type Membership struct {
	rooms  map[RoomID]*room
	byConn map[ConnectionID]map[RoomID]struct{} // reverse index for RoomsOf
}

// NewMembership creates an empty index
func NewMembership() *Membership {
	return &Membership{
		rooms:  map[RoomID]*room{},
		byConn: map[ConnectionID]map[RoomID]struct{}{},
	}
}

// Join adds id to roomID, creating the room on first use.
// Joining a room twice leaves the member set unchanged.
func (m *Membership) Join(roomID RoomID, id ConnectionID) {
	rm := m.rooms[roomID]
	if rm == nil {
		rm = &room{set: map[ConnectionID]struct{}{}}
		m.rooms[roomID] = rm
	}
	if _, ok := rm.set[id]; ok {
		return
	}
	rm.set[id] = struct{}{}
	rm.order = append(rm.order, id)

	rooms := m.byConn[id]
	if rooms == nil {
		rooms = map[RoomID]struct{}{}
		m.byConn[id] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Leave removes id from roomID and drops the room once it is empty
func (m *Membership) Leave(roomID RoomID, id ConnectionID) {
	rm := m.rooms[roomID]
	if rm == nil {
		return
	}
	if _, ok := rm.set[id]; !ok {
		return
	}
	delete(rm.set, id)
	if i := slices.Index(rm.order, id); i >= 0 {
		rm.order = slices.Delete(rm.order, i, i+1)
	}
	if len(rm.set) == 0 {
		delete(m.rooms, roomID)
	}

	if rooms := m.byConn[id]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.byConn, id)
		}
	}
}

// Members returns the members of roomID in join order.
// An unknown room yields an empty slice.
func (m *Membership) Members(roomID RoomID) []ConnectionID {
	rm := m.rooms[roomID]
	if rm == nil {
		return []ConnectionID{}
	}
	return slices.Clone(rm.order)
}

// Has reports whether id is currently a member of roomID
func (m *Membership) Has(roomID RoomID, id ConnectionID) bool {
	rm := m.rooms[roomID]
	if rm == nil {
		return false
	}
	_, ok := rm.set[id]
	return ok
}

// RoomsOf returns every room id is a member of, sorted by name
func (m *Membership) RoomsOf(id ConnectionID) []RoomID {
	rooms := m.byConn[id]
	out := make([]RoomID, 0, len(rooms))
	for r := range rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rooms returns the number of live rooms
func (m *Membership) Rooms() int { return len(m.rooms) }
