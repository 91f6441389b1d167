package session

import "github.com/samber/lo"

// Stats is a point-in-time size of the coordinator state.
type Stats struct {
	Connections int
	Rooms       int
}

// Coordinator is the room protocol state machine. It owns the connection
// registry and the membership index exclusively and never blocks or fails:
// every event maps to a (possibly empty) list of deliveries.
//
// A Coordinator is not safe for concurrent use. Callers feed it one event at
// a time, which is what keeps the registry and the index consistent.
type Coordinator struct {
	registry *Registry
	rooms    *Membership
}

// NewCoordinator creates a coordinator with empty state
func NewCoordinator() *Coordinator {
	return &Coordinator{registry: NewRegistry(), rooms: NewMembership()}
}

// Dispatch applies ev sent by from and returns what must be delivered.
func (c *Coordinator) Dispatch(from ConnectionID, ev Inbound) []Delivery {
	switch e := ev.(type) {
	case Join:
		return c.join(from, e)
	case ContentChange:
		return c.change(from, e)
	case Sync:
		return c.sync(e)
	case Leave:
		return c.leave(from, e)
	case Disconnect:
		return c.disconnect(from)
	}
	return nil
}

// Relay fans a change that arrived from another instance out to every local member.
func (c *Coordinator) Relay(roomID RoomID, content string) []Delivery {
	return lo.Map(c.rooms.Members(roomID), func(id ConnectionID, _ int) Delivery {
		return Delivery{To: id, Event: ContentChanged{Content: content}}
	})
}

// Snapshot lists the members of roomID with their display names, in join order.
func (c *Coordinator) Snapshot(roomID RoomID) []Member {
	return lo.FilterMap(c.rooms.Members(roomID), func(id ConnectionID, _ int) (Member, bool) {
		name, ok := c.registry.Lookup(id)
		return Member{ConnectionID: id, DisplayName: name}, ok
	})
}

// RoomsOf returns the rooms id currently belongs to
func (c *Coordinator) RoomsOf(id ConnectionID) []RoomID { return c.rooms.RoomsOf(id) }

// Lookup returns the registered display name of id
func (c *Coordinator) Lookup(id ConnectionID) (string, bool) { return c.registry.Lookup(id) }

// Stats reports how many connections and rooms are tracked
func (c *Coordinator) Stats() Stats {
	return Stats{Connections: c.registry.Len(), Rooms: c.rooms.Rooms()}
}

func (c *Coordinator) join(from ConnectionID, e Join) []Delivery {
	var out []Delivery

	// A connection sits in at most one room: leave any other room first.
	for _, prev := range c.rooms.RoomsOf(from) {
		if prev != e.RoomID {
			out = append(out, c.exit(from, prev)...)
		}
	}

	c.registry.Register(from, e.DisplayName)
	c.rooms.Join(e.RoomID, from)

	members := c.Snapshot(e.RoomID)
	for _, m := range members {
		out = append(out, Delivery{
			To: m.ConnectionID,
			Event: Joined{
				Members:            members,
				JoinedDisplayName:  e.DisplayName,
				JoinedConnectionID: from,
			},
		})
	}
	return out
}

func (c *Coordinator) change(from ConnectionID, e ContentChange) []Delivery {
	if !c.rooms.Has(e.RoomID, from) {
		return nil
	}
	peers := lo.Without(c.rooms.Members(e.RoomID), from)
	return lo.Map(peers, func(id ConnectionID, _ int) Delivery {
		return Delivery{To: id, Event: ContentChanged{Content: e.Content}}
	})
}

func (c *Coordinator) sync(e Sync) []Delivery {
	if _, ok := c.registry.Lookup(e.Target); !ok {
		return nil
	}
	return []Delivery{{To: e.Target, Event: ContentChanged{Content: e.Content}}}
}

func (c *Coordinator) leave(from ConnectionID, e Leave) []Delivery {
	if e.RoomID != "" {
		return c.exit(from, e.RoomID)
	}
	var out []Delivery
	for _, r := range c.rooms.RoomsOf(from) {
		out = append(out, c.exit(from, r)...)
	}
	return out
}

func (c *Coordinator) disconnect(from ConnectionID) []Delivery {
	var out []Delivery
	for _, r := range c.rooms.RoomsOf(from) {
		out = append(out, c.exit(from, r)...)
	}
	c.registry.Remove(from)
	return out
}

// exit notifies the other members of roomID that from is gone, then removes it.
func (c *Coordinator) exit(from ConnectionID, roomID RoomID) []Delivery {
	if !c.rooms.Has(roomID, from) {
		return nil
	}
	name, _ := c.registry.Lookup(from)
	peers := lo.Without(c.rooms.Members(roomID), from)
	out := lo.Map(peers, func(id ConnectionID, _ int) Delivery {
		return Delivery{To: id, Event: Disconnected{ConnectionID: from, DisplayName: name}}
	})
	c.rooms.Leave(roomID, from)
	return out
}
