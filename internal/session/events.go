package session

// Inbound is an event received from a connection.
// The set of implementations is closed: Join, ContentChange, Sync, Leave, Disconnect.
type Inbound interface{ inbound() }

// Join asks to enter RoomID under DisplayName.
type Join struct {
	RoomID      RoomID
	DisplayName string
}

// ContentChange carries the sender's full document text for RoomID.
type ContentChange struct {
	RoomID  RoomID
	Content string
}

// Sync pushes Content to a single connection, typically a fresh joiner.
type Sync struct {
	Target  ConnectionID
	Content string
}

// Leave exits RoomID while keeping the link open. An empty RoomID leaves every room.
type Leave struct {
	RoomID RoomID
}

// Disconnect is synthesized by the transport when the link closes.
type Disconnect struct{}

func (Join) inbound()          {}
func (ContentChange) inbound() {}
func (Sync) inbound()          {}
func (Leave) inbound()         {}
func (Disconnect) inbound()    {}

// Outbound is a notification addressed to one connection.
type Outbound interface{ outbound() }

// Member is one entry of a membership snapshot.
type Member struct {
	ConnectionID ConnectionID
	DisplayName  string
}

// Joined tells a room member who just joined and who is in the room now.
type Joined struct {
	Members            []Member
	JoinedDisplayName  string
	JoinedConnectionID ConnectionID
}

// ContentChanged carries replacement document text.
type ContentChanged struct {
	Content string
}

// Disconnected tells a room member that a peer went away.
type Disconnected struct {
	ConnectionID ConnectionID
	DisplayName  string
}

func (Joined) outbound()         {}
func (ContentChanged) outbound() {}
func (Disconnected) outbound()   {}

// Delivery pairs an outbound notification with its recipient.
type Delivery struct {
	To    ConnectionID
	Event Outbound
}
