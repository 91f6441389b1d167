package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"realtime-collab/internal/session"
)

// Wire actions. Inbound: join, code-change, sync-code, leave.
const (
	ActionConnected    = "connected"
	ActionJoin         = "join"
	ActionJoined       = "joined"
	ActionCodeChange   = "code-change"
	ActionSyncCode     = "sync-code"
	ActionLeave        = "leave"
	ActionDisconnected = "disconnected"
	ActionError        = "error"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

var validate = validator.New()

// Frame is the envelope of every websocket message
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type joinIn struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName"`
}

type codeChangeIn struct {
	RoomID  string  `json:"roomId" validate:"required"`
	Content *string `json:"content" validate:"required"`
}

type syncIn struct {
	TargetConnectionID string  `json:"targetConnectionId" validate:"required"`
	Content            *string `json:"content" validate:"required"`
}

type leaveIn struct {
	RoomID string `json:"roomId"`
}

type memberOut struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type joinedOut struct {
	Members            []memberOut `json:"members"`
	JoinedDisplayName  string      `json:"joinedDisplayName"`
	JoinedConnectionID string      `json:"joinedConnectionId"`
}

type contentOut struct {
	Content string `json:"content"`
}

type peerOut struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type connectedOut struct {
	ConnectionID string `json:"connectionId"`
}

type errorOut struct {
	Message string `json:"message"`
}

// Decode parses and validates one client frame
func Decode(raw []byte) (session.Inbound, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Action {
	case ActionJoin:
		var in joinIn
		if err := decodeData(f.Data, &in); err != nil {
			return nil, err
		}
		return session.Join{RoomID: session.RoomID(in.RoomID), DisplayName: in.DisplayName}, nil

	case ActionCodeChange:
		var in codeChangeIn
		if err := decodeData(f.Data, &in); err != nil {
			return nil, err
		}
		return session.ContentChange{RoomID: session.RoomID(in.RoomID), Content: *in.Content}, nil

	case ActionSyncCode:
		var in syncIn
		if err := decodeData(f.Data, &in); err != nil {
			return nil, err
		}
		return session.Sync{Target: session.ConnectionID(in.TargetConnectionID), Content: *in.Content}, nil

	case ActionLeave:
		var in leaveIn
		if len(f.Data) > 0 {
			if err := decodeData(f.Data, &in); err != nil {
				return nil, err
			}
		}
		return session.Leave{RoomID: session.RoomID(in.RoomID)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, f.Action)
}

// decodeData unmarshals a frame body into v and runs its validation tags
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Encode renders a coordinator notification as a wire frame
func Encode(ev session.Outbound) ([]byte, error) {
	switch e := ev.(type) {
	case session.Joined:
		members := make([]memberOut, 0, len(e.Members))
		for _, m := range e.Members {
			members = append(members, memberOut{ConnectionID: string(m.ConnectionID), DisplayName: m.DisplayName})
		}
		return frame(ActionJoined, joinedOut{
			Members:            members,
			JoinedDisplayName:  e.JoinedDisplayName,
			JoinedConnectionID: string(e.JoinedConnectionID),
		})
	case session.ContentChanged:
		return frame(ActionCodeChange, contentOut{Content: e.Content})
	case session.Disconnected:
		return frame(ActionDisconnected, peerOut{ConnectionID: string(e.ConnectionID), DisplayName: e.DisplayName})
	}
	return nil, fmt.Errorf("encode %T: %w", ev, ErrUnknownAction)
}

// EncodeConnected tells a client the id it was assigned
func EncodeConnected(id session.ConnectionID) ([]byte, error) {
	return frame(ActionConnected, connectedOut{ConnectionID: string(id)})
}

// EncodeError reports a rejected frame back to its sender
func EncodeError(err error) ([]byte, error) {
	return frame(ActionError, errorOut{Message: err.Error()})
}

func frame(action string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Action: action, Data: raw})
}
