package gateway

import (
	"time"

	"github.com/harun/beacon/pkg/location"
	"github.com/harun/beacon/pkg/tracking"
)

// Inbound message types
const (
	TypeAuth           = "auth"
	TypeUpdateLocation = "update_location"
	TypeGetShared      = "get_shared"
)

// Outbound message types
const (
	TypeAuthSuccess     = "auth_success"
	TypeError           = "error"
	TypeLocationSaved   = "location_saved"
	TypeSharedLocations = "shared_locations"
	TypeLocationUpdate  = "location_update"
)

// Inbound is a message sent by a client. The set of implementations is
// closed: AuthMessage, UpdateLocationMessage and GetSharedMessage.
type Inbound interface {
	inbound()
}

// AuthMessage binds the connection to the identity in Token
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// UpdateLocationMessage records a new position for the authenticated user
type UpdateLocationMessage struct {
	Type     string            `json:"type"`
	Location location.Position `json:"location"`
}

// GetSharedMessage asks for every position shared with the authenticated user
type GetSharedMessage struct {
	Type string `json:"type"`
}

func (AuthMessage) inbound()           {}
func (UpdateLocationMessage) inbound() {}
func (GetSharedMessage) inbound()      {}

// AuthSuccess acknowledges an auth message
type AuthSuccess struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorMessage reports a rejected message
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// LocationSaved acknowledges an update_location message
type LocationSaved struct {
	Type     string            `json:"type"`
	Location location.Position `json:"location"`
	Message  string            `json:"message"`
}

// SharedLocations answers get_shared
type SharedLocations struct {
	Type      string            `json:"type"`
	Locations []tracking.Shared `json:"locations"`
}

// LocationUpdate is pushed to authorized viewers when a subject moves
type LocationUpdate struct {
	Type      string            `json:"type"`
	UserID    location.Identity `json:"userId"`
	Location  location.Position `json:"location"`
	Timestamp time.Time         `json:"timestamp"`
}

// SessionInfo describes a live connection
type SessionInfo struct {
	ID            string            `json:"id"`
	Identity      location.Identity `json:"identity,omitempty"`
	Authenticated bool              `json:"authenticated"`
	ConnectedAt   time.Time         `json:"connectedAt"`
	RemoteAddr    string            `json:"remoteAddr"`
	Dropped       uint64            `json:"dropped"`
}

func errorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: msg}
}
