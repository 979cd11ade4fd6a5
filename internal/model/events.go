package model

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/document"
)

// EventType identifies a message exchanged with a connected peer or game server
type EventType string

const (
	// Client peer events
	EventLogin              EventType = "login"
	EventLoginSuccess       EventType = "login_success"
	EventProfileUpdated     EventType = "profile_updated"
	EventRequirementCleared EventType = "requirement_cleared"
	EventError              EventType = "error"

	// Game server events
	EventServerRegister     EventType = "register"
	EventServerRegistered   EventType = "registered"
	EventStartSession       EventType = "start_session"
	EventSessionStarted     EventType = "session_started"
	EventSessionStartFailed EventType = "session_start_failed"
)

// Envelope is the wire frame for every peer and game server message
type Envelope struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// LoginPayload is sent by a client to bind its connection to an identity
type LoginPayload struct {
	UserID XPlatformID `json:"user_id"`
}

// ProfileUpdatedPayload carries the full post-write profile of an account
type ProfileUpdatedPayload struct {
	UserID  XPlatformID    `json:"user_id"`
	Profile document.Value `json:"profile"`
}

// ErrorPayload reports a protocol error
type ErrorPayload struct {
	Message string `json:"message"`
}

// ServerRegisterPayload is sent by a game server when it connects
type ServerRegisterPayload struct {
	ServerID uint64 `json:"server_id"`
	Region   string `json:"region,omitempty"`
	Version  string `json:"version,omitempty"`
}

// ServerRegisteredPayload acknowledges a registration
type ServerRegisteredPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// SessionStartedPayload is the game server's reply to a start command
type SessionStartedPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// SessionStartFailedPayload is the game server's refusal of a start command
type SessionStartFailedPayload struct {
	Reason string `json:"reason"`
}

// NewEnvelope encodes a payload into an envelope
func NewEnvelope(eventType EventType, requestID string, payload any) (Envelope, error) {
	env := Envelope{Type: eventType, RequestID: requestID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = data
	}
	return env, nil
}

// Decode unmarshals the envelope payload into target
func (e Envelope) Decode(target any) error {
	if len(e.Payload) == 0 {
		return ErrInvalidArgument
	}
	return json.Unmarshal(e.Payload, target)
}
