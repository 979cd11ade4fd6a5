package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/document"
)

// AppID is the fixed application identifier sent with every start-session command
const AppID = "1369078409873402"

// LobbyType is the kind of lobby a session is started for
type LobbyType int

const (
	LobbyTypePublic LobbyType = iota
	LobbyTypePrivate
	LobbyTypeMatchmaking
)

// IsValid reports whether the lobby type is one of the known values
func (t LobbyType) IsValid() bool {
	switch t {
	case LobbyTypePublic, LobbyTypePrivate, LobbyTypeMatchmaking:
		return true
	}
	return false
}

func (t LobbyType) String() string {
	switch t {
	case LobbyTypePublic:
		return "public"
	case LobbyTypePrivate:
		return "private"
	case LobbyTypeMatchmaking:
		return "matchmaking"
	default:
		return "unknown"
	}
}

// StartSessionParams is an unvalidated request to start a session on a registered server
type StartSessionParams struct {
	LobbyType int
	Channel   string
	GameType  int64
	Level     int64
	Settings  document.Value
}

// StartSessionCommand is what the relay sends to a game server to start a session
type StartSessionCommand struct {
	AppID     string         `json:"app_id"`
	LobbyType LobbyType      `json:"lobby_type"`
	Channel   uuid.UUID      `json:"channel"`
	GameType  int64          `json:"game_type"`
	Level     int64          `json:"level"`
	Settings  document.Value `json:"settings"`
}

// SessionDescriptor describes a live session running on a registered server
type SessionDescriptor struct {
	SessionID uuid.UUID
	LobbyType LobbyType
	Channel   uuid.UUID
	GameType  int64
	Level     int64
	Settings  document.Value
	StartedAt time.Time
}
