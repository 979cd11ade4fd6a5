package response

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/services/registry"
)

// AccountIDs converts identities to their canonical strings
func AccountIDs(ids []model.XPlatformID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// SessionIDs converts session ids to strings
func SessionIDs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// SessionDescriptor describes a running session
type SessionDescriptor struct {
	SessionID string         `json:"session_id"`
	LobbyType string         `json:"lobby_type"`
	Channel   string         `json:"channel"`
	GameType  int64          `json:"game_type"`
	Level     int64          `json:"level"`
	Settings  document.Value `json:"settings"`
	StartedAt time.Time      `json:"started_at"`
}

// Session represents a registered game server and what it is hosting
type Session struct {
	SessionID    string             `json:"session_id"`
	ServerID     uint64             `json:"server_id"`
	RemoteAddr   string             `json:"remote_addr"`
	RegisteredAt time.Time          `json:"registered_at"`
	Starting     bool               `json:"starting"`
	Descriptor   *SessionDescriptor `json:"descriptor"`
}

// SessionFromRegistration converts a registry snapshot
func SessionFromRegistration(reg registry.Registration) Session {
	s := Session{
		SessionID:    reg.SessionID.String(),
		ServerID:     reg.ServerID,
		RemoteAddr:   reg.RemoteAddr,
		RegisteredAt: reg.RegisteredAt,
		Starting:     reg.Starting,
	}
	if d := reg.Session; d != nil {
		s.Descriptor = &SessionDescriptor{
			SessionID: d.SessionID.String(),
			LobbyType: d.LobbyType.String(),
			Channel:   d.Channel.String(),
			GameType:  d.GameType,
			Level:     d.Level,
			Settings:  d.Settings,
			StartedAt: d.StartedAt,
		}
	}
	return s
}

// StartSessionResponse is the response after a session start
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// Health is the response of the health endpoint
type Health struct {
	Status         string `json:"status"`
	ConnectedPeers int    `json:"connected_peers"`
	GameServers    int    `json:"game_servers"`
}
