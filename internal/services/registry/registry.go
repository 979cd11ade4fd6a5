// Package registry tracks registered game servers and the session each is hosting.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/dependencies/clock"
	"github.com/mcoot/echorelay/internal/dependencies/random"
	"github.com/mcoot/echorelay/internal/model"
)

// GameServer is a connected game-hosting server that can be asked to start a session
type GameServer interface {
	ServerID() uint64
	RemoteAddr() string
	// StartSession sends the command and waits for the server's answer, returning
	// the id of the session it started
	StartSession(ctx context.Context, cmd model.StartSessionCommand) (uuid.UUID, error)
}

// Registration is a point-in-time view of a registered server
type Registration struct {
	// SessionID keys the registration. It is assigned at registration and replaced
	// by the server-reported id once a session starts.
	SessionID    uuid.UUID
	ServerID     uint64
	RemoteAddr   string
	Session      *model.SessionDescriptor
	RegisteredAt time.Time
	Starting     bool

	server GameServer
}

// Server returns the connection to the registered server
func (r Registration) Server() GameServer {
	return r.server
}

// Idle reports whether the server is not hosting a session
func (r Registration) Idle() bool {
	return r.Session == nil
}

// Registry is the live set of registered game servers. Listing follows
// registration order.
type Registry struct {
	mu        sync.RWMutex
	bySession map[uuid.UUID]*Registration
	byServer  map[GameServer]*Registration
	order     []*Registration

	clock  clock.Clock
	random random.Random
	logger *slog.Logger
}

// New creates an empty Registry
func New(clk clock.Clock, rnd random.Random, logger *slog.Logger) *Registry {
	return &Registry{
		bySession: make(map[uuid.UUID]*Registration),
		byServer:  make(map[GameServer]*Registration),
		clock:     clk,
		random:    rnd,
		logger:    logger.With(slog.String("component", "registry")),
	}
}

// Register adds a server under a fresh session id. Registering the same server
// twice returns its existing registration.
func (r *Registry) Register(server GameServer) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byServer[server]; ok {
		return r.snapshot(existing)
	}

	reg := &Registration{
		SessionID:    r.freshSessionIDLocked(),
		ServerID:     server.ServerID(),
		RemoteAddr:   server.RemoteAddr(),
		RegisteredAt: r.clock.Now(),
		server:       server,
	}
	r.bySession[reg.SessionID] = reg
	r.byServer[server] = reg
	r.order = append(r.order, reg)

	r.logger.Info("game server registered",
		slog.Uint64("server_id", reg.ServerID),
		slog.String("session_id", reg.SessionID.String()),
		slog.String("remote_addr", reg.RemoteAddr),
		slog.Int("total_servers", len(r.order)))
	return r.snapshot(reg)
}

func (r *Registry) freshSessionIDLocked() uuid.UUID {
	for {
		id := r.random.UUID()
		if _, taken := r.bySession[id]; !taken && id != uuid.Nil {
			return id
		}
	}
}

// Deregister removes the registration keyed by sessionID
func (r *Registry) Deregister(sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.bySession[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrSessionNotFound, sessionID)
	}
	r.removeLocked(reg)
	return nil
}

// DeregisterServer removes the registration belonging to server, reporting whether
// one existed
func (r *Registry) DeregisterServer(server GameServer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byServer[server]
	if !ok {
		return false
	}
	r.removeLocked(reg)
	return true
}

func (r *Registry) removeLocked(reg *Registration) {
	delete(r.bySession, reg.SessionID)
	delete(r.byServer, reg.server)
	r.order = slices.DeleteFunc(r.order, func(existing *Registration) bool {
		return existing == reg
	})

	r.logger.Info("game server deregistered",
		slog.Uint64("server_id", reg.ServerID),
		slog.String("session_id", reg.SessionID.String()),
		slog.Int("total_servers", len(r.order)))
}

// Lookup returns a snapshot of the registration keyed by sessionID
func (r *Registry) Lookup(sessionID uuid.UUID) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.bySession[sessionID]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", model.ErrSessionNotFound, sessionID)
	}
	return r.snapshot(reg), nil
}

// ListActiveSessions returns one page of session ids in registration order
func (r *Registry) ListActiveSessions(offset, limit int) ([]uuid.UUID, error) {
	if err := model.ValidateWindow(offset, limit); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start, end := model.Window(len(r.order), offset, limit)
	ids := make([]uuid.UUID, 0, end-start)
	for _, reg := range r.order[start:end] {
		ids = append(ids, reg.SessionID)
	}
	return ids, nil
}

// Count returns the number of registered servers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// BeginStart marks the registration as mid-handshake. Only one handshake may be in
// flight per registration; a second attempt fails rather than queueing.
func (r *Registry) BeginStart(sessionID uuid.UUID) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.bySession[sessionID]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", model.ErrSessionNotFound, sessionID)
	}
	if reg.Starting {
		return Registration{}, fmt.Errorf("%w: %s", model.ErrSessionAlreadyStarting, sessionID)
	}
	reg.Starting = true
	return r.snapshot(reg), nil
}

// CompleteStart records the session a server started and re-keys its registration
// under the new session id, keeping its position in the listing
func (r *Registry) CompleteStart(sessionID uuid.UUID, descriptor model.SessionDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.bySession[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrSessionNotFound, sessionID)
	}
	if other, taken := r.bySession[descriptor.SessionID]; taken && other != reg {
		reg.Starting = false
		return fmt.Errorf("%w: session id %s already in use", model.ErrSessionStartRejected, descriptor.SessionID)
	}

	delete(r.bySession, sessionID)
	reg.SessionID = descriptor.SessionID
	reg.Session = &descriptor
	reg.Starting = false
	r.bySession[reg.SessionID] = reg

	r.logger.Info("session started",
		slog.Uint64("server_id", reg.ServerID),
		slog.String("previous_session_id", sessionID.String()),
		slog.String("session_id", reg.SessionID.String()),
		slog.String("lobby_type", descriptor.LobbyType.String()))
	return nil
}

// AbortStart releases the handshake guard without changing the session
func (r *Registry) AbortStart(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.bySession[sessionID]; ok {
		reg.Starting = false
	}
}

func (r *Registry) snapshot(reg *Registration) Registration {
	copied := *reg
	if reg.Session != nil {
		session := *reg.Session
		copied.Session = &session
	}
	return copied
}
