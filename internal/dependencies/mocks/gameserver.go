package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/model"
)

// MockGameServer is a scripted game server for registry and session tests
type MockGameServer struct {
	ID      uint64
	Address string

	// StartFunc answers StartSession; by default it reports a fresh session id
	StartFunc func(ctx context.Context, cmd model.StartSessionCommand) (uuid.UUID, error)

	mu       sync.Mutex
	commands []model.StartSessionCommand
}

// NewMockGameServer creates a MockGameServer that accepts every start command
func NewMockGameServer(id uint64) *MockGameServer {
	return &MockGameServer{ID: id, Address: "10.0.0.1:6792"}
}

// ServerID returns the configured server id
func (s *MockGameServer) ServerID() uint64 {
	return s.ID
}

// RemoteAddr returns the configured address
func (s *MockGameServer) RemoteAddr() string {
	return s.Address
}

// StartSession records the command and delegates to StartFunc
func (s *MockGameServer) StartSession(ctx context.Context, cmd model.StartSessionCommand) (uuid.UUID, error) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	start := s.StartFunc
	s.mu.Unlock()

	if start == nil {
		return uuid.New(), nil
	}
	return start(ctx, cmd)
}

// Commands returns the start commands received so far
func (s *MockGameServer) Commands() []model.StartSessionCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StartSessionCommand(nil), s.commands...)
}
