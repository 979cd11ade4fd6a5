// Package sessions drives the start-session handshake with registered game servers.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/dependencies/clock"
	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/observability"
	"github.com/mcoot/echorelay/internal/services/registry"
)

// Config holds handshake settings
type Config struct {
	// HandshakeTimeout bounds how long a game server has to answer a start command
	HandshakeTimeout time.Duration
}

// DefaultConfig returns sensible defaults for session starts
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
	}
}

// Starter validates start requests and runs the handshake against the registry
type Starter struct {
	registry *registry.Registry
	clock    clock.Clock
	metrics  *observability.Metrics
	cfg      Config
	logger   *slog.Logger
}

// NewStarter creates a new Starter
func NewStarter(reg *registry.Registry, clk clock.Clock, metrics *observability.Metrics, cfg Config, logger *slog.Logger) *Starter {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	return &Starter{
		registry: reg,
		clock:    clk,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "session-starter")),
	}
}

// StartSession asks the server registered under sessionID to start a session and
// returns the id of the new session. Validation happens before the registry is
// touched; at most one handshake per registration is in flight.
func (s *Starter) StartSession(ctx context.Context, sessionID uuid.UUID, params model.StartSessionParams) (uuid.UUID, error) {
	cmd, err := validate(params)
	if err != nil {
		s.metrics.SessionStarts.WithLabelValues("invalid").Inc()
		return uuid.Nil, err
	}

	reg, err := s.registry.BeginStart(sessionID)
	if err != nil {
		s.metrics.SessionStarts.WithLabelValues(outcome(err)).Inc()
		return uuid.Nil, err
	}

	newID, err := s.handshake(ctx, reg, cmd)
	if err != nil {
		s.registry.AbortStart(sessionID)
		s.metrics.SessionStarts.WithLabelValues(outcome(err)).Inc()
		s.logger.Warn("session start failed",
			slog.String("session_id", sessionID.String()),
			slog.Uint64("server_id", reg.ServerID),
			slog.Any("error", err))
		return uuid.Nil, err
	}

	descriptor := model.SessionDescriptor{
		SessionID: newID,
		LobbyType: cmd.LobbyType,
		Channel:   cmd.Channel,
		GameType:  cmd.GameType,
		Level:     cmd.Level,
		Settings:  cmd.Settings,
		StartedAt: s.clock.Now(),
	}
	if err := s.registry.CompleteStart(sessionID, descriptor); err != nil {
		s.metrics.SessionStarts.WithLabelValues(outcome(err)).Inc()
		return uuid.Nil, err
	}

	s.metrics.SessionStarts.WithLabelValues("started").Inc()
	return newID, nil
}

func (s *Starter) handshake(ctx context.Context, reg registry.Registration, cmd model.StartSessionCommand) (uuid.UUID, error) {
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	started := s.clock.Now()
	newID, err := reg.Server().StartSession(hctx, cmd)
	s.metrics.HandshakeDuration.Observe(s.clock.Now().Sub(started).Seconds())

	switch {
	case err == nil && newID == uuid.Nil:
		return uuid.Nil, fmt.Errorf("%w: server reported no session id", model.ErrSessionStartRejected)
	case err == nil:
		return newID, nil
	case ctx.Err() != nil:
		// The caller gave up; nothing is retried
		return uuid.Nil, fmt.Errorf("session start abandoned: %w", ctx.Err())
	case errors.Is(hctx.Err(), context.DeadlineExceeded):
		return uuid.Nil, fmt.Errorf("%w after %s", model.ErrHandshakeTimeout, s.cfg.HandshakeTimeout)
	case errors.Is(err, model.ErrSessionStartRejected):
		return uuid.Nil, err
	default:
		return uuid.Nil, fmt.Errorf("%w: %v", model.ErrSessionStartRejected, err)
	}
}

func validate(params model.StartSessionParams) (model.StartSessionCommand, error) {
	lobbyType := model.LobbyType(params.LobbyType)
	if !lobbyType.IsValid() {
		return model.StartSessionCommand{}, fmt.Errorf("%w: %d", model.ErrInvalidLobbyType, params.LobbyType)
	}

	channel, err := uuid.Parse(params.Channel)
	if err != nil || channel == uuid.Nil {
		return model.StartSessionCommand{}, fmt.Errorf("%w: %q", model.ErrInvalidChannel, params.Channel)
	}

	settings := params.Settings
	if settings.IsNull() {
		settings = document.Obj()
	}

	return model.StartSessionCommand{
		AppID:     model.AppID,
		LobbyType: lobbyType,
		Channel:   channel,
		GameType:  params.GameType,
		Level:     params.Level,
		Settings:  settings,
	}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, model.ErrSessionAlreadyStarting):
		return "already_starting"
	case errors.Is(err, model.ErrHandshakeTimeout):
		return "timeout"
	case errors.Is(err, model.ErrSessionStartRejected):
		return "rejected"
	default:
		return "cancelled"
	}
}
