package gameservers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/echorelay/internal/dependencies/random"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/services/registry"
)

const (
	// Time allowed to write a message to the server
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the server
	pongWait = 60 * time.Second

	// Time between keepalive pings, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Time a new connection has to send its registration
	registerWait = 10 * time.Second

	// Maximum inbound message size
	maxMessageSize = 64 * 1024
)

// Handler accepts game server websocket connections and keeps the registry in step
// with them
type Handler struct {
	registry *registry.Registry
	random   random.Random
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new game server websocket handler
func NewHandler(reg *registry.Registry, rnd random.Random, logger *slog.Logger) *Handler {
	return &Handler{
		registry: reg,
		random:   rnd,
		logger:   logger.With(slog.String("component", "gameserver-transport")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles a game server connection from registration to disconnect
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("game server upgrade failed", slog.Any("error", err))
		return
	}
	ws.SetReadLimit(maxMessageSize)

	hello, err := h.awaitRegistration(ws)
	if err != nil {
		h.logger.Warn("game server failed to register",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "registration required"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	conn := newConn(hello.payload.ServerID, r.RemoteAddr, ws, h.random)
	reg := h.registry.Register(conn)
	defer func() {
		h.registry.DeregisterServer(conn)
		conn.close()
	}()

	ack, err := model.NewEnvelope(model.EventServerRegistered, hello.requestID, model.ServerRegisteredPayload{SessionID: reg.SessionID})
	if err != nil {
		return
	}
	if err := conn.write(ack); err != nil {
		return
	}

	go h.keepAlive(conn)
	h.readLoop(conn)
}

type registration struct {
	requestID string
	payload   model.ServerRegisterPayload
}

func (h *Handler) awaitRegistration(ws *websocket.Conn) (registration, error) {
	_ = ws.SetReadDeadline(time.Now().Add(registerWait))

	var env model.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		return registration{}, err
	}
	if env.Type != model.EventServerRegister {
		return registration{}, errors.New("first message must be " + string(model.EventServerRegister))
	}
	var payload model.ServerRegisterPayload
	if err := env.Decode(&payload); err != nil {
		return registration{}, err
	}
	return registration{requestID: env.RequestID, payload: payload}, nil
}

func (h *Handler) readLoop(conn *Conn) {
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env model.Envelope
		if err := conn.conn.ReadJSON(&env); err != nil {
			h.logger.Debug("game server read ended",
				slog.Uint64("server_id", conn.ServerID()),
				slog.Any("error", err))
			return
		}

		switch env.Type {
		case model.EventSessionStarted, model.EventSessionStartFailed:
			if !conn.resolve(env) {
				h.logger.Warn("dropping reply with no pending command",
					slog.Uint64("server_id", conn.ServerID()),
					slog.String("request_id", env.RequestID))
			}
		default:
			h.logger.Warn("unexpected message from game server",
				slog.Uint64("server_id", conn.ServerID()),
				slog.String("type", string(env.Type)))
		}
	}
}

func (h *Handler) keepAlive(conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				conn.close()
				return
			}
		case <-conn.done:
			return
		}
	}
}
