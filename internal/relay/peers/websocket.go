package peers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/echorelay/internal/dependencies/clock"
	"github.com/mcoot/echorelay/internal/dependencies/random"
	"github.com/mcoot/echorelay/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Time between keepalive pings, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size
	maxMessageSize = 64 * 1024
)

// Handler upgrades client connections to websockets and registers them with the directory
type Handler struct {
	directory *Directory
	random    random.Random
	clock     clock.Clock
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewHandler creates a new peer websocket handler
func NewHandler(directory *Directory, rnd random.Random, clk clock.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		directory: directory,
		random:    rnd,
		clock:     clk,
		logger:    logger.With(slog.String("component", "peer-transport")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the websocket connection for a client
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("peer upgrade failed", slog.Any("error", err))
		return
	}

	peer := NewPeer(h.random.UUID(), r.RemoteAddr, h.clock.Now())
	h.directory.Add(peer)

	go h.writePump(conn, peer)
	h.readPump(conn, peer)
}

// readPump processes inbound messages until the connection fails
func (h *Handler) readPump(conn *websocket.Conn, peer *Peer) {
	defer h.directory.Remove(peer)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !peer.Closed() {
				h.logger.Debug("peer read ended", slog.String("peer_id", peer.ID().String()), slog.Any("error", err))
			}
			return
		}
		h.handleMessage(peer, env)
	}
}

func (h *Handler) handleMessage(peer *Peer, env model.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	switch env.Type {
	case model.EventLogin:
		var payload model.LoginPayload
		if err := env.Decode(&payload); err != nil {
			h.reply(ctx, peer, model.EventError, env.RequestID, model.ErrorPayload{Message: "invalid login payload"})
			return
		}
		if err := h.directory.Authenticate(peer, payload.UserID); err != nil {
			return
		}
		h.reply(ctx, peer, model.EventLoginSuccess, env.RequestID, payload)
	default:
		h.reply(ctx, peer, model.EventError, env.RequestID, model.ErrorPayload{Message: "unsupported message type " + string(env.Type)})
	}
}

func (h *Handler) reply(ctx context.Context, peer *Peer, eventType model.EventType, requestID string, payload any) {
	env, err := model.NewEnvelope(eventType, requestID, payload)
	if err != nil {
		h.logger.Error("failed to encode reply", slog.Any("error", err))
		return
	}
	if err := h.directory.Push(ctx, peer, env); err != nil {
		h.logger.Warn("failed to reply to peer",
			slog.String("peer_id", peer.ID().String()),
			slog.Any("error", err))
	}
}

// writePump drains the peer's queue onto the connection and keeps it alive
func (h *Handler) writePump(conn *websocket.Conn, peer *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message := <-peer.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				peer.Close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				peer.Close()
				return
			}

		case <-peer.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
