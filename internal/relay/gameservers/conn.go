// Package gameservers is the websocket transport game servers use to register with
// the relay and receive start-session commands.
package gameservers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/echorelay/internal/dependencies/random"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/services/registry"
)

// Conn is a registered game server connection. Commands are correlated with
// replies by request id.
type Conn struct {
	serverID   uint64
	remoteAddr string
	conn       *websocket.Conn
	random     random.Random

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan model.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// Ensure Conn implements the registry's server interface
var _ registry.GameServer = (*Conn)(nil)

func newConn(serverID uint64, remoteAddr string, conn *websocket.Conn, rnd random.Random) *Conn {
	return &Conn{
		serverID:   serverID,
		remoteAddr: remoteAddr,
		conn:       conn,
		random:     rnd,
		pending:    make(map[string]chan model.Envelope),
		done:       make(chan struct{}),
	}
}

// ServerID returns the id the server registered with
func (c *Conn) ServerID() uint64 {
	return c.serverID
}

// RemoteAddr returns the address the server connected from
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// StartSession sends a start command and waits for the server's reply
func (c *Conn) StartSession(ctx context.Context, cmd model.StartSessionCommand) (uuid.UUID, error) {
	requestID := c.random.UUID().String()
	replies := make(chan model.Envelope, 1)

	c.mu.Lock()
	c.pending[requestID] = replies
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	env, err := model.NewEnvelope(model.EventStartSession, requestID, cmd)
	if err != nil {
		return uuid.Nil, err
	}
	if err := c.write(env); err != nil {
		return uuid.Nil, fmt.Errorf("send start command: %w", err)
	}

	select {
	case reply := <-replies:
		return decodeStartReply(reply)
	case <-c.done:
		return uuid.Nil, fmt.Errorf("%w: server %d disconnected", model.ErrSessionStartRejected, c.serverID)
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

func decodeStartReply(reply model.Envelope) (uuid.UUID, error) {
	switch reply.Type {
	case model.EventSessionStarted:
		var payload model.SessionStartedPayload
		if err := reply.Decode(&payload); err != nil {
			return uuid.Nil, fmt.Errorf("%w: malformed reply: %v", model.ErrSessionStartRejected, err)
		}
		return payload.SessionID, nil
	case model.EventSessionStartFailed:
		var payload model.SessionStartFailedPayload
		_ = reply.Decode(&payload)
		return uuid.Nil, fmt.Errorf("%w: %s", model.ErrSessionStartRejected, payload.Reason)
	default:
		return uuid.Nil, fmt.Errorf("%w: unexpected reply %q", model.ErrSessionStartRejected, reply.Type)
	}
}

// resolve hands a reply to the command waiting for it, reporting whether one was waiting
func (c *Conn) resolve(reply model.Envelope) bool {
	c.mu.Lock()
	replies, ok := c.pending[reply.RequestID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case replies <- reply:
	default:
	}
	return true
}

func (c *Conn) write(env model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
