package peers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/model"
)

// Buffer size for outgoing messages
const sendBufferSize = 64

// Peer is a live client connection. It is identified by a connection-scoped id and
// carries an identity once the client has logged in.
type Peer struct {
	id          uuid.UUID
	remoteAddr  string
	connectedAt time.Time

	mu       sync.RWMutex
	identity model.XPlatformID
	loggedIn bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewPeer creates a new unauthenticated peer
func NewPeer(id uuid.UUID, remoteAddr string, connectedAt time.Time) *Peer {
	return &Peer{
		id:          id,
		remoteAddr:  remoteAddr,
		connectedAt: connectedAt,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// ID returns the connection-scoped id
func (p *Peer) ID() uuid.UUID {
	return p.id
}

// RemoteAddr returns the address the peer connected from
func (p *Peer) RemoteAddr() string {
	return p.remoteAddr
}

// ConnectedAt returns when the peer connected
func (p *Peer) ConnectedAt() time.Time {
	return p.connectedAt
}

// Identity returns the logged-in identity, if any
func (p *Peer) Identity() (model.XPlatformID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity, p.loggedIn
}

func (p *Peer) setIdentity(id model.XPlatformID) (model.XPlatformID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous, had := p.identity, p.loggedIn
	p.identity = id
	p.loggedIn = true
	return previous, had
}

// Send queues a message for delivery. It blocks until the message is queued, the
// peer closes, or ctx ends; the latter two report ErrPeerUnreachable.
func (p *Peer) Send(ctx context.Context, msg []byte) error {
	select {
	case <-p.done:
		return fmt.Errorf("%w: peer %s closed", model.ErrPeerUnreachable, p.id)
	default:
	}

	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return fmt.Errorf("%w: peer %s closed", model.ErrPeerUnreachable, p.id)
	case <-ctx.Done():
		return fmt.Errorf("%w: peer %s: %v", model.ErrPeerUnreachable, p.id, ctx.Err())
	}
}

// Messages returns the outbound queue drained by the transport
func (p *Peer) Messages() <-chan []byte {
	return p.send
}

// Done is closed once the peer has been closed
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Close marks the peer closed. Safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// Closed reports whether Close has been called
func (p *Peer) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
