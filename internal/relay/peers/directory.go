// Package peers tracks live client connections and delivers pushes to them.
package peers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/model"
)

// Directory is the set of connected peers, indexed by connection id and by the
// identity each peer has logged in as. Lookups return snapshots; the lock is never
// held while a message is delivered.
type Directory struct {
	mu         sync.RWMutex
	peers      map[uuid.UUID]*Peer
	byIdentity map[model.XPlatformID]map[uuid.UUID]*Peer
	logger     *slog.Logger
}

// NewDirectory creates an empty Directory
func NewDirectory(logger *slog.Logger) *Directory {
	return &Directory{
		peers:      make(map[uuid.UUID]*Peer),
		byIdentity: make(map[model.XPlatformID]map[uuid.UUID]*Peer),
		logger:     logger.With(slog.String("component", "peer-directory")),
	}
}

// Add registers a newly connected peer
func (d *Directory) Add(peer *Peer) {
	d.mu.Lock()
	d.peers[peer.ID()] = peer
	count := len(d.peers)
	d.mu.Unlock()

	d.logger.Info("peer connected",
		slog.String("peer_id", peer.ID().String()),
		slog.String("remote_addr", peer.RemoteAddr()),
		slog.Int("total_peers", count))
}

// Remove unregisters a peer and closes it. Removing an unknown peer is a no-op.
func (d *Directory) Remove(peer *Peer) {
	d.mu.Lock()
	_, ok := d.peers[peer.ID()]
	if ok {
		delete(d.peers, peer.ID())
		if id, loggedIn := peer.Identity(); loggedIn {
			d.unindexLocked(id, peer)
		}
	}
	count := len(d.peers)
	d.mu.Unlock()

	peer.Close()
	if ok {
		d.logger.Info("peer disconnected",
			slog.String("peer_id", peer.ID().String()),
			slog.Int("total_peers", count))
	}
}

// Authenticate binds a peer to an identity after a successful login. A peer that
// logs in again is moved to the new identity.
func (d *Directory) Authenticate(peer *Peer, id model.XPlatformID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.peers[peer.ID()]; !ok || peer.Closed() {
		return model.ErrPeerUnreachable
	}

	if previous, had := peer.setIdentity(id); had {
		d.unindexLocked(previous, peer)
	}
	set, ok := d.byIdentity[id]
	if !ok {
		set = make(map[uuid.UUID]*Peer)
		d.byIdentity[id] = set
	}
	set[peer.ID()] = peer

	d.logger.Info("peer logged in",
		slog.String("peer_id", peer.ID().String()),
		slog.String("user_id", id.String()))
	return nil
}

func (d *Directory) unindexLocked(id model.XPlatformID, peer *Peer) {
	set := d.byIdentity[id]
	delete(set, peer.ID())
	if len(set) == 0 {
		delete(d.byIdentity, id)
	}
}

// FindByIdentity returns a point-in-time snapshot of the peers logged in as id
func (d *Directory) FindByIdentity(id model.XPlatformID) []*Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.byIdentity[id]
	result := make([]*Peer, 0, len(set))
	for _, peer := range set {
		result = append(result, peer)
	}
	return result
}

// Snapshot returns every connected peer
func (d *Directory) Snapshot() []*Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*Peer, 0, len(d.peers))
	for _, peer := range d.peers {
		result = append(result, peer)
	}
	return result
}

// Count returns the number of connected peers
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Push encodes an envelope and queues it on the peer
func (d *Directory) Push(ctx context.Context, peer *Peer, env model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return peer.Send(ctx, data)
}

// DisconnectIdentity removes and closes every peer logged in as id, returning how many
func (d *Directory) DisconnectIdentity(id model.XPlatformID) int {
	targets := d.FindByIdentity(id)
	for _, peer := range targets {
		d.Remove(peer)
	}
	if len(targets) > 0 {
		d.logger.Info("disconnected peers for identity",
			slog.String("user_id", id.String()),
			slog.Int("count", len(targets)))
	}
	return len(targets)
}
