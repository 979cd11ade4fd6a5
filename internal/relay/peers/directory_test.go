package peers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/testutil"
)

var (
	alice = model.XPlatformID{Platform: model.PlatformOVRORG, AccountID: 1}
	bob   = model.XPlatformID{Platform: model.PlatformOVRORG, AccountID: 2}
)

func newTestPeer() *Peer {
	return NewPeer(uuid.New(), "127.0.0.1:1234", time.Now())
}

func TestDirectoryFindByIdentity(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())

	p1, p2, p3 := newTestPeer(), newTestPeer(), newTestPeer()
	for _, p := range []*Peer{p1, p2, p3} {
		d.Add(p)
	}
	require.NoError(t, d.Authenticate(p1, alice))
	require.NoError(t, d.Authenticate(p2, alice))
	require.NoError(t, d.Authenticate(p3, bob))

	assert.ElementsMatch(t, []*Peer{p1, p2}, d.FindByIdentity(alice))
	assert.Equal(t, []*Peer{p3}, d.FindByIdentity(bob))
	assert.Empty(t, d.FindByIdentity(model.XPlatformID{Platform: model.PlatformSTM, AccountID: 9}))
	assert.Equal(t, 3, d.Count())
}

func TestDirectoryUnauthenticatedPeersAreNotIndexed(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p := newTestPeer()
	d.Add(p)

	_, loggedIn := p.Identity()
	assert.False(t, loggedIn)
	assert.Empty(t, d.FindByIdentity(alice))
	assert.Len(t, d.Snapshot(), 1)
}

func TestDirectoryReLoginMovesPeer(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p := newTestPeer()
	d.Add(p)

	require.NoError(t, d.Authenticate(p, alice))
	require.NoError(t, d.Authenticate(p, bob))

	assert.Empty(t, d.FindByIdentity(alice))
	assert.Equal(t, []*Peer{p}, d.FindByIdentity(bob))
}

func TestDirectoryAuthenticateUnknownPeer(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())

	err := d.Authenticate(newTestPeer(), alice)
	assert.ErrorIs(t, err, model.ErrPeerUnreachable)
}

func TestDirectoryRemoveClosesAndUnindexes(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p := newTestPeer()
	d.Add(p)
	require.NoError(t, d.Authenticate(p, alice))

	d.Remove(p)
	d.Remove(p)

	assert.True(t, p.Closed())
	assert.Empty(t, d.FindByIdentity(alice))
	assert.Equal(t, 0, d.Count())
}

func TestDirectorySnapshotIsStable(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p := newTestPeer()
	d.Add(p)
	require.NoError(t, d.Authenticate(p, alice))

	snapshot := d.FindByIdentity(alice)
	d.Remove(p)

	assert.Len(t, snapshot, 1)
}

func TestDirectoryPush(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p := newTestPeer()
	d.Add(p)

	env, err := model.NewEnvelope(model.EventRequirementCleared, "", nil)
	require.NoError(t, err)
	require.NoError(t, d.Push(context.Background(), p, env))

	select {
	case msg := <-p.Messages():
		var decoded model.Envelope
		require.NoError(t, json.Unmarshal(msg, &decoded))
		assert.Equal(t, model.EventRequirementCleared, decoded.Type)
	case <-time.After(time.Second):
		t.Fatal("peer did not receive message")
	}
}

func TestPushToClosedPeerIsUnreachable(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p := newTestPeer()
	d.Add(p)
	d.Remove(p)

	env, err := model.NewEnvelope(model.EventRequirementCleared, "", nil)
	require.NoError(t, err)

	err = d.Push(context.Background(), p, env)
	assert.ErrorIs(t, err, model.ErrPeerUnreachable)
}

func TestSendToFullQueueHonoursContext(t *testing.T) {
	p := newTestPeer()
	for range sendBufferSize {
		require.NoError(t, p.Send(context.Background(), []byte("x")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Send(ctx, []byte("overflow"))
	assert.ErrorIs(t, err, model.ErrPeerUnreachable)
}

func TestDisconnectIdentity(t *testing.T) {
	d := NewDirectory(testutil.NopLogger())
	p1, p2, other := newTestPeer(), newTestPeer(), newTestPeer()
	for _, p := range []*Peer{p1, p2, other} {
		d.Add(p)
	}
	require.NoError(t, d.Authenticate(p1, alice))
	require.NoError(t, d.Authenticate(p2, alice))
	require.NoError(t, d.Authenticate(other, bob))

	n := d.DisconnectIdentity(alice)

	assert.Equal(t, 2, n)
	assert.True(t, p1.Closed())
	assert.True(t, p2.Closed())
	assert.False(t, other.Closed())
	assert.Equal(t, 1, d.Count())
}
