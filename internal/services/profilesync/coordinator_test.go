package profilesync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/observability"
	"github.com/mcoot/echorelay/internal/relay/peers"
	"github.com/mcoot/echorelay/internal/testutil"
)

type CoordinatorSuite struct {
	suite.Suite
	directory   *peers.Directory
	metrics     *observability.Metrics
	coordinator *Coordinator
	account     *model.Account
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.directory = peers.NewDirectory(testutil.NopLogger())
	s.metrics = observability.NewMetrics()
	s.coordinator = NewCoordinator(s.directory, s.metrics, Config{PushTimeout: 50 * time.Millisecond, Concurrency: 4}, testutil.NopLogger())

	account, err := model.NewAccount(document.MustParse(`{"profile":{"server":{"xplatformid":"OVR-ORG-1","level":3}}}`))
	s.Require().NoError(err)
	s.account = account
}

func (s *CoordinatorSuite) connect(id *model.XPlatformID) *peers.Peer {
	peer := peers.NewPeer(uuid.New(), "127.0.0.1:0", time.Now())
	s.directory.Add(peer)
	if id != nil {
		s.Require().NoError(s.directory.Authenticate(peer, *id))
	}
	return peer
}

func (s *CoordinatorSuite) receive(peer *peers.Peer) model.Envelope {
	select {
	case msg := <-peer.Messages():
		var env model.Envelope
		s.Require().NoError(json.Unmarshal(msg, &env))
		return env
	case <-time.After(time.Second):
		s.FailNow("peer received nothing")
		return model.Envelope{}
	}
}

func (s *CoordinatorSuite) TestPushesProfileThenRequirementCleared() {
	peer := s.connect(&s.account.ID)

	report := s.coordinator.ProfileUpdated(context.Background(), s.account)

	s.Equal(Report{Targeted: 1, Delivered: 1}, report)

	first := s.receive(peer)
	s.Equal(model.EventProfileUpdated, first.Type)
	var payload model.ProfileUpdatedPayload
	s.Require().NoError(first.Decode(&payload))
	s.Equal(s.account.ID, payload.UserID)
	s.True(s.account.Profile().Equal(payload.Profile))

	second := s.receive(peer)
	s.Equal(model.EventRequirementCleared, second.Type)
}

func (s *CoordinatorSuite) TestOnlyMatchingPeersAreNotified() {
	other := model.XPlatformID{Platform: model.PlatformSTM, AccountID: 5}
	otherPeer := s.connect(&other)
	anonymous := s.connect(nil)

	report := s.coordinator.ProfileUpdated(context.Background(), s.account)

	s.Equal(0, report.Targeted)
	s.Empty(otherPeer.Messages())
	s.Empty(anonymous.Messages())
}

func (s *CoordinatorSuite) TestNoPeersIsNotAnError() {
	report := s.coordinator.ProfileUpdated(context.Background(), s.account)
	s.Equal(Report{}, report)
}

func (s *CoordinatorSuite) TestOneFailingPeerDoesNotAffectOthers() {
	healthy := s.connect(&s.account.ID)
	dead := s.connect(&s.account.ID)
	dead.Close()

	report := s.coordinator.ProfileUpdated(context.Background(), s.account)

	s.Equal(2, report.Targeted)
	s.Equal(1, report.Delivered)
	s.Equal(1, report.Failed)
	s.ErrorIs(report.Err, model.ErrPeerUnreachable)

	s.Equal(model.EventProfileUpdated, s.receive(healthy).Type)
	s.Equal(model.EventRequirementCleared, s.receive(healthy).Type)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.PeerPushes.WithLabelValues("delivered")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.PeerPushes.WithLabelValues("failed")))
}

func (s *CoordinatorSuite) TestCancelledCallerStillDelivers() {
	peer := s.connect(&s.account.ID)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := s.coordinator.ProfileUpdated(ctx, s.account)

	s.Equal(1, report.Delivered)
	s.Equal(model.EventProfileUpdated, s.receive(peer).Type)
}

func (s *CoordinatorSuite) TestRepeatedUpdatesAreNotDeduplicated() {
	peer := s.connect(&s.account.ID)

	s.coordinator.ProfileUpdated(context.Background(), s.account)
	s.coordinator.ProfileUpdated(context.Background(), s.account)

	types := make([]model.EventType, 0, 4)
	for range 4 {
		types = append(types, s.receive(peer).Type)
	}
	s.Equal([]model.EventType{
		model.EventProfileUpdated, model.EventRequirementCleared,
		model.EventProfileUpdated, model.EventRequirementCleared,
	}, types)
}

func (s *CoordinatorSuite) TestAccountDeletedDisconnectsPeers() {
	peer := s.connect(&s.account.ID)

	n := s.coordinator.AccountDeleted(context.Background(), s.account.ID)

	s.Equal(1, n)
	s.True(peer.Closed())
	s.Equal(0, s.directory.Count())
}
