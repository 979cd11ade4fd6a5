package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"

	"github.com/mcoot/echorelay/internal/dependencies/mocks"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.registry = New(s.clock, s.random, testutil.NopLogger())
}

func (s *RegistrySuite) descriptor(id uuid.UUID) model.SessionDescriptor {
	return model.SessionDescriptor{
		SessionID: id,
		LobbyType: model.LobbyTypePublic,
		Channel:   uuid.New(),
		StartedAt: s.clock.Now(),
	}
}

func (s *RegistrySuite) TestRegisterAssignsIdleSession() {
	sessionID := uuid.New()
	s.random.QueueUUID(sessionID)
	server := mocks.NewMockGameServer(7)

	reg := s.registry.Register(server)

	s.Equal(sessionID, reg.SessionID)
	s.Equal(uint64(7), reg.ServerID)
	s.True(reg.Idle())
	s.False(reg.Starting)
	s.Equal(s.clock.Now(), reg.RegisteredAt)
	s.Equal(server, reg.Server())

	looked, err := s.registry.Lookup(sessionID)
	s.Require().NoError(err)
	s.Equal(reg, looked)
}

func (s *RegistrySuite) TestRegisterTwiceReturnsExisting() {
	server := mocks.NewMockGameServer(1)

	first := s.registry.Register(server)
	second := s.registry.Register(server)

	s.Equal(first.SessionID, second.SessionID)
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestRegisterSkipsCollidingIDs() {
	taken := uuid.New()
	fresh := uuid.New()
	s.random.QueueUUID(taken, taken, uuid.Nil, fresh)

	s.registry.Register(mocks.NewMockGameServer(1))
	reg := s.registry.Register(mocks.NewMockGameServer(2))

	s.Equal(fresh, reg.SessionID)
}

func (s *RegistrySuite) TestLookupUnknownSession() {
	_, err := s.registry.Lookup(uuid.New())
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RegistrySuite) TestDeregister() {
	reg := s.registry.Register(mocks.NewMockGameServer(1))

	s.Require().NoError(s.registry.Deregister(reg.SessionID))

	_, err := s.registry.Lookup(reg.SessionID)
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.ErrorIs(s.registry.Deregister(reg.SessionID), model.ErrSessionNotFound)
}

func (s *RegistrySuite) TestDeregisterServer() {
	server := mocks.NewMockGameServer(1)
	s.registry.Register(server)

	s.True(s.registry.DeregisterServer(server))
	s.False(s.registry.DeregisterServer(server))
	s.Equal(0, s.registry.Count())
}

func (s *RegistrySuite) TestListActiveSessionsInRegistrationOrder() {
	var expected []uuid.UUID
	for i := range 5 {
		expected = append(expected, s.registry.Register(mocks.NewMockGameServer(uint64(i))).SessionID)
	}

	ids, err := s.registry.ListActiveSessions(0, 10)
	s.Require().NoError(err)
	s.Equal(expected, ids)

	ids, err = s.registry.ListActiveSessions(3, 10)
	s.Require().NoError(err)
	s.Equal(expected[3:], ids)

	ids, err = s.registry.ListActiveSessions(10, 10)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *RegistrySuite) TestListActiveSessionsRejectsInvalidWindow() {
	_, err := s.registry.ListActiveSessions(-1, 10)
	s.ErrorIs(err, model.ErrInvalidArgument)
	_, err = s.registry.ListActiveSessions(0, 0)
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *RegistrySuite) TestStartGuard() {
	reg := s.registry.Register(mocks.NewMockGameServer(1))

	begun, err := s.registry.BeginStart(reg.SessionID)
	s.Require().NoError(err)
	s.True(begun.Starting)

	_, err = s.registry.BeginStart(reg.SessionID)
	s.ErrorIs(err, model.ErrSessionAlreadyStarting)

	s.registry.AbortStart(reg.SessionID)
	_, err = s.registry.BeginStart(reg.SessionID)
	s.NoError(err)
}

func (s *RegistrySuite) TestBeginStartUnknownSession() {
	_, err := s.registry.BeginStart(uuid.New())
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RegistrySuite) TestCompleteStartRekeysInPlace() {
	first := s.registry.Register(mocks.NewMockGameServer(1))
	second := s.registry.Register(mocks.NewMockGameServer(2))
	third := s.registry.Register(mocks.NewMockGameServer(3))

	_, err := s.registry.BeginStart(second.SessionID)
	s.Require().NoError(err)

	newID := uuid.New()
	s.Require().NoError(s.registry.CompleteStart(second.SessionID, s.descriptor(newID)))

	_, err = s.registry.Lookup(second.SessionID)
	s.ErrorIs(err, model.ErrSessionNotFound)

	reg, err := s.registry.Lookup(newID)
	s.Require().NoError(err)
	s.False(reg.Starting)
	s.False(reg.Idle())
	s.Equal(newID, reg.Session.SessionID)
	s.Equal(uint64(2), reg.ServerID)

	ids, err := s.registry.ListActiveSessions(0, 10)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{first.SessionID, newID, third.SessionID}, ids)
}

func (s *RegistrySuite) TestCompleteStartRejectsIDOfAnotherServer() {
	first := s.registry.Register(mocks.NewMockGameServer(1))
	second := s.registry.Register(mocks.NewMockGameServer(2))
	_, err := s.registry.BeginStart(second.SessionID)
	s.Require().NoError(err)

	err = s.registry.CompleteStart(second.SessionID, s.descriptor(first.SessionID))
	s.ErrorIs(err, model.ErrSessionStartRejected)

	reg, err := s.registry.Lookup(second.SessionID)
	s.Require().NoError(err)
	s.False(reg.Starting)
}

func (s *RegistrySuite) TestCompleteStartAfterDeregistration() {
	reg := s.registry.Register(mocks.NewMockGameServer(1))
	_, err := s.registry.BeginStart(reg.SessionID)
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Deregister(reg.SessionID))

	err = s.registry.CompleteStart(reg.SessionID, s.descriptor(uuid.New()))
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RegistrySuite) TestLookupReturnsCopy() {
	reg := s.registry.Register(mocks.NewMockGameServer(1))
	_, err := s.registry.BeginStart(reg.SessionID)
	s.Require().NoError(err)
	newID := uuid.New()
	s.Require().NoError(s.registry.CompleteStart(reg.SessionID, s.descriptor(newID)))

	looked, err := s.registry.Lookup(newID)
	s.Require().NoError(err)
	looked.Session.Level = 99
	looked.Starting = true

	again, err := s.registry.Lookup(newID)
	s.Require().NoError(err)
	s.Equal(int64(0), again.Session.Level)
	s.False(again.Starting)
}

func (s *RegistrySuite) TestConcurrentRegistrationAndListing() {
	var wg sync.WaitGroup
	servers := make([]*mocks.MockGameServer, 50)
	for i := range servers {
		servers[i] = mocks.NewMockGameServer(uint64(i))
	}

	for _, server := range servers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.registry.Register(server)
		}()
		go func() {
			defer wg.Done()
			ids, err := s.registry.ListActiveSessions(0, 100)
			s.NoError(err)
			for _, id := range ids {
				_, _ = s.registry.Lookup(id)
			}
		}()
	}
	wg.Wait()

	for _, server := range servers[:25] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.registry.DeregisterServer(server)
		}()
	}
	wg.Wait()

	s.Equal(25, s.registry.Count())
}

func TestListingPagesAreDisjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		registry := New(mocks.NewMockClock(time.Now()), mocks.NewMockRandom(), testutil.NopLogger())
		n := rapid.IntRange(0, 40).Draw(t, "servers")
		size := rapid.IntRange(1, 15).Draw(t, "page_size")
		for i := range n {
			registry.Register(mocks.NewMockGameServer(uint64(i)))
		}

		seen := make(map[uuid.UUID]bool)
		for page := 1; ; page++ {
			p, err := model.NewPage(page, size)
			if err != nil {
				t.Fatalf("page: %v", err)
			}
			ids, err := registry.ListActiveSessions(p.Offset(), p.Limit())
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ids) == 0 {
				break
			}
			for _, id := range ids {
				if seen[id] {
					t.Fatalf("session %s listed twice", id)
				}
				seen[id] = true
			}
		}
		if len(seen) != n {
			t.Fatalf("listed %d sessions, want %d", len(seen), n)
		}
	})
}
