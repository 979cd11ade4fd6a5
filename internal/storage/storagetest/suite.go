// Package storagetest holds the behavioral suite every account store must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/storage"
)

// AccountStoreSuite exercises the storage.AccountStore contract. Backends embed it
// and set Store in their SetupTest.
type AccountStoreSuite struct {
	suite.Suite
	Store storage.AccountStore
	Ctx   context.Context
}

// Account builds an account whose document carries its identity at the profile path
func Account(id string, extra ...document.Field) *model.Account {
	server := append([]document.Field{document.F("xplatformid", document.String(id))}, extra...)
	doc := document.Obj(document.F("profile", document.Obj(document.F("server", document.Obj(server...)))))
	account, err := model.NewAccount(doc)
	if err != nil {
		panic(err)
	}
	return account
}

func (s *AccountStoreSuite) mustID(raw string) model.XPlatformID {
	id, err := model.ParseXPlatformID(raw)
	s.Require().NoError(err)
	return id
}

func (s *AccountStoreSuite) TestSaveAndGetAccount() {
	account := Account("OVR-ORG-1", document.F("displayname", document.String("alice")))

	err := s.Store.SaveAccount(s.Ctx, account)
	s.Require().NoError(err)

	retrieved, err := s.Store.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(account.ID, retrieved.ID)
	s.True(account.Document.Equal(retrieved.Document))
}

func (s *AccountStoreSuite) TestGetAccountNotFound() {
	_, err := s.Store.GetAccount(s.Ctx, s.mustID("OVR-ORG-404"))
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *AccountStoreSuite) TestSaveOverwritesLastWriteWins() {
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account("STM-1", document.F("level", document.Int(1)))))
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account("STM-1", document.F("level", document.Int(2)))))

	retrieved, err := s.Store.GetAccount(s.Ctx, s.mustID("STM-1"))
	s.Require().NoError(err)
	level, ok := retrieved.Document.Path("profile", "server", "level")
	s.Require().True(ok)
	s.True(document.Int(2).Equal(level))

	ids, err := s.Store.ListAccountIDs(s.Ctx, 0, 10)
	s.Require().NoError(err)
	s.Len(ids, 1)
}

func (s *AccountStoreSuite) TestSaveIsIdempotent() {
	account := Account("PSN-5")
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, account))
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, account))

	ids, err := s.Store.ListAccountIDs(s.Ctx, 0, 10)
	s.Require().NoError(err)
	s.Equal([]model.XPlatformID{account.ID}, ids)
}

func (s *AccountStoreSuite) TestDeleteAccount() {
	account := Account("XBX-9")
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, account))

	err := s.Store.DeleteAccount(s.Ctx, account.ID)
	s.Require().NoError(err)

	_, err = s.Store.GetAccount(s.Ctx, account.ID)
	s.ErrorIs(err, model.ErrAccountNotFound)

	ids, err := s.Store.ListAccountIDs(s.Ctx, 0, 10)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *AccountStoreSuite) TestDeleteMissingAccountLeavesStoreUnchanged() {
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account("BOT-1")))

	err := s.Store.DeleteAccount(s.Ctx, s.mustID("BOT-2"))
	s.ErrorIs(err, model.ErrAccountNotFound)

	ids, err := s.Store.ListAccountIDs(s.Ctx, 0, 10)
	s.Require().NoError(err)
	s.Equal([]model.XPlatformID{s.mustID("BOT-1")}, ids)
}

func (s *AccountStoreSuite) TestListKeepsInsertionOrder() {
	for _, raw := range []string{"OVR-ORG-3", "OVR-ORG-1", "OVR-ORG-2"} {
		s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account(raw)))
	}
	// Overwriting an existing account does not move it
	s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account("OVR-ORG-3", document.F("level", document.Int(7)))))

	ids, err := s.Store.ListAccountIDs(s.Ctx, 0, 10)
	s.Require().NoError(err)
	s.Equal([]model.XPlatformID{s.mustID("OVR-ORG-3"), s.mustID("OVR-ORG-1"), s.mustID("OVR-ORG-2")}, ids)
}

func (s *AccountStoreSuite) TestListPagesAreDisjointAndCoverAllAccounts() {
	const total = 25
	for i := 1; i <= total; i++ {
		s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account(fmt.Sprintf("DMO-%d", i))))
	}

	seen := make(map[model.XPlatformID]bool)
	var sizes []int
	for pageNumber := 1; pageNumber <= 4; pageNumber++ {
		page, err := model.NewPage(pageNumber, 10)
		s.Require().NoError(err)

		ids, err := s.Store.ListAccountIDs(s.Ctx, page.Offset(), page.Limit())
		s.Require().NoError(err)
		sizes = append(sizes, len(ids))
		for _, id := range ids {
			s.False(seen[id], "account %s listed twice", id)
			seen[id] = true
		}
	}

	s.Equal([]int{10, 10, 5, 0}, sizes)
	s.Len(seen, total)
}

func (s *AccountStoreSuite) TestListFarPageIsEmpty() {
	for i := 1; i <= 3; i++ {
		s.Require().NoError(s.Store.SaveAccount(s.Ctx, Account(fmt.Sprintf("XBX-%d", i))))
	}

	for _, pageNumber := range []int{4611686018427387904, 4611686018427387905} {
		page, err := model.NewPage(pageNumber, 4)
		s.Require().NoError(err)

		ids, err := s.Store.ListAccountIDs(s.Ctx, page.Offset(), page.Limit())
		s.Require().NoError(err)
		s.Empty(ids, "page %d", pageNumber)
	}
}

func (s *AccountStoreSuite) TestListRejectsInvalidWindow() {
	_, err := s.Store.ListAccountIDs(s.Ctx, -1, 10)
	s.ErrorIs(err, model.ErrInvalidArgument)

	_, err = s.Store.ListAccountIDs(s.Ctx, 0, 0)
	s.ErrorIs(err, model.ErrInvalidArgument)
}

func (s *AccountStoreSuite) TestConcurrentSavesOfDistinctAccounts() {
	const writers = 16
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.Store.SaveAccount(s.Ctx, Account(fmt.Sprintf("TEN-%d", i))))
		}()
	}
	wg.Wait()

	ids, err := s.Store.ListAccountIDs(s.Ctx, 0, 100)
	s.Require().NoError(err)
	s.Len(ids, writers)
}
