package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/storage"
)

// Storage is an in-memory implementation of the account store
type Storage struct {
	mu sync.RWMutex

	accounts map[model.XPlatformID]*model.Account
	order    []model.XPlatformID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts: make(map[model.XPlatformID]*model.Account),
	}
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

func (s *Storage) GetAccount(ctx context.Context, id model.XPlatformID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; !exists {
		s.order = append(s.order, account.ID)
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.XPlatformID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return model.ErrAccountNotFound
	}
	delete(s.accounts, id)
	s.order = slices.DeleteFunc(s.order, func(existing model.XPlatformID) bool {
		return existing == id
	})
	return nil
}

func (s *Storage) ListAccountIDs(ctx context.Context, offset, limit int) ([]model.XPlatformID, error) {
	if err := model.ValidateWindow(offset, limit); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, end := model.Window(len(s.order), offset, limit)
	return slices.Clone(s.order[start:end]), nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}
