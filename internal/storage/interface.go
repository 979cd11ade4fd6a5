package storage

import (
	"context"

	"github.com/mcoot/echorelay/internal/model"
)

// AccountStore defines durable persistence for account records.
// Implementations must give read-your-writes consistency and keep accounts in
// insertion order for listing; overwriting an account keeps its original position.
type AccountStore interface {
	GetAccount(ctx context.Context, id model.XPlatformID) (*model.Account, error)
	SaveAccount(ctx context.Context, account *model.Account) error
	DeleteAccount(ctx context.Context, id model.XPlatformID) error
	ListAccountIDs(ctx context.Context, offset, limit int) ([]model.XPlatformID, error)

	// Close releases any connections held by the store
	Close() error
}
