// Package accounts implements the administrative account operations: reads, full
// writes, partial merges and deletes, each followed by live propagation.
package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/observability"
	"github.com/mcoot/echorelay/internal/services/profilesync"
	"github.com/mcoot/echorelay/internal/storage"
)

// Controller orchestrates account mutations. Writes to one identity are serialized
// and its pushes are sent in write order; different identities proceed independently.
type Controller struct {
	storage storage.AccountStore
	sync    *profilesync.Coordinator
	metrics *observability.Metrics
	locks   *keyedMutex
	logger  *slog.Logger
}

// NewController creates a new account Controller
func NewController(
	storage storage.AccountStore,
	sync *profilesync.Coordinator,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage: storage,
		sync:    sync,
		metrics: metrics,
		locks:   newKeyedMutex(),
		logger:  logger.With(slog.String("component", "accounts")),
	}
}

// List returns one page of account ids in insertion order
func (c *Controller) List(ctx context.Context, page model.Page) ([]model.XPlatformID, error) {
	return c.storage.ListAccountIDs(ctx, page.Offset(), page.Limit())
}

// Get returns the stored account
func (c *Controller) Get(ctx context.Context, id model.XPlatformID) (*model.Account, error) {
	return c.storage.GetAccount(ctx, id)
}

// Save stores a full account document, keyed by the identity embedded in it, and
// pushes the new profile to the account's connected peers
func (c *Controller) Save(ctx context.Context, doc document.Value) (*model.Account, error) {
	account, err := model.NewAccount(doc)
	if err != nil {
		c.recordWrite("save", err)
		return nil, err
	}

	unlock := c.locks.Lock(account.ID)
	defer unlock()

	if err := c.storage.SaveAccount(ctx, account); err != nil {
		c.recordWrite("save", err)
		return nil, err
	}
	c.recordWrite("save", nil)

	c.sync.ProfileUpdated(ctx, account)
	return account, nil
}

// Merge applies a partial document on top of the stored account. The merged
// document must still carry the account's identity.
func (c *Controller) Merge(ctx context.Context, id model.XPlatformID, patch document.Value) (*model.Account, error) {
	if patch.Kind() != document.KindObject {
		err := fmt.Errorf("%w: patch must be an object, got %s", model.ErrInvalidArgument, patch.Kind())
		c.recordWrite("merge", err)
		return nil, err
	}

	unlock := c.locks.Lock(id)
	defer unlock()

	existing, err := c.storage.GetAccount(ctx, id)
	if err != nil {
		c.recordWrite("merge", err)
		return nil, err
	}

	merged := document.Merge(existing.Document, patch)
	mergedID, err := model.DocumentIdentity(merged)
	if err != nil || mergedID != id {
		err = fmt.Errorf("%w: merged document no longer identifies %s", model.ErrIdentityMismatch, id)
		c.recordWrite("merge", err)
		return nil, err
	}

	account := &model.Account{ID: id, Document: merged}
	if err := c.storage.SaveAccount(ctx, account); err != nil {
		c.recordWrite("merge", err)
		return nil, err
	}
	c.recordWrite("merge", nil)

	c.sync.ProfileUpdated(ctx, account)
	return account, nil
}

// Delete removes the account, returning the record that was deleted, and
// disconnects any peers still logged in as it
func (c *Controller) Delete(ctx context.Context, id model.XPlatformID) (*model.Account, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	existing, err := c.storage.GetAccount(ctx, id)
	if err != nil {
		c.recordWrite("delete", err)
		return nil, err
	}
	if err := c.storage.DeleteAccount(ctx, id); err != nil {
		c.recordWrite("delete", err)
		return nil, err
	}
	c.recordWrite("delete", nil)

	c.sync.AccountDeleted(ctx, id)
	return existing, nil
}

func (c *Controller) recordWrite(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		c.logger.Debug("account write rejected", slog.String("op", op), slog.Any("error", err))
	}
	c.metrics.AccountWrites.WithLabelValues(op, result).Inc()
}
