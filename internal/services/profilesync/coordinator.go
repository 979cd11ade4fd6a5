// Package profilesync propagates committed account changes to the peers that are
// logged in as the affected account.
package profilesync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/observability"
	"github.com/mcoot/echorelay/internal/relay/peers"
)

// Config holds push behavior settings
type Config struct {
	// PushTimeout bounds delivery to a single peer
	PushTimeout time.Duration

	// Concurrency caps how many peers are pushed to at once
	Concurrency int
}

// DefaultConfig returns sensible defaults for profile sync
func DefaultConfig() Config {
	return Config{
		PushTimeout: 5 * time.Second,
		Concurrency: 16,
	}
}

// Report summarizes one propagation. Failures are informational; the write that
// triggered the propagation has already committed.
type Report struct {
	Targeted  int
	Delivered int
	Failed    int
	Err       error
}

// Coordinator pushes profile changes to connected peers
type Coordinator struct {
	directory *peers.Directory
	metrics   *observability.Metrics
	cfg       Config
	logger    *slog.Logger
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(directory *peers.Directory, metrics *observability.Metrics, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultConfig().PushTimeout
	}
	return &Coordinator{
		directory: directory,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "profile-sync")),
	}
}

// ProfileUpdated notifies every peer logged in as the account that its profile
// changed, sending the new profile followed by a requirement-cleared event. Peers
// are pushed to independently; a slow or dead peer does not delay the others.
func (c *Coordinator) ProfileUpdated(ctx context.Context, account *model.Account) Report {
	targets := c.directory.FindByIdentity(account.ID)
	report := Report{Targeted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	updated, err := model.NewEnvelope(model.EventProfileUpdated, "", model.ProfileUpdatedPayload{
		UserID:  account.ID,
		Profile: account.Profile(),
	})
	if err != nil {
		report.Failed = len(targets)
		report.Err = err
		return report
	}
	cleared, err := model.NewEnvelope(model.EventRequirementCleared, "", nil)
	if err != nil {
		report.Failed = len(targets)
		report.Err = err
		return report
	}

	// Pushes outlive the caller's request; the write is already durable
	pushCtx := context.WithoutCancel(ctx)

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(c.cfg.Concurrency)

	for _, peer := range targets {
		g.Go(func() error {
			err := c.pushToPeer(pushCtx, peer, updated, cleared)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				errs = multierr.Append(errs, err)
				c.metrics.PeerPushes.WithLabelValues("failed").Inc()
				c.logger.Warn("failed to push profile to peer",
					slog.String("user_id", account.ID.String()),
					slog.String("peer_id", peer.ID().String()),
					slog.Any("error", err))
				return nil
			}
			report.Delivered++
			c.metrics.PeerPushes.WithLabelValues("delivered").Inc()
			return nil
		})
	}
	_ = g.Wait()

	report.Err = errs
	c.logger.Info("profile update propagated",
		slog.String("user_id", account.ID.String()),
		slog.Int("targeted", report.Targeted),
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed))
	return report
}

func (c *Coordinator) pushToPeer(ctx context.Context, peer *peers.Peer, envs ...model.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
	defer cancel()

	for _, env := range envs {
		if err := c.directory.Push(ctx, peer, env); err != nil {
			return err
		}
	}
	return nil
}

// AccountDeleted disconnects every peer logged in as the deleted account and
// returns how many were disconnected
func (c *Coordinator) AccountDeleted(ctx context.Context, id model.XPlatformID) int {
	return c.directory.DisconnectIdentity(id)
}
