package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/storage"
)

// Storage is a Redis-backed implementation of the account store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

func (s *Storage) GetAccount(ctx context.Context, id model.XPlatformID) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}

	doc, err := document.Parse(data)
	if err != nil {
		return nil, corrupt("account "+id.String(), err)
	}
	return &model.Account{ID: id, Document: doc}, nil
}

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	data, err := account.Document.MarshalJSON()
	if err != nil {
		return err
	}

	// Every save draws a sequence number, but ZADD NX only records the first one,
	// so an overwritten account keeps its original position
	seq, err := s.client.Incr(ctx, accountSeqKey()).Result()
	if err != nil {
		return unavailable(err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, accountKey(account.ID), data, 0)
	pipe.ZAddNX(ctx, accountOrderKey(), redis.Z{Score: float64(seq), Member: account.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.XPlatformID) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, accountKey(id))
	pipe.ZRem(ctx, accountOrderKey(), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	if del.Val() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Storage) ListAccountIDs(ctx context.Context, offset, limit int) ([]model.XPlatformID, error) {
	if err := model.ValidateWindow(offset, limit); err != nil {
		return nil, err
	}

	stop := int64(model.WindowEnd(offset, limit)) - 1
	members, err := s.client.ZRange(ctx, accountOrderKey(), int64(offset), stop).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	ids := make([]model.XPlatformID, 0, len(members))
	for _, member := range members {
		id, err := model.ParseXPlatformID(member)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("account index entry %q", member), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", model.ErrCorruptRecord, what, err)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", model.ErrBackingStoreUnavailable, err)
}
