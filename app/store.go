package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStore is the single source of truth for who receives
// broadcasts. Every dispatch re-lists from the database; there is no
// cache to invalidate.
type SubscriptionStore struct {
	log *zap.Logger
	db  *gorm.DB
}

func NewSubscriptionStore(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB) *SubscriptionStore {
	return &SubscriptionStore{log, db}
}

// Put upserts the subscription keyed by its endpoint. Last write wins.
func (s *SubscriptionStore) Put(ctx context.Context, endpoint, payload string) (*Subscription, error) {
	sub := &Subscription{
		Key:      StorageKey(endpoint),
		Endpoint: endpoint,
		Payload:  payload,
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(sub)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionStore) ListAll(ctx context.Context) (Subscriptions, error) {
	var subs Subscriptions
	tx := s.db.WithContext(ctx).Find(&subs)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// Delete removes the record for key. Deleting an absent key is a no-op,
// which keeps pruning idempotent when two dispatches race on the same
// dead subscription.
func (s *SubscriptionStore) Delete(ctx context.Context, key string) error {
	tx := s.db.WithContext(ctx).Delete(&Subscription{}, "key = ?", key)
	return tx.Error
}
