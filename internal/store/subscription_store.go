package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polarsync_backend/internal/model"
)

// SubscriptionStore is the single source of truth for mirrored subscription
// state. Both writers (webhook receiver and the user-initiated cancel flow)
// converge here; per-key atomicity of Upsert is the whole concurrency
// contract, there is no locking above it.
type SubscriptionStore interface {
	// Upsert writes the full row keyed by the provider subscription id.
	// Last writer by arrival order wins: no sequence or timestamp comparison
	// is made, so an older redelivered event can overwrite newer state. Polar
	// delivers per-subscription events in order, which makes this acceptable.
	Upsert(sub *model.BillingSubscription) error

	// CurrentForUser returns the user's newest row by updated_at, or
	// (nil, nil) when the user has no subscription rows at all.
	CurrentForUser(userID string) (*model.BillingSubscription, error)

	// GetByID returns the row for one provider subscription id, or (nil, nil).
	GetByID(id string) (*model.BillingSubscription, error)
}

type gormSubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) SubscriptionStore {
	return &gormSubscriptionStore{db: db}
}

func (s *gormSubscriptionStore) Upsert(sub *model.BillingSubscription) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(sub).Error
}

func (s *gormSubscriptionStore) CurrentForUser(userID string) (*model.BillingSubscription, error) {
	var sub model.BillingSubscription
	err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormSubscriptionStore) GetByID(id string) (*model.BillingSubscription, error) {
	var sub model.BillingSubscription
	err := s.db.First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
