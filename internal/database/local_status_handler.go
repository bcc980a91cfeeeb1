package database

import (
	"context"
	"errors"

	"globalblock/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertOverride records (or refreshes) the local disable of a block on one
// wiki. Keyed by (block, wiki); repeated disables update reason and cached
// expiry in place.
func (s *Store) UpsertOverride(ctx context.Context, override *domain.LocalStatusOverride) error {
	return s.writer(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "block_id"}, {Name: "wiki_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"disabling_account_id", "reason", "expires_at",
		}),
	}).Create(override).Error
}

// DeleteOverride removes the local disable of a block on one wiki. The
// returned count lets callers tell "re-enabled" from "was never disabled".
func (s *Store) DeleteOverride(ctx context.Context, blockID uint64, wikiID string) (int64, error) {
	res := s.writer(ctx).
		Where("block_id = ? AND wiki_id = ?", blockID, wikiID).
		Delete(&domain.LocalStatusOverride{})
	return res.RowsAffected, res.Error
}

// GetOverride returns the override for (block, wiki), or nil when the block
// is not locally disabled there.
func (s *Store) GetOverride(ctx context.Context, blockID uint64, wikiID string) (*domain.LocalStatusOverride, error) {
	var override domain.LocalStatusOverride
	err := s.reader(ctx).
		Where("block_id = ? AND wiki_id = ?", blockID, wikiID).
		Take(&override).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &override, nil
}
