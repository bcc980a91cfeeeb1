package database

import (
	"context"
	"time"

	"globalblock/internal/domain"

	"gorm.io/gorm"
)

// PurgeOutcome reports what a sweep removed.
type PurgeOutcome struct {
	Blocks    int64
	Overrides int64
}

// PurgeExpired deletes block rows whose expiry has passed, cascading their
// local overrides, and separately collects overrides whose cached expiry
// lapsed even if the parent row is already gone. It runs opportunistically
// before row-count-sensitive writes, so the no-op case must stay cheap.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (PurgeOutcome, error) {
	var outcome PurgeOutcome

	err := s.writer(ctx).Transaction(func(tx *gorm.DB) error {
		var expiredIDs []uint64
		if err := tx.Model(&domain.BlockRecord{}).
			Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Pluck("id", &expiredIDs).Error; err != nil {
			return err
		}

		if len(expiredIDs) > 0 {
			res := tx.Where("block_id IN ?", expiredIDs).
				Delete(&domain.LocalStatusOverride{})
			if res.Error != nil {
				return res.Error
			}
			outcome.Overrides += res.RowsAffected

			res = tx.Where("id IN ?", expiredIDs).Delete(&domain.BlockRecord{})
			if res.Error != nil {
				return res.Error
			}
			outcome.Blocks = res.RowsAffected
		}

		// Orphaned overrides: the parent may have been unblocked or purged
		// elsewhere while the override's cached expiry kept it alive.
		res := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Delete(&domain.LocalStatusOverride{})
		if res.Error != nil {
			return res.Error
		}
		outcome.Overrides += res.RowsAffected

		return nil
	})
	if err != nil {
		return PurgeOutcome{}, err
	}
	return outcome, nil
}
