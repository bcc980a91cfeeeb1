package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"globalblock/internal/domain"
	"globalblock/internal/iprange"

	"gorm.io/gorm"
)

// ErrDuplicateTarget marks an insert that collided with the unique
// (target, parent) index. The index, not application logic, is the final
// guard against concurrent identical inserts.
var ErrDuplicateTarget = errors.New("database: active block already exists for target")

// Filter values accepted by ListBlocks.
const (
	TargetTypeIP      = "ip"
	TargetTypeRange   = "range"
	TargetTypeAccount = "account"

	ExpiryTemporary  = "temporary"
	ExpiryIndefinite = "indefinite"
)

// ListFilter narrows a block listing. Zero values mean "no restriction".
type ListFilter struct {
	TargetType   string
	ExpiryBucket string

	// Before paginates by creation timestamp, newest first.
	Before *time.Time
	Limit  int
}

func activeOnly(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("expires_at IS NULL OR expires_at > ?", now)
}

// InsertBlock writes a new block row. A collision with the uniqueness index
// comes back as ErrDuplicateTarget.
func (s *Store) InsertBlock(ctx context.Context, block *domain.BlockRecord) error {
	if err := s.writer(ctx).Create(block).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %q", ErrDuplicateTarget, block.TargetAddress)
		}
		return err
	}
	return nil
}

// UpdateBlock rewrites the mutable fields of an existing row in place,
// preserving its id. Zero affected rows means the row vanished underneath
// us and is reported as ErrNoRowsAffected.
func (s *Store) UpdateBlock(ctx context.Context, block *domain.BlockRecord) error {
	res := s.writer(ctx).Model(&domain.BlockRecord{}).
		Where("id = ?", block.ID).
		Updates(map[string]any{
			"reason":                    block.Reason,
			"expires_at":                block.ExpiresAt,
			"anon_only":                 block.AnonOnly,
			"account_creation_disabled": block.AccountCreationDisabled,
			"autoblock_enabled":         block.AutoblockEnabled,
			"performer_account_id":      block.PerformerAccountID,
			"performer_origin_wiki":     block.PerformerOriginWiki,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: block %d", ErrNoRowsAffected, block.ID)
	}
	return nil
}

// DeleteBlock removes a block row together with its dependents: local
// overrides and, for a parent block, any derived autoblocks.
func (s *Store) DeleteBlock(ctx context.Context, blockID uint64) error {
	return s.writer(ctx).Transaction(func(tx *gorm.DB) error {
		var childIDs []uint64
		if err := tx.Model(&domain.BlockRecord{}).
			Where("autoblock_parent_id = ?", blockID).
			Pluck("id", &childIDs).Error; err != nil {
			return err
		}

		affected := append(childIDs, blockID)
		if err := tx.Where("block_id IN ?", affected).
			Delete(&domain.LocalStatusOverride{}).Error; err != nil {
			return err
		}
		if len(childIDs) > 0 {
			if err := tx.Where("id IN ?", childIDs).
				Delete(&domain.BlockRecord{}).Error; err != nil {
				return err
			}
		}

		res := tx.Where("id = ?", blockID).Delete(&domain.BlockRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: block %d", ErrNoRowsAffected, blockID)
		}
		return nil
	})
}

// BlockByID fetches one row by id, expired or not. Admin tooling addresses
// autoblocks this way because their target is never displayed.
func (s *Store) BlockByID(ctx context.Context, blockID uint64) (*domain.BlockRecord, error) {
	var block domain.BlockRecord
	err := s.reader(ctx).Where("id = ?", blockID).Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// ActiveBlockByAddress returns the non-autoblock row for an exact address
// or range target, or nil.
func (s *Store) ActiveBlockByAddress(ctx context.Context, address string, now time.Time) (*domain.BlockRecord, error) {
	var block domain.BlockRecord
	err := activeOnly(s.writer(ctx), now).
		Where("target_address = ? AND autoblock_parent_id = 0", address).
		Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// ActiveBlockByAccount returns the account-targeted row for a stable
// account id, or nil.
func (s *Store) ActiveBlockByAccount(ctx context.Context, accountID uint64, now time.Time) (*domain.BlockRecord, error) {
	var block domain.BlockRecord
	err := activeOnly(s.reader(ctx), now).
		Where("target_account_id = ? AND autoblock_parent_id = 0", accountID).
		Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// ActiveBlockByAccountForUpdate is the primary-database variant of
// ActiveBlockByAccount, for check-then-insert paths that cannot tolerate
// replica lag.
func (s *Store) ActiveBlockByAccountForUpdate(ctx context.Context, accountID uint64, now time.Time) (*domain.BlockRecord, error) {
	var block domain.BlockRecord
	err := activeOnly(s.writer(ctx), now).
		Where("target_account_id = ? AND autoblock_parent_id = 0", accountID).
		Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// ActiveAutoblock returns the autoblock derived from parentID for the given
// address, or nil.
func (s *Store) ActiveAutoblock(ctx context.Context, parentID uint64, address string, now time.Time) (*domain.BlockRecord, error) {
	var block domain.BlockRecord
	err := activeOnly(s.writer(ctx), now).
		Where("autoblock_parent_id = ? AND target_address = ?", parentID, address).
		Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// BlocksCovering returns all active rows whose range contains the given
// hex-form address, narrowest range first. The /16 prefix bucket keeps the
// scan on the range_start index.
func (s *Store) BlocksCovering(ctx context.Context, hexIP string, now time.Time) ([]domain.BlockRecord, error) {
	bucket := iprange.PrefixBucket(hexIP)

	var blocks []domain.BlockRecord
	err := activeOnly(s.reader(ctx), now).
		Where("range_start LIKE ?", bucket+"%").
		Where("range_start <= ? AND range_end >= ?", hexIP, hexIP).
		Order("range_start DESC").
		Order("range_end ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ListBlocks pages through non-autoblock rows, newest first. Autoblocks are
// reachable only via ListAutoblocksByParent so their targets stay hidden.
func (s *Store) ListBlocks(ctx context.Context, filter ListFilter, now time.Time) ([]domain.BlockRecord, error) {
	q := activeOnly(s.reader(ctx), now).Where("autoblock_parent_id = 0")

	switch filter.TargetType {
	case TargetTypeIP:
		q = q.Where("target_account_id = 0 AND target_address NOT LIKE '%/%' AND target_address <> ''")
	case TargetTypeRange:
		q = q.Where("target_address LIKE '%/%'")
	case TargetTypeAccount:
		q = q.Where("target_account_id <> 0")
	}

	switch filter.ExpiryBucket {
	case ExpiryTemporary:
		q = q.Where("expires_at IS NOT NULL")
	case ExpiryIndefinite:
		q = q.Where("expires_at IS NULL")
	}

	if filter.Before != nil {
		q = q.Where("created_at < ?", *filter.Before)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var blocks []domain.BlockRecord
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

// ListAutoblocksByParent returns the active autoblocks derived from one
// parent block.
func (s *Store) ListAutoblocksByParent(ctx context.Context, parentID uint64, now time.Time) ([]domain.BlockRecord, error) {
	var blocks []domain.BlockRecord
	err := activeOnly(s.reader(ctx), now).
		Where("autoblock_parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// CountActiveAutoblocks reports how many live autoblocks a parent has.
func (s *Store) CountActiveAutoblocks(ctx context.Context, parentID uint64, now time.Time) (int64, error) {
	var count int64
	err := activeOnly(s.writer(ctx), now).
		Model(&domain.BlockRecord{}).
		Where("autoblock_parent_id = ?", parentID).
		Count(&count).Error
	return count, err
}
