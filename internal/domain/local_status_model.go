package domain

import "time"

// LocalStatusOverride suppresses a global block on a single wiki. It is a
// dependent child of BlockRecord: deleting the parent cascades here.
type LocalStatusOverride struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	BlockID uint64 `gorm:"not null;uniqueIndex:idx_override_block_wiki,priority:1;index"`

	// WikiID names the wiki on which the block is disabled.
	WikiID string `gorm:"size:255;not null;uniqueIndex:idx_override_block_wiki,priority:2"`

	DisablingAccountID uint64 `gorm:"not null;default:0"`
	Reason             string `gorm:"size:512;not null;default:''"`

	// ExpiresAt caches the block's expiry at disable time so the sweeper can
	// collect orphaned overrides without joining on the parent.
	ExpiresAt *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (LocalStatusOverride) TableName() string {
	return "local_overrides"
}
