package domain

import (
	"strconv"
	"time"
)

// BlockRecord is a federation-wide block on an IP, an IP range or an
// account. Autoblocks are ordinary rows pointing back at their parent via
// AutoblockParentID.
type BlockRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// TargetAddress holds the normalized IP or CIDR string. Empty when the
	// target is an account.
	TargetAddress string `gorm:"size:255;not null;default:'';uniqueIndex:idx_block_target,priority:1"`

	// TargetAccountID is the stable cross-wiki account id; 0 means the
	// target is IP-based.
	TargetAccountID uint64 `gorm:"not null;default:0;uniqueIndex:idx_block_target,priority:2;index"`

	// RangeStart/RangeEnd are the fixed-width hexadecimal bounds of the
	// target. Equal for a single IP; empty for a pure account block until an
	// autoblock gives it an IP.
	RangeStart string `gorm:"size:36;not null;default:'';index"`
	RangeEnd   string `gorm:"size:36;not null;default:''"`

	Reason string `gorm:"size:512;not null;default:''"`

	// PerformerAccountID and PerformerOriginWiki identify who placed the
	// block and from where. The acting account may not exist on the wiki
	// that later renders the record.
	PerformerAccountID  uint64 `gorm:"not null;default:0"`
	PerformerOriginWiki string `gorm:"size:255;not null;default:''"`

	// AnonOnly restricts the block to unauthenticated (and, per policy,
	// temporary) accounts.
	AnonOnly bool `gorm:"not null;default:false"`

	// AccountCreationDisabled additionally blocks new-account signup from
	// the target.
	AccountCreationDisabled bool `gorm:"not null;default:false"`

	// AutoblockEnabled causes edits by a blocked account to spawn derived
	// IP blocks.
	AutoblockEnabled bool `gorm:"not null;default:false"`

	// AutoblockParentID is 0 for an ordinary block, otherwise the id of the
	// parent this autoblock was derived from. Never null: it participates in
	// the uniqueness guard.
	AutoblockParentID uint64 `gorm:"not null;default:0;uniqueIndex:idx_block_target,priority:3"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	// ExpiresAt is nil for an indefinite block.
	ExpiresAt *time.Time `gorm:"index"`
}

func (BlockRecord) TableName() string {
	return "blocks"
}

// IsAutoblock reports whether this row was derived from a parent block.
func (b *BlockRecord) IsAutoblock() bool {
	return b.AutoblockParentID != 0
}

// IsAccountTarget reports whether the block targets an account rather than
// an address.
func (b *BlockRecord) IsAccountTarget() bool {
	return b.TargetAccountID != 0 && !b.IsAutoblock()
}

// IsExpired reports whether the block has lapsed at the given instant.
// Expiry is evaluated here on every lookup; the purge sweeper only
// garbage-collects rows afterwards.
func (b *BlockRecord) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// IsIndefinite reports whether the block never expires on its own.
func (b *BlockRecord) IsIndefinite() bool {
	return b.ExpiresAt == nil
}

// DisplayTarget is the target as shown in listings. Autoblock targets stay
// hidden and are addressed as #<id> instead.
func (b *BlockRecord) DisplayTarget() string {
	if b.IsAutoblock() {
		return b.IDTarget()
	}
	return b.TargetAddress
}

// IDTarget returns the #<id> form accepted by admin tooling.
func (b *BlockRecord) IDTarget() string {
	return "#" + strconv.FormatUint(b.ID, 10)
}
