package manager

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"globalblock/internal/autoblock"
	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/domain"
	"globalblock/internal/identity"
	"globalblock/internal/status"
	"globalblock/internal/support"
)

// Options modify a block command. The zero value places a hard block that
// also disables account creation.
type Options struct {
	// AnonOnly limits the block to unauthenticated and temporary accounts.
	// Only meaningful for IP and range targets; on an account target the
	// flag is cleared, an account block always binds the account itself.
	AnonOnly bool

	// AllowAccountCreation leaves signup open from the target.
	AllowAccountCreation bool

	// EnableAutoblock derives IP blocks from an account target's edits.
	EnableAutoblock bool

	// Modify updates an existing block in place, keeping its id so log
	// entries and local overrides stay attached.
	Modify bool
}

// Performer identifies who issued a command and from which wiki.
type Performer struct {
	AccountID  uint64
	OriginWiki string
}

// Manager validates and persists block commands. It owns the uniqueness
// and range-size invariants; the store's unique index backs it up against
// races it cannot see.
type Manager struct {
	store      *database.Store
	ids        identity.Service
	propagator *autoblock.Propagator
	recentIPs  identity.RecentIPSource
	policy     config.Policy
	clock      support.Clock
}

func New(store *database.Store, ids identity.Service, propagator *autoblock.Propagator, recentIPs identity.RecentIPSource, policy config.Policy, clock support.Clock) *Manager {
	if clock == nil {
		clock = support.SystemClock()
	}
	return &Manager{
		store:      store,
		ids:        ids,
		propagator: propagator,
		recentIPs:  recentIPs,
		policy:     policy,
		clock:      clock,
	}
}

// Block places or (with Modify) rewrites a global block. Validation happens
// before any write; a lost race against a concurrent identical command is
// reported, never swallowed.
func (m *Manager) Block(ctx context.Context, targetStr, reason string, expiresAt *time.Time, performer Performer, opts Options) (status.Status, error) {
	target, st := m.ValidateTarget(ctx, targetStr)
	if !st.Succeeded() {
		return st, nil
	}
	if target.Kind == TargetID {
		// Blocks are placed on addresses or accounts, never on block ids.
		return status.Failure(status.CodeInvalidTarget, targetStr), nil
	}

	if target.Kind == TargetAccount {
		// The anon-only scope only narrows address matches; the account
		// path never consults it.
		opts.AnonOnly = false
	}

	m.sweep(ctx)

	now := m.clock.Now()
	existing, err := m.findActiveTarget(ctx, target, now)
	if err != nil {
		return status.Failure(status.CodeInternalError), err
	}

	if existing != nil && !opts.Modify {
		return status.Failure(status.CodeAlreadyBlocked, target.Display), nil
	}

	if existing != nil {
		existing.Reason = reason
		existing.ExpiresAt = expiresAt
		existing.AnonOnly = opts.AnonOnly
		existing.AccountCreationDisabled = !opts.AllowAccountCreation
		existing.AutoblockEnabled = opts.EnableAutoblock && target.Kind == TargetAccount
		existing.PerformerAccountID = performer.AccountID
		existing.PerformerOriginWiki = performer.OriginWiki

		if err := m.store.UpdateBlock(ctx, existing); err != nil {
			if errors.Is(err, database.ErrNoRowsAffected) {
				return status.Failure(status.CodeRaceLost, target.Display), nil
			}
			return status.Failure(status.CodeInternalError), err
		}
		m.runRetroactivePass(ctx, existing)
		return status.OK(existing.ID, target.Display), nil
	}

	block := &domain.BlockRecord{
		TargetAddress:           target.Range.Target,
		TargetAccountID:         target.AccountID,
		RangeStart:              target.Range.StartHex,
		RangeEnd:                target.Range.EndHex,
		Reason:                  reason,
		ExpiresAt:               expiresAt,
		PerformerAccountID:      performer.AccountID,
		PerformerOriginWiki:     performer.OriginWiki,
		AnonOnly:                opts.AnonOnly,
		AccountCreationDisabled: !opts.AllowAccountCreation,
		AutoblockEnabled:        opts.EnableAutoblock && target.Kind == TargetAccount,
	}

	if err := m.store.InsertBlock(ctx, block); err != nil {
		if errors.Is(err, database.ErrDuplicateTarget) {
			// The unique index caught a concurrent identical insert after
			// our existence check passed.
			return status.Failure(status.CodeRaceLost, target.Display), nil
		}
		return status.Failure(status.CodeInternalError), err
	}

	m.runRetroactivePass(ctx, block)
	return status.OK(block.ID, target.Display), nil
}

// Unblock removes an active block. Local overrides and derived autoblocks
// go with it.
func (m *Manager) Unblock(ctx context.Context, targetStr, reason string, performer Performer) (status.Status, error) {
	m.sweep(ctx)

	block, st, err := m.ResolveActiveBlock(ctx, targetStr)
	if err != nil {
		return status.Failure(status.CodeInternalError), err
	}
	if !st.Succeeded() {
		return st, nil
	}

	display := block.DisplayTarget()
	if err := m.store.DeleteBlock(ctx, block.ID); err != nil {
		if errors.Is(err, database.ErrNoRowsAffected) {
			return status.Failure(status.CodeRaceLost, display), nil
		}
		return status.Failure(status.CodeInternalError), err
	}

	log.Info("Global block removed",
		"block_id", block.ID,
		"target", display,
		"performer", performer.AccountID,
		"reason", reason,
	)
	return status.OK(block.ID, display), nil
}

// ResolveActiveBlock maps a target string (IP, range, account name or #id)
// to its active block row. Used by unblock and by the local status manager.
func (m *Manager) ResolveActiveBlock(ctx context.Context, targetStr string) (*domain.BlockRecord, status.Status, error) {
	target, st := m.ValidateTarget(ctx, targetStr)
	if !st.Succeeded() {
		return nil, st, nil
	}

	now := m.clock.Now()

	if target.Kind == TargetID {
		block, err := m.store.BlockByID(ctx, target.BlockID)
		if err != nil {
			return nil, status.Failure(status.CodeInternalError), err
		}
		if block == nil || block.IsExpired(now) {
			return nil, status.Failure(status.CodeNotBlocked, targetStr), nil
		}
		return block, status.OK(block.ID), nil
	}

	block, err := m.findActiveTarget(ctx, target, now)
	if err != nil {
		return nil, status.Failure(status.CodeInternalError), err
	}
	if block == nil {
		return nil, status.Failure(status.CodeNotBlocked, target.Display), nil
	}
	return block, status.OK(block.ID), nil
}

func (m *Manager) findActiveTarget(ctx context.Context, target Target, now time.Time) (*domain.BlockRecord, error) {
	if target.Kind == TargetAccount {
		return m.store.ActiveBlockByAccountForUpdate(ctx, target.AccountID, now)
	}
	return m.store.ActiveBlockByAddress(ctx, target.Range.Target, now)
}

// sweep purges expired rows so the existence checks below count only live
// ones. Sweep failures are logged and retried on the next write; they never
// block the command that triggered them.
func (m *Manager) sweep(ctx context.Context) {
	outcome, err := m.store.PurgeExpired(ctx, m.clock.Now())
	if err != nil {
		log.Warn("Opportunistic purge failed", "error", err)
		return
	}
	if outcome.Blocks > 0 || outcome.Overrides > 0 {
		log.Debug("Purged expired rows", "blocks", outcome.Blocks, "overrides", outcome.Overrides)
	}
}

func (m *Manager) runRetroactivePass(ctx context.Context, block *domain.BlockRecord) {
	if m.propagator == nil || m.recentIPs == nil {
		return
	}
	if !block.AutoblockEnabled || block.TargetAccountID == 0 {
		return
	}
	created, err := m.propagator.RetroactivePass(ctx, block, m.recentIPs)
	if err != nil {
		log.Warn("Retroactive autoblock pass failed", "block_id", block.ID, "error", err)
		return
	}
	if created > 0 {
		log.Info("Retroactive autoblocks created", "block_id", block.ID, "count", created)
	}
}
