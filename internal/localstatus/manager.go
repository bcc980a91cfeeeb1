package localstatus

import (
	"context"

	"github.com/charmbracelet/log"

	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/domain"
	"globalblock/internal/status"
)

// ParamNoPriorOverride marks a locally-enable command that found nothing to
// remove. The command still succeeds; the UI may phrase it differently.
const ParamNoPriorOverride = "no-prior-override"

// BlockResolver maps a target string to its active block. The block manager
// implements it; the indirection keeps this package free of validation
// logic.
type BlockResolver interface {
	ResolveActiveBlock(ctx context.Context, target string) (*domain.BlockRecord, status.Status, error)
}

// Manager owns the per-wiki opt-out of global blocks. Overrides affect only
// the wiki this process serves; the global record stays untouched.
type Manager struct {
	store    *database.Store
	resolver BlockResolver
	policy   config.Policy
}

func New(store *database.Store, resolver BlockResolver, policy config.Policy) *Manager {
	return &Manager{store: store, resolver: resolver, policy: policy}
}

// LocallyDisableBlock suppresses an existing global block on this wiki. The
// block's current expiry is cached on the override so the sweeper can
// collect it independently.
func (m *Manager) LocallyDisableBlock(ctx context.Context, target, reason string, performerAccountID uint64) (status.Status, error) {
	block, st, err := m.resolver.ResolveActiveBlock(ctx, target)
	if err != nil {
		return st, err
	}
	if !st.Succeeded() {
		return st, nil
	}

	override := &domain.LocalStatusOverride{
		BlockID:            block.ID,
		WikiID:             m.policy.LocalWikiID,
		DisablingAccountID: performerAccountID,
		Reason:             reason,
		ExpiresAt:          block.ExpiresAt,
	}
	if err := m.store.UpsertOverride(ctx, override); err != nil {
		return status.Failure(status.CodeInternalError), err
	}

	log.Info("Global block locally disabled",
		"block_id", block.ID,
		"wiki", m.policy.LocalWikiID,
		"performer", performerAccountID,
	)
	return status.OK(block.ID, block.DisplayTarget()), nil
}

// LocallyEnableBlock removes this wiki's override. Re-enabling a block that
// was never disabled succeeds, flagged with ParamNoPriorOverride.
func (m *Manager) LocallyEnableBlock(ctx context.Context, target, reason string, performerAccountID uint64) (status.Status, error) {
	block, st, err := m.resolver.ResolveActiveBlock(ctx, target)
	if err != nil {
		return st, err
	}
	if !st.Succeeded() {
		return st, nil
	}

	removed, err := m.store.DeleteOverride(ctx, block.ID, m.policy.LocalWikiID)
	if err != nil {
		return status.Failure(status.CodeInternalError), err
	}
	if removed == 0 {
		return status.OK(block.ID, block.DisplayTarget(), ParamNoPriorOverride), nil
	}

	log.Info("Global block locally re-enabled",
		"block_id", block.ID,
		"wiki", m.policy.LocalWikiID,
		"performer", performerAccountID,
	)
	return status.OK(block.ID, block.DisplayTarget()), nil
}

// GetLocalStatus returns this wiki's override for a block id, or nil when
// the block is fully in effect here.
func (m *Manager) GetLocalStatus(ctx context.Context, blockID uint64) (*domain.LocalStatusOverride, error) {
	return m.store.GetOverride(ctx, blockID, m.policy.LocalWikiID)
}
