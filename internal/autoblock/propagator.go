package autoblock

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/domain"
	"globalblock/internal/identity"
	"globalblock/internal/iprange"
	"globalblock/internal/status"
	"globalblock/internal/support"
)

// Propagator derives IP autoblocks from account-level blocks. All derived
// rows point at their parent and carry a short fixed expiry; they never
// spawn further autoblocks themselves.
type Propagator struct {
	store  *database.Store
	exempt *ExemptList
	policy config.Policy
	clock  support.Clock
}

func NewPropagator(store *database.Store, exempt *ExemptList, policy config.Policy, clock support.Clock) *Propagator {
	if clock == nil {
		clock = support.SystemClock()
	}
	return &Propagator{store: store, exempt: exempt, policy: policy, clock: clock}
}

// OnAccountAction is the per-edit trigger: when a blocked account acts from
// a new IP, an autoblock appears for it. Accounts without an active
// autoblock-enabled block are a cheap no-op.
func (p *Propagator) OnAccountAction(ctx context.Context, accountID uint64, ip string) (status.Status, error) {
	if accountID == 0 {
		return status.OK(0), nil
	}

	parent, err := p.store.ActiveBlockByAccountForUpdate(ctx, accountID, p.clock.Now())
	if err != nil {
		return status.Failure(status.CodeInternalError), err
	}
	if parent == nil || !parent.AutoblockEnabled {
		return status.OK(0), nil
	}

	st, _, err := p.EnsureAutoblock(ctx, parent, ip)
	return st, err
}

// EnsureAutoblock creates the autoblock for (parent, ip) unless one already
// exists. The returned bool reports whether a new row was written.
func (p *Propagator) EnsureAutoblock(ctx context.Context, parent *domain.BlockRecord, ip string) (status.Status, bool, error) {
	// Depth-1 invariant: an autoblock never begets another.
	if parent.IsAutoblock() {
		return status.OK(0), false, nil
	}

	r, err := iprange.Parse(ip)
	if err != nil || r.IsRange {
		return status.Failure(status.CodeInvalidTarget, ip), false, nil
	}

	if p.exempt != nil {
		if !p.exempt.Usable(ctx) {
			// Without exemption data a derived block could hit shared
			// infrastructure; refuse rather than guess.
			log.Warn("Autoblock refused, exemption lists unavailable", "ip", r.Target, "parent", parent.ID)
			return status.Failure(status.CodeExternalListUnavailable, r.Target), false, nil
		}
		if p.exempt.Contains(ctx, r.Target) {
			log.Info("Autoblock suppressed by exemption list", "ip", r.Target, "parent", parent.ID)
			return status.Status{Code: status.CodeAutoblockSuppressed, Params: []string{r.Target}}, false, nil
		}
	}

	now := p.clock.Now()

	existing, err := p.store.ActiveAutoblock(ctx, parent.ID, r.Target, now)
	if err != nil {
		return status.Failure(status.CodeInternalError), false, err
	}
	if existing != nil {
		return status.OK(existing.ID, r.Target), false, nil
	}

	// Fixed short lifetime, never outliving a temporary parent.
	expiresAt := now.Add(p.policy.AutoblockTTL)
	if parent.ExpiresAt != nil && parent.ExpiresAt.Before(expiresAt) {
		expiresAt = *parent.ExpiresAt
	}

	block := &domain.BlockRecord{
		TargetAddress:           r.Target,
		RangeStart:              r.StartHex,
		RangeEnd:                r.EndHex,
		Reason:                  fmt.Sprintf("Autoblocked: origin of edits by blocked account (parent block #%d)", parent.ID),
		ExpiresAt:               &expiresAt,
		PerformerAccountID:      parent.PerformerAccountID,
		PerformerOriginWiki:     parent.PerformerOriginWiki,
		AccountCreationDisabled: parent.AccountCreationDisabled,
		AutoblockParentID:       parent.ID,
	}

	if err := p.store.InsertBlock(ctx, block); err != nil {
		if errors.Is(err, database.ErrDuplicateTarget) {
			// Concurrent trigger for the same (ip, parent): the uniqueness
			// invariant held, and the autoblock exists. Success no-op.
			return status.OK(0, r.Target), false, nil
		}
		return status.Failure(status.CodeInternalError), false, err
	}

	log.Info("Autoblock created", "block_id", block.ID, "parent", parent.ID)
	return status.OK(block.ID, r.Target), true, nil
}

// RetroactivePass autoblocks the addresses the account edited from before
// it was blocked. The pass is capped to bound the fan-out of a single
// block command.
func (p *Propagator) RetroactivePass(ctx context.Context, parent *domain.BlockRecord, source identity.RecentIPSource) (int, error) {
	limit := p.policy.AutoblockRetroLimit
	if limit <= 0 || parent.TargetAccountID == 0 {
		return 0, nil
	}

	ips, err := source.RecentIPs(ctx, parent.TargetAccountID, limit)
	if err != nil {
		return 0, fmt.Errorf("recent IPs for account %d: %w", parent.TargetAccountID, err)
	}
	if len(ips) > limit {
		ips = ips[:limit]
	}

	created := 0
	for _, ip := range ips {
		st, isNew, err := p.EnsureAutoblock(ctx, parent, ip)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		} else if st.Code == status.CodeAutoblockSuppressed {
			log.Debug("Retroactive autoblock skipped", "ip", ip, "parent", parent.ID)
		} else if st.Code == status.CodeExternalListUnavailable {
			// Every remaining address would be refused the same way.
			break
		}
	}
	return created, nil
}
