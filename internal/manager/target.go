package manager

import (
	"context"
	"errors"
	"strings"

	"globalblock/internal/iprange"
	"globalblock/internal/lookup"
	"globalblock/internal/status"
)

// TargetKind classifies a validated target string.
type TargetKind int

const (
	TargetIP TargetKind = iota
	TargetRange
	TargetAccount
	TargetID
)

// Target is the validated, normalized form of a command target.
type Target struct {
	Kind TargetKind

	// Range holds the canonical bounds for IP and range targets.
	Range iprange.Range

	// AccountID is set for account targets.
	AccountID uint64

	// BlockID is set for #<id> targets.
	BlockID uint64

	// Display is the form shown back to the operator: the normalized
	// address or the canonical account name.
	Display string
}

// ValidateTarget performs the shared validation used by block, unblock,
// local overrides and the bulk tooling. Malformed addresses and unknown
// account names both come back as invalid-target, with a distinguishing
// parameter so the caller can phrase the failure correctly.
func (m *Manager) ValidateTarget(ctx context.Context, targetStr string) (Target, status.Status) {
	targetStr = strings.TrimSpace(targetStr)
	if targetStr == "" {
		return Target{}, status.Failure(status.CodeInvalidTarget, targetStr)
	}

	if id := lookup.ParseBlockIDTarget(targetStr); id != 0 {
		return Target{Kind: TargetID, BlockID: id, Display: targetStr}, status.OK(id)
	}

	if looksLikeAddress(targetStr) {
		r, err := iprange.Parse(targetStr)
		if err != nil {
			if errors.Is(err, iprange.ErrRangeTooWide) {
				return Target{}, status.Failure(status.CodeRangeTooWide, targetStr)
			}
			return Target{}, status.Failure(status.CodeInvalidTarget, targetStr, "ip")
		}
		kind := TargetIP
		if r.IsRange {
			kind = TargetRange
		}
		return Target{Kind: kind, Range: r, Display: r.Target}, status.OK(0, r.Target)
	}

	accountID, ok := m.ids.ResolveAccountID(ctx, targetStr)
	if !ok {
		return Target{}, status.Failure(status.CodeInvalidTarget, targetStr, "account")
	}
	display := targetStr
	if name, ok := m.ids.DisplayName(ctx, accountID); ok {
		display = name
	}
	return Target{Kind: TargetAccount, AccountID: accountID, Display: display}, status.OK(0, display)
}

// looksLikeAddress decides which validation path a target takes. Anything
// shaped like an address is held to address syntax; it never falls back to
// an account lookup, so a typo in an IP cannot resolve to a username.
func looksLikeAddress(s string) bool {
	if strings.Contains(s, ":") {
		return true
	}
	dots := strings.Count(s, ".")
	if dots == 0 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '/' {
			return false
		}
	}
	return true
}
