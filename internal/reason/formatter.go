package reason

import (
	"context"
	"fmt"
	"strings"

	"globalblock/internal/domain"
	"globalblock/internal/identity"
)

// SuppressedAccount replaces account names the viewer is not allowed to
// see. Suppression gates display only; the block itself applies regardless.
const SuppressedAccount = "[account suppressed]"

// Formatter renders human-readable text for matched blocks and listings.
// It is the only component that turns ids into names, so the visibility
// rule lives here and nowhere else.
type Formatter struct {
	ids identity.Service
	dir identity.Directory
}

func NewFormatter(ids identity.Service, dir identity.Directory) *Formatter {
	return &Formatter{ids: ids, dir: dir}
}

// TargetForViewer renders a block's target. Autoblock targets are never
// shown; they are addressed by parent-linked id instead. Account targets
// honor suppression against the viewer's capabilities.
func (f *Formatter) TargetForViewer(ctx context.Context, block *domain.BlockRecord, viewerID uint64) string {
	if block.IsAutoblock() {
		return block.IDTarget()
	}
	if block.TargetAccountID != 0 {
		return f.accountName(ctx, block.TargetAccountID, viewerID)
	}
	return block.TargetAddress
}

// PerformerForViewer renders who placed the block and from where, e.g.
// "AdminUser@Meta-Wiki".
func (f *Formatter) PerformerForViewer(ctx context.Context, block *domain.BlockRecord, viewerID uint64) string {
	name := f.accountName(ctx, block.PerformerAccountID, viewerID)
	wiki := f.dir.WikiDisplayName(ctx, block.PerformerOriginWiki)
	if wiki == "" {
		return name
	}
	return name + "@" + wiki
}

// BlockMessage renders the denial text shown to a blocked requester.
func (f *Formatter) BlockMessage(ctx context.Context, result *domain.ResolutionResult, viewerID uint64) string {
	if !result.Blocked() {
		return ""
	}
	block := result.Block

	var b strings.Builder
	switch {
	case result.MatchedIP != "" && result.MatchedIP != block.TargetAddress:
		fmt.Fprintf(&b, "The IP address %s is covered by global block %s on %s",
			result.MatchedIP, block.IDTarget(), f.TargetForViewer(ctx, block, viewerID))
	case result.MatchedIP != "":
		fmt.Fprintf(&b, "The IP address %s is globally blocked (%s)",
			result.MatchedIP, block.IDTarget())
	default:
		fmt.Fprintf(&b, "The account %s is globally blocked (%s)",
			f.TargetForViewer(ctx, block, viewerID), block.IDTarget())
	}

	fmt.Fprintf(&b, " by %s.", f.PerformerForViewer(ctx, block, viewerID))
	if reason := strings.TrimSpace(block.Reason); reason != "" {
		fmt.Fprintf(&b, " Reason: %s.", reason)
	}
	if block.IsIndefinite() {
		b.WriteString(" This block does not expire.")
	} else {
		fmt.Fprintf(&b, " Expiry: %s.", block.ExpiresAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return b.String()
}

func (f *Formatter) accountName(ctx context.Context, accountID, viewerID uint64) string {
	if accountID == 0 {
		return "(unknown)"
	}
	if f.ids.IsHidden(ctx, accountID) && !f.ids.HasCapability(ctx, viewerID, identity.CapViewHidden) {
		return SuppressedAccount
	}
	if name, ok := f.ids.DisplayName(ctx, accountID); ok {
		return name
	}
	return fmt.Sprintf("account #%d", accountID)
}
