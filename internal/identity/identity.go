package identity

import "context"

// Capability names checked by the block engine. The permission system
// behind Service owns their semantics; the engine only asks yes/no.
const (
	// CapExempt excludes an account from IP-based blocks entirely.
	CapExempt = "ipblock-exempt"

	// CapManageBlocks allows placing, modifying and removing global blocks.
	CapManageBlocks = "globalblock"

	// CapLocalOverride allows disabling or re-enabling a global block on
	// the local wiki.
	CapLocalOverride = "globalblock-whitelist"

	// CapViewHidden allows seeing account names that were suppressed
	// federation-wide.
	CapViewHidden = "hideuser"
)

// Service is the identity and permission collaborator. Implementations wrap
// whatever account backend the deployment runs; the engine treats it as an
// opaque capability check plus a name/id mapping.
type Service interface {
	HasCapability(ctx context.Context, accountID uint64, capability string) bool

	// ResolveAccountID maps an account name to its stable cross-wiki id.
	ResolveAccountID(ctx context.Context, name string) (uint64, bool)

	// DisplayName maps a stable id back to a name visible to the caller.
	DisplayName(ctx context.Context, accountID uint64) (string, bool)

	// IsHidden reports whether the account was suppressed and must not be
	// named to viewers without CapViewHidden.
	IsHidden(ctx context.Context, accountID uint64) bool
}

// Directory is the federation membership collaborator.
type Directory interface {
	WikiDisplayName(ctx context.Context, wikiID string) string
}

// RecentIPSource supplies the addresses an account recently edited from,
// newest first. The autoblock retroactive pass consumes it with a hard cap.
type RecentIPSource interface {
	RecentIPs(ctx context.Context, accountID uint64, limit int) ([]string, error)
}

// Requester describes the identity attempting an action: an account id
// (0 for anonymous), the connecting IP and any forwarded-for hops.
type Requester struct {
	AccountID   uint64
	IsTemporary bool
	IP          string
	XFF         []string
}

// IsAnonymous reports whether the requester carries no account at all.
func (r Requester) IsAnonymous() bool {
	return r.AccountID == 0
}
