package lookup

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/domain"
	"globalblock/internal/identity"
	"globalblock/internal/iprange"
	"globalblock/internal/support"
)

// Engine resolves a requester into at most one applicable block. All
// collaborators arrive via the constructor; the engine holds no mutable
// state of its own.
type Engine struct {
	store  *database.Store
	ids    identity.Service
	policy config.Policy
	clock  support.Clock
}

func NewEngine(store *database.Store, ids identity.Service, policy config.Policy, clock support.Clock) *Engine {
	if clock == nil {
		clock = support.SystemClock()
	}
	return &Engine{store: store, ids: ids, policy: policy, clock: clock}
}

// GetBlockForRequester classifies the requester against the block set. The
// result is memoized on req, so repeated calls during one request never
// re-query the store.
func (e *Engine) GetBlockForRequester(ctx context.Context, req *Request) (*domain.ResolutionResult, error) {
	if cached, ok := req.cachedResult(); ok {
		return cached, nil
	}

	result, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	req.storeResult(result)
	return result, nil
}

func (e *Engine) resolve(ctx context.Context, req *Request) (*domain.ResolutionResult, error) {
	now := e.clock.Now()

	// Exemption always wins over any match.
	if !req.IsAnonymous() && e.ids.HasCapability(ctx, req.AccountID, identity.CapExempt) {
		return &domain.ResolutionResult{}, nil
	}

	// Account-targeted blocks apply independent of IP and take precedence
	// over address matches.
	if !req.IsAnonymous() {
		block, err := e.store.ActiveBlockByAccount(ctx, req.AccountID, now)
		if err != nil {
			return nil, err
		}
		if block != nil {
			return e.applyLocalStatus(ctx, &domain.ResolutionResult{Block: block})
		}
	}

	for _, candidate := range e.candidateIPs(req) {
		block, err := e.matchIP(ctx, req, candidate.ip, now)
		if err != nil {
			return nil, err
		}
		if block != nil {
			return e.applyLocalStatus(ctx, &domain.ResolutionResult{
				Block:         block,
				MatchedViaXFF: candidate.viaXFF,
				MatchedIP:     candidate.ip,
			})
		}
	}

	return &domain.ResolutionResult{}, nil
}

type candidateIP struct {
	ip     string
	viaXFF bool
}

// candidateIPs yields the connecting address first, then (only when the
// deployment enables it) each forwarded-for hop in header order. Malformed
// entries are dropped, never surfaced as an error to the requester.
func (e *Engine) candidateIPs(req *Request) []candidateIP {
	var candidates []candidateIP
	if iprange.IsValidIP(req.IP) {
		candidates = append(candidates, candidateIP{ip: strings.TrimSpace(req.IP)})
	}
	if !e.policy.XFFLookup {
		return candidates
	}
	for _, hop := range req.XFF {
		hop = strings.TrimSpace(hop)
		if hop == "" || hop == req.IP {
			continue
		}
		if !iprange.IsValidIP(hop) {
			continue
		}
		candidates = append(candidates, candidateIP{ip: hop, viaXFF: true})
	}
	return candidates
}

// matchIP returns the first applicable block covering ip, already filtered
// by the requester's blocking scope, or nil.
func (e *Engine) matchIP(ctx context.Context, req *Request, ip string, now time.Time) (*domain.BlockRecord, error) {
	hexIP, err := iprange.IPToHex(ip)
	if err != nil {
		return nil, nil
	}

	blocks, err := e.store.BlocksCovering(ctx, hexIP, now)
	if err != nil {
		return nil, err
	}

	for i := range blocks {
		block := &blocks[i]
		if !e.scopeMatches(block, req) {
			continue
		}
		if block.IsAutoblock() {
			ok, err := e.parentStillActive(ctx, block.AutoblockParentID, now)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		return block, nil
	}
	return nil, nil
}

// scopeMatches applies the anon-only rule: such blocks never cover
// authenticated regular accounts, and cover temporary accounts only when
// policy says so.
func (e *Engine) scopeMatches(block *domain.BlockRecord, req *Request) bool {
	if !block.AnonOnly {
		return true
	}
	if req.IsAnonymous() {
		return true
	}
	return req.IsTemporary && e.policy.AnonOnlyCoversTemp
}

// parentStillActive guards against orphaned autoblocks whose parent was
// removed or expired by other means.
func (e *Engine) parentStillActive(ctx context.Context, parentID uint64, now time.Time) (bool, error) {
	parent, err := e.store.BlockByID(ctx, parentID)
	if err != nil {
		return false, err
	}
	return parent != nil && !parent.IsExpired(now), nil
}

// applyLocalStatus demotes a match to not-blocked when this wiki disabled
// the block. The global record is untouched either way.
func (e *Engine) applyLocalStatus(ctx context.Context, result *domain.ResolutionResult) (*domain.ResolutionResult, error) {
	override, err := e.store.GetOverride(ctx, result.Block.ID, e.policy.LocalWikiID)
	if err != nil {
		return nil, err
	}
	if override != nil {
		log.Debug("Block locally disabled", "block_id", result.Block.ID, "wiki", e.policy.LocalWikiID)
		return &domain.ResolutionResult{}, nil
	}
	return result, nil
}

// ParseBlockIDTarget recognizes the literal #<digits> form that admin
// tooling uses to address blocks, autoblocks in particular since their IP
// is never displayed. Returns 0 for anything else.
func ParseBlockIDTarget(target string) uint64 {
	rest, ok := strings.CutPrefix(strings.TrimSpace(target), "#")
	if !ok || rest == "" {
		return 0
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
