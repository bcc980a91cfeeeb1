package domain

// ResolutionResult is the outcome of classifying one requester against the
// block set. It lives only for the request that produced it.
type ResolutionResult struct {
	// Block is nil when the requester is not blocked.
	Block *BlockRecord

	// MatchedViaXFF is true when the match came from a forwarded-for hop
	// rather than the connecting address.
	MatchedViaXFF bool

	// MatchedIP is the candidate address the block covered. Empty for a
	// pure account match.
	MatchedIP string
}

// Blocked reports whether the resolution found an applicable block.
func (r *ResolutionResult) Blocked() bool {
	return r != nil && r.Block != nil
}
