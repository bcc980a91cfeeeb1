package lookup

import "globalblock/internal/domain"

// Rights a block can withhold. The table below decides applicability; no
// subtype dispatch is involved.
const (
	RightEdit          = "edit"
	RightCreateAccount = "createaccount"
)

var rightPolicies = map[string]func(*domain.BlockRecord) bool{
	RightEdit:          func(*domain.BlockRecord) bool { return true },
	RightCreateAccount: func(b *domain.BlockRecord) bool { return b.AccountCreationDisabled },
}

// AppliesToRight reports whether a matched block withholds the named right.
// Unknown rights are not blocked.
func AppliesToRight(block *domain.BlockRecord, right string) bool {
	if block == nil {
		return false
	}
	policy, ok := rightPolicies[right]
	return ok && policy(block)
}
