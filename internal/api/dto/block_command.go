package dto

// BlockCommand is the request body for placing or modifying a block.
// Expiry accepts a duration ("31h"), an RFC 3339 timestamp or one of the
// indefinite spellings ("never", "infinite").
type BlockCommand struct {
	Target               string `json:"target"`
	Reason               string `json:"reason"`
	Expiry               string `json:"expiry"`
	AnonOnly             bool   `json:"anonOnly"`
	AllowAccountCreation bool   `json:"allowAccountCreation"`
	EnableAutoblock      bool   `json:"enableAutoblock"`
	Modify               bool   `json:"modify"`
}

// UnblockCommand lifts a block. Target also accepts the #<id> form.
type UnblockCommand struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// LocalStatusCommand disables or re-enables a block on the local wiki.
type LocalStatusCommand struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// AutoblockTrigger reports one account action so derived IP blocks can be
// placed. Wikis call this on edit attempts by globally blocked accounts.
type AutoblockTrigger struct {
	AccountID uint64 `json:"accountId"`
	IP        string `json:"ip"`
}
