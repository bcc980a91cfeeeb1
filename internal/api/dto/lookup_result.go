package dto

// LookupResult reports whether a requester is blocked and, if so, by what.
// Message is the rendered block notice for the viewer; Target and Performer
// are redacted the same way listings are.
type LookupResult struct {
	Blocked       bool   `json:"blocked"`
	BlockID       uint64 `json:"blockId,omitempty"`
	Target        string `json:"target,omitempty"`
	Performer     string `json:"performer,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Expiry        string `json:"expiry,omitempty"`
	AnonOnly      bool   `json:"anonOnly,omitempty"`
	MatchedViaXFF bool   `json:"matchedViaXff,omitempty"`
	MatchedIP     string `json:"matchedIp,omitempty"`
	Message       string `json:"message,omitempty"`
}
