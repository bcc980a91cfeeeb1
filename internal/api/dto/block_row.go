package dto

import "time"

// BlockRow is one entry of the block listing. Target and Performer are
// already rendered for the requesting viewer: autoblock targets show as
// #<id> and suppressed performers as the placeholder name.
type BlockRow struct {
	ID                      uint64     `json:"id"`
	Target                  string     `json:"target"`
	TargetType              string     `json:"targetType"`
	Reason                  string     `json:"reason"`
	Performer               string     `json:"performer"`
	AnonOnly                bool       `json:"anonOnly"`
	AccountCreationDisabled bool       `json:"accountCreationDisabled"`
	AutoblockEnabled        bool       `json:"autoblockEnabled"`
	AutoblockCount          int64      `json:"autoblockCount,omitempty"`
	Country                 string     `json:"country,omitempty"`
	LocallyDisabled         bool       `json:"locallyDisabled"`
	CreatedAt               time.Time  `json:"createdAt"`
	ExpiresAt               *time.Time `json:"expiresAt"`
	Expiry                  string     `json:"expiry"`
}

// BlockPage wraps a listing page. NextBefore feeds the next request's
// "before" cursor; empty means the listing is exhausted.
type BlockPage struct {
	Blocks     []BlockRow `json:"blocks"`
	NextBefore string     `json:"nextBefore,omitempty"`
}
