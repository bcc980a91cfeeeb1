package status

import (
	"fmt"
	"strings"
)

// Code is the machine-readable outcome of a block command. The HTTP and CLI
// layers translate codes into user-facing text; the engine itself never
// renders messages.
type Code string

const (
	CodeOK Code = "ok"

	// CodeInvalidTarget means the target string is neither a valid IP/CIDR
	// nor a resolvable account name.
	CodeInvalidTarget Code = "invalid-target"

	// CodeRangeTooWide means the CIDR crosses the /16 prefix boundary.
	CodeRangeTooWide Code = "range-too-wide"

	CodeAlreadyBlocked Code = "already-blocked"
	CodeNotBlocked     Code = "not-blocked"

	// CodeRaceLost means a write affected zero rows because a concurrent
	// conflicting write got there first.
	CodeRaceLost Code = "race-lost"

	// CodeAutoblockSuppressed records that a candidate autoblock IP sits on
	// the never-autoblock exemption list. It is a no-op, not a failure.
	CodeAutoblockSuppressed Code = "autoblock-suppressed"

	CodeExternalListUnavailable Code = "external-list-unavailable"

	CodeInternalError Code = "internal-error"
)

// Status is the structured result of a command operation. Params carry the
// human parameters (target names, expiries) for message formatting.
type Status struct {
	Code    Code     `json:"code"`
	BlockID uint64   `json:"block_id,omitempty"`
	Params  []string `json:"params,omitempty"`
}

func OK(blockID uint64, params ...string) Status {
	return Status{Code: CodeOK, BlockID: blockID, Params: params}
}

func Failure(code Code, params ...string) Status {
	return Status{Code: code, Params: params}
}

func (s Status) Succeeded() bool {
	return s.Code == CodeOK || s.Code == CodeAutoblockSuppressed
}

// Err adapts a failed Status into an error for callers that only care
// whether the operation went through.
func (s Status) Err() error {
	if s.Succeeded() {
		return nil
	}
	if len(s.Params) == 0 {
		return fmt.Errorf("block operation failed: %s", s.Code)
	}
	return fmt.Errorf("block operation failed: %s (%s)", s.Code, strings.Join(s.Params, ", "))
}
