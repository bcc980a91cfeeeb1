package reason

import (
	"context"
	"strings"
	"testing"
	"time"

	"globalblock/internal/domain"
	"globalblock/internal/identity"
)

func TestBlockMessageIPMatch(t *testing.T) {
	ids := identity.NewStaticService()
	ids.AddAccount(1, "MetaAdmin")
	ids.AddWiki("metawiki", "Meta-Wiki")
	f := NewFormatter(ids, ids)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	result := &domain.ResolutionResult{
		Block: &domain.BlockRecord{
			ID:                  42,
			TargetAddress:       "1.2.3.0/24",
			Reason:              "open proxy range",
			PerformerAccountID:  1,
			PerformerOriginWiki: "metawiki",
			ExpiresAt:           &expiry,
		},
		MatchedIP: "1.2.3.55",
	}

	msg := f.BlockMessage(context.Background(), result, 0)
	for _, want := range []string{"1.2.3.55", "1.2.3.0/24", "#42", "MetaAdmin@Meta-Wiki", "open proxy range", "2030-01-02"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestBlockMessageIndefinite(t *testing.T) {
	ids := identity.NewStaticService()
	ids.AddAccount(1, "MetaAdmin")
	f := NewFormatter(ids, ids)

	result := &domain.ResolutionResult{
		Block: &domain.BlockRecord{
			ID:                 7,
			TargetAddress:      "1.2.3.4",
			PerformerAccountID: 1,
		},
		MatchedIP: "1.2.3.4",
	}
	msg := f.BlockMessage(context.Background(), result, 0)
	if !strings.Contains(msg, "does not expire") {
		t.Errorf("indefinite block message: %q", msg)
	}
}

func TestVisibilityGatesDisplayOnly(t *testing.T) {
	ids := identity.NewStaticService()
	ids.AddAccount(5, "HiddenVandal")
	ids.AddAccount(9, "Oversighter", identity.CapViewHidden)
	ids.HideAccount(5)
	f := NewFormatter(ids, ids)
	ctx := context.Background()

	block := &domain.BlockRecord{ID: 11, TargetAccountID: 5}

	if got := f.TargetForViewer(ctx, block, 0); got != SuppressedAccount {
		t.Errorf("plain viewer sees %q, want suppression", got)
	}
	if got := f.TargetForViewer(ctx, block, 9); got != "HiddenVandal" {
		t.Errorf("privileged viewer sees %q", got)
	}
}

func TestAutoblockTargetNeverExposed(t *testing.T) {
	ids := identity.NewStaticService()
	f := NewFormatter(ids, ids)

	auto := &domain.BlockRecord{ID: 99, TargetAddress: "9.9.9.9", AutoblockParentID: 11}
	if got := f.TargetForViewer(context.Background(), auto, 0); got != "#99" {
		t.Errorf("autoblock target rendered as %q, want #99", got)
	}
}
