package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"globalblock/internal/domain"
	"globalblock/internal/iprange"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStoreTestDB(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.BlockRecord{},
		&domain.LocalStatusOverride{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	return NewStore(db, nil)
}

func mustRange(t *testing.T, target string) iprange.Range {
	t.Helper()
	r, err := iprange.Parse(target)
	if err != nil {
		t.Fatalf("parse %q: %v", target, err)
	}
	return r
}

func blockFor(t *testing.T, target string, expiresAt *time.Time) *domain.BlockRecord {
	t.Helper()
	r := mustRange(t, target)
	return &domain.BlockRecord{
		TargetAddress: r.Target,
		RangeStart:    r.StartHex,
		RangeEnd:      r.EndHex,
		Reason:        "test block",
		ExpiresAt:     expiresAt,
	}
}

func TestInsertBlockDuplicateTarget(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()

	if err := store.InsertBlock(ctx, blockFor(t, "1.2.3.4", nil)); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := store.InsertBlock(ctx, blockFor(t, "1.2.3.4", nil))
	if !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("second insert = %v, want ErrDuplicateTarget", err)
	}
}

func TestInsertAllowsAutoblockBesideParentTarget(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()

	parent := blockFor(t, "1.2.3.4", nil)
	if err := store.InsertBlock(ctx, parent); err != nil {
		t.Fatalf("insert parent: %v", err)
	}

	auto := blockFor(t, "1.2.3.4", nil)
	auto.AutoblockParentID = parent.ID
	if err := store.InsertBlock(ctx, auto); err != nil {
		t.Fatalf("autoblock with distinct parent id should not collide: %v", err)
	}

	dup := blockFor(t, "1.2.3.4", nil)
	dup.AutoblockParentID = parent.ID
	if err := store.InsertBlock(ctx, dup); !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("duplicate autoblock = %v, want ErrDuplicateTarget", err)
	}
}

func TestBlocksCovering(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.InsertBlock(ctx, blockFor(t, "1.2.3.0/24", nil)); err != nil {
		t.Fatalf("insert range: %v", err)
	}
	if err := store.InsertBlock(ctx, blockFor(t, "1.2.3.55", nil)); err != nil {
		t.Fatalf("insert single: %v", err)
	}

	hex, err := iprange.IPToHex("1.2.3.55")
	if err != nil {
		t.Fatal(err)
	}

	blocks, err := store.BlocksCovering(ctx, hex, now)
	if err != nil {
		t.Fatalf("BlocksCovering: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d covering blocks, want 2", len(blocks))
	}
	// Narrowest match sorts first.
	if blocks[0].TargetAddress != "1.2.3.55" {
		t.Errorf("first match = %q, want the single IP", blocks[0].TargetAddress)
	}

	outside, _ := iprange.IPToHex("1.2.4.1")
	blocks, err = store.BlocksCovering(ctx, outside, now)
	if err != nil {
		t.Fatalf("BlocksCovering outside: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("1.2.4.1 should not be covered, got %d rows", len(blocks))
	}
}

func TestBlocksCoveringSkipsExpired(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	if err := store.InsertBlock(ctx, blockFor(t, "1.2.3.4", &past)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hex, _ := iprange.IPToHex("1.2.3.4")
	blocks, err := store.BlocksCovering(ctx, hex, now)
	if err != nil {
		t.Fatalf("BlocksCovering: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatal("expired block must never match, even before a purge")
	}
}

func TestUpdateBlockReportsZeroRows(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()

	ghost := blockFor(t, "1.2.3.4", nil)
	ghost.ID = 9999
	if err := store.UpdateBlock(ctx, ghost); !errors.Is(err, ErrNoRowsAffected) {
		t.Fatalf("update of missing row = %v, want ErrNoRowsAffected", err)
	}
}

func TestDeleteBlockCascades(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now()

	parent := blockFor(t, "1.2.3.4", nil)
	if err := store.InsertBlock(ctx, parent); err != nil {
		t.Fatal(err)
	}

	auto := blockFor(t, "9.9.9.9", nil)
	auto.AutoblockParentID = parent.ID
	if err := store.InsertBlock(ctx, auto); err != nil {
		t.Fatal(err)
	}

	if err := store.UpsertOverride(ctx, &domain.LocalStatusOverride{
		BlockID: parent.ID,
		WikiID:  "enwiki",
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteBlock(ctx, parent.ID); err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}

	if got, err := store.BlockByID(ctx, auto.ID); err != nil || got != nil {
		t.Errorf("autoblock survived parent deletion: %v, %v", got, err)
	}
	if override, err := store.GetOverride(ctx, parent.ID, "enwiki"); err != nil || override != nil {
		t.Errorf("override survived parent deletion: %v, %v", override, err)
	}
	if _, err := store.ActiveBlockByAddress(ctx, "1.2.3.4", now); err != nil {
		t.Errorf("lookup after delete: %v", err)
	}

	if err := store.DeleteBlock(ctx, parent.ID); !errors.Is(err, ErrNoRowsAffected) {
		t.Fatalf("second delete = %v, want ErrNoRowsAffected", err)
	}
}

func TestListBlocksFilters(t *testing.T) {
	store := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now()

	future := now.Add(time.Hour)
	if err := store.InsertBlock(ctx, blockFor(t, "1.2.3.4", &future)); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBlock(ctx, blockFor(t, "5.6.0.0/16", nil)); err != nil {
		t.Fatal(err)
	}
	account := &domain.BlockRecord{TargetAccountID: 42, Reason: "account block"}
	if err := store.InsertBlock(ctx, account); err != nil {
		t.Fatal(err)
	}
	auto := blockFor(t, "7.7.7.7", nil)
	auto.AutoblockParentID = account.ID
	if err := store.InsertBlock(ctx, auto); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListBlocks(ctx, ListFilter{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("listing should hide autoblocks: got %d rows, want 3", len(all))
	}

	tests := []struct {
		filter ListFilter
		want   int
	}{
		{ListFilter{TargetType: TargetTypeIP}, 1},
		{ListFilter{TargetType: TargetTypeRange}, 1},
		{ListFilter{TargetType: TargetTypeAccount}, 1},
		{ListFilter{ExpiryBucket: ExpiryTemporary}, 1},
		{ListFilter{ExpiryBucket: ExpiryIndefinite}, 2},
	}
	for _, tt := range tests {
		rows, err := store.ListBlocks(ctx, tt.filter, now)
		if err != nil {
			t.Fatalf("ListBlocks(%+v): %v", tt.filter, err)
		}
		if len(rows) != tt.want {
			t.Errorf("ListBlocks(%+v) = %d rows, want %d", tt.filter, len(rows), tt.want)
		}
	}

	autos, err := store.ListAutoblocksByParent(ctx, account.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(autos) != 1 {
		t.Fatalf("ListAutoblocksByParent = %d rows, want 1", len(autos))
	}
}
