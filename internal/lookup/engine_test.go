package lookup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/domain"
	"globalblock/internal/identity"
	"globalblock/internal/iprange"
	"globalblock/internal/support"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLookupTestDB(t *testing.T) *database.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.BlockRecord{}, &domain.LocalStatusOverride{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return database.NewStore(db, nil)
}

func insertBlock(t *testing.T, store *database.Store, target string, mutate func(*domain.BlockRecord)) *domain.BlockRecord {
	t.Helper()

	block := &domain.BlockRecord{Reason: "test"}
	if target != "" {
		r, err := iprange.Parse(target)
		if err != nil {
			t.Fatalf("parse %q: %v", target, err)
		}
		block.TargetAddress = r.Target
		block.RangeStart = r.StartHex
		block.RangeEnd = r.EndHex
	}
	if mutate != nil {
		mutate(block)
	}
	if err := store.InsertBlock(context.Background(), block); err != nil {
		t.Fatalf("insert block for %q: %v", target, err)
	}
	return block
}

func testEngine(store *database.Store, ids identity.Service, mutate func(*config.Policy)) *Engine {
	policy := config.Default()
	policy.LocalWikiID = "enwiki"
	if mutate != nil {
		mutate(&policy)
	}
	return NewEngine(store, ids, policy, support.SystemClock())
}

func resolve(t *testing.T, e *Engine, requester identity.Requester) *domain.ResolutionResult {
	t.Helper()
	result, err := e.GetBlockForRequester(context.Background(), NewRequest(requester))
	if err != nil {
		t.Fatalf("GetBlockForRequester: %v", err)
	}
	return result
}

func TestLookupMatchesSingleIPForAnyAccountState(t *testing.T) {
	store := setupLookupTestDB(t)
	ids := identity.NewStaticService()
	ids.AddAccount(5, "Alice")
	e := testEngine(store, ids, nil)

	insertBlock(t, store, "1.2.3.4", nil)

	anon := resolve(t, e, identity.Requester{IP: "1.2.3.4"})
	if !anon.Blocked() {
		t.Fatal("anonymous requester at 1.2.3.4 should be blocked")
	}
	if anon.MatchedIP != "1.2.3.4" || anon.MatchedViaXFF {
		t.Fatalf("unexpected resolution: %+v", anon)
	}

	// anon-only is false, so a logged-in account is covered too.
	authed := resolve(t, e, identity.Requester{AccountID: 5, IP: "1.2.3.4"})
	if !authed.Blocked() {
		t.Fatal("authenticated requester should be blocked when anon-only is off")
	}
}

func TestLookupAnonOnlyScope(t *testing.T) {
	store := setupLookupTestDB(t)
	ids := identity.NewStaticService()
	ids.AddAccount(5, "Alice")

	insertBlock(t, store, "1.2.3.4", func(b *domain.BlockRecord) { b.AnonOnly = true })

	e := testEngine(store, ids, nil)
	if resolve(t, e, identity.Requester{AccountID: 5, IP: "1.2.3.4"}).Blocked() {
		t.Error("anon-only block must not cover a regular authenticated account")
	}
	if !resolve(t, e, identity.Requester{IP: "1.2.3.4"}).Blocked() {
		t.Error("anon-only block must cover an anonymous requester")
	}
	if !resolve(t, e, identity.Requester{AccountID: 5, IsTemporary: true, IP: "1.2.3.4"}).Blocked() {
		t.Error("temporary account should be covered under the default policy")
	}

	strict := testEngine(store, ids, func(p *config.Policy) { p.AnonOnlyCoversTemp = false })
	if resolve(t, strict, identity.Requester{AccountID: 5, IsTemporary: true, IP: "1.2.3.4"}).Blocked() {
		t.Error("temporary account must escape anon-only when policy says so")
	}
}

func TestLookupRangeMatchShowsRangeTarget(t *testing.T) {
	store := setupLookupTestDB(t)
	e := testEngine(store, identity.NewStaticService(), nil)

	insertBlock(t, store, "1.2.3.0/24", nil)

	result := resolve(t, e, identity.Requester{IP: "1.2.3.55"})
	if !result.Blocked() {
		t.Fatal("1.2.3.55 should be covered by 1.2.3.0/24")
	}
	if result.Block.TargetAddress != "1.2.3.0/24" {
		t.Errorf("matched target = %q, want the range", result.Block.TargetAddress)
	}

	if resolve(t, e, identity.Requester{IP: "1.2.4.1"}).Blocked() {
		t.Error("1.2.4.1 is outside the range and must not match")
	}
}

func TestLookupExemptionPrecedence(t *testing.T) {
	store := setupLookupTestDB(t)
	ids := identity.NewStaticService()
	ids.AddAccount(5, "Alice", identity.CapExempt)

	insertBlock(t, store, "1.2.3.4", nil)
	insertBlock(t, store, "", func(b *domain.BlockRecord) { b.TargetAccountID = 5 })

	e := testEngine(store, ids, nil)
	if resolve(t, e, identity.Requester{AccountID: 5, IP: "1.2.3.4"}).Blocked() {
		t.Error("exempt account must never be blocked, regardless of IP or account blocks")
	}
}

func TestLookupExpiredBlockNeverMatches(t *testing.T) {
	store := setupLookupTestDB(t)
	past := time.Now().Add(-time.Hour)
	insertBlock(t, store, "1.2.3.4", func(b *domain.BlockRecord) { b.ExpiresAt = &past })

	e := testEngine(store, identity.NewStaticService(), nil)
	if resolve(t, e, identity.Requester{IP: "1.2.3.4"}).Blocked() {
		t.Error("expired block matched before purge")
	}
}

func TestLookupAccountBlockIndependentOfIP(t *testing.T) {
	store := setupLookupTestDB(t)
	ids := identity.NewStaticService()
	ids.AddAccount(5, "Alice")

	block := insertBlock(t, store, "", func(b *domain.BlockRecord) { b.TargetAccountID = 5 })

	e := testEngine(store, ids, nil)
	result := resolve(t, e, identity.Requester{AccountID: 5, IP: "203.0.113.9"})
	if !result.Blocked() || result.Block.ID != block.ID {
		t.Fatalf("account block should match from any IP: %+v", result)
	}
	if result.MatchedIP != "" {
		t.Errorf("account match should carry no matched IP, got %q", result.MatchedIP)
	}
}

func TestLookupLocalDisableIsPerWiki(t *testing.T) {
	store := setupLookupTestDB(t)
	block := insertBlock(t, store, "1.2.3.4", nil)

	if err := store.UpsertOverride(context.Background(), &domain.LocalStatusOverride{
		BlockID: block.ID,
		WikiID:  "enwiki",
	}); err != nil {
		t.Fatal(err)
	}

	local := testEngine(store, identity.NewStaticService(), nil)
	if resolve(t, local, identity.Requester{IP: "1.2.3.4"}).Blocked() {
		t.Error("locally disabled block still matched on enwiki")
	}

	other := testEngine(store, identity.NewStaticService(), func(p *config.Policy) { p.LocalWikiID = "dewiki" })
	if !resolve(t, other, identity.Requester{IP: "1.2.3.4"}).Blocked() {
		t.Error("block should still match on a wiki that did not disable it")
	}
}

func TestLookupXFFPolicyAndPrecedence(t *testing.T) {
	store := setupLookupTestDB(t)
	insertBlock(t, store, "9.9.9.9", nil)

	requester := identity.Requester{
		IP:  "203.0.113.9",
		XFF: []string{"not-an-ip", "8.8.8.8", "9.9.9.9"},
	}

	off := testEngine(store, identity.NewStaticService(), nil)
	if resolve(t, off, requester).Blocked() {
		t.Fatal("XFF candidates must be ignored while the policy is off")
	}

	on := testEngine(store, identity.NewStaticService(), func(p *config.Policy) { p.XFFLookup = true })
	result := resolve(t, on, requester)
	if !result.Blocked() {
		t.Fatal("XFF hop 9.9.9.9 should have matched")
	}
	if !result.MatchedViaXFF || result.MatchedIP != "9.9.9.9" {
		t.Fatalf("unexpected XFF resolution: %+v", result)
	}

	// A match on the connecting address beats any forwarded-for match.
	insertBlock(t, store, "203.0.113.9", nil)
	direct := resolve(t, on, identity.Requester{IP: "203.0.113.9", XFF: []string{"9.9.9.9"}})
	if direct.MatchedViaXFF || direct.MatchedIP != "203.0.113.9" {
		t.Fatalf("connecting IP should take precedence: %+v", direct)
	}
}

func TestLookupResultIsMemoizedPerRequest(t *testing.T) {
	store := setupLookupTestDB(t)
	block := insertBlock(t, store, "1.2.3.4", nil)

	e := testEngine(store, identity.NewStaticService(), nil)
	req := NewRequest(identity.Requester{IP: "1.2.3.4"})

	first, err := e.GetBlockForRequester(context.Background(), req)
	if err != nil || !first.Blocked() {
		t.Fatalf("first resolution: %+v, %v", first, err)
	}

	if err := store.DeleteBlock(context.Background(), block.ID); err != nil {
		t.Fatal(err)
	}

	second, err := e.GetBlockForRequester(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("repeated call re-resolved instead of using the request memo")
	}

	// A fresh request sees the write.
	fresh := resolve(t, e, identity.Requester{IP: "1.2.3.4"})
	if fresh.Blocked() {
		t.Error("new request should observe the deletion")
	}
}

func TestLookupSkipsOrphanedAutoblocks(t *testing.T) {
	store := setupLookupTestDB(t)
	insertBlock(t, store, "9.9.9.9", func(b *domain.BlockRecord) { b.AutoblockParentID = 123456 })

	e := testEngine(store, identity.NewStaticService(), nil)
	if resolve(t, e, identity.Requester{IP: "9.9.9.9"}).Blocked() {
		t.Error("autoblock without a live parent must not match")
	}
}

func TestLookupNoCandidates(t *testing.T) {
	store := setupLookupTestDB(t)
	insertBlock(t, store, "1.2.3.4", nil)

	e := testEngine(store, identity.NewStaticService(), nil)
	if resolve(t, e, identity.Requester{IP: "bogus"}).Blocked() {
		t.Error("a requester with no valid IP and no account is never blocked")
	}
}

func TestParseBlockIDTarget(t *testing.T) {
	tests := []struct {
		target string
		want   uint64
	}{
		{"#42", 42},
		{" #42 ", 42},
		{"#0", 0},
		{"42", 0},
		{"#", 0},
		{"#4x", 0},
		{"1.2.3.4", 0},
	}
	for _, tt := range tests {
		if got := ParseBlockIDTarget(tt.target); got != tt.want {
			t.Errorf("ParseBlockIDTarget(%q) = %d, want %d", tt.target, got, tt.want)
		}
	}
}

func TestAppliesToRight(t *testing.T) {
	plain := &domain.BlockRecord{}
	noSignup := &domain.BlockRecord{AccountCreationDisabled: true}

	if !AppliesToRight(plain, RightEdit) {
		t.Error("every block withholds edit")
	}
	if AppliesToRight(plain, RightCreateAccount) {
		t.Error("signup stays open unless the block disables it")
	}
	if !AppliesToRight(noSignup, RightCreateAccount) {
		t.Error("block with account creation disabled must withhold signup")
	}
	if AppliesToRight(plain, "read") {
		t.Error("unknown rights are never withheld")
	}
	if AppliesToRight(nil, RightEdit) {
		t.Error("nil block never applies")
	}
}
