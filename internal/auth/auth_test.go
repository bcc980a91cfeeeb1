package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"globalblock/internal/identity"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuthTestDB(t *testing.T) *Service {
	t.Helper()
	t.Setenv("GB_JWT_SECRET", "auth-test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	svc := NewService(db)
	if err := svc.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return svc
}

func TestAuthenticateAndVerify(t *testing.T) {
	svc := setupAuthTestDB(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, "steward", "correct horse", identity.CapManageBlocks)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	token, err := svc.Authenticate(ctx, "steward", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.AccountID != account.ID || claims.Subject != "steward" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := svc.Authenticate(ctx, "steward", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.VerifyToken(token + "tampered"); err == nil {
		t.Error("tampered token must not verify")
	}
}

func TestIdentityServiceBacking(t *testing.T) {
	svc := setupAuthTestDB(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, "patroller", "pw", identity.CapLocalOverride)
	if err != nil {
		t.Fatal(err)
	}

	if !svc.HasCapability(ctx, account.ID, identity.CapLocalOverride) {
		t.Error("granted capability missing")
	}
	if svc.HasCapability(ctx, account.ID, identity.CapManageBlocks) {
		t.Error("ungranted capability present")
	}

	id, ok := svc.ResolveAccountID(ctx, "patroller")
	if !ok || id != account.ID {
		t.Errorf("ResolveAccountID = %d, %v", id, ok)
	}
	name, ok := svc.DisplayName(ctx, account.ID)
	if !ok || name != "patroller" {
		t.Errorf("DisplayName = %q, %v", name, ok)
	}
	if svc.IsHidden(ctx, account.ID) {
		t.Error("fresh account should not be hidden")
	}
}

func TestBootstrapAdminFromEnv(t *testing.T) {
	t.Setenv("GB_ADMIN_USER", "root-steward")
	t.Setenv("GB_ADMIN_PASSWORD", "bootstrap-pw")

	svc := setupAuthTestDB(t)
	ctx := context.Background()

	id, ok := svc.ResolveAccountID(ctx, "root-steward")
	if !ok {
		t.Fatal("bootstrap admin missing")
	}
	if !svc.HasCapability(ctx, id, identity.CapManageBlocks) {
		t.Error("bootstrap admin lacks block capability")
	}

	// A second migrate must not duplicate the account.
	if err := svc.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
}
