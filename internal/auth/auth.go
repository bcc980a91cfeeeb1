package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"globalblock/internal/domain"
	"globalblock/internal/identity"
	"globalblock/internal/support"
)

var ErrInvalidCredentials = errors.New("auth: invalid username or password")

const defaultTokenTTL = 12 * time.Hour

// Claims carried by an admin session token.
type Claims struct {
	AccountID    uint64   `json:"account_id"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// Service authenticates operators against the admin_accounts table and
// doubles as the identity.Service for deployments without an external
// account backend.
type Service struct {
	db       *gorm.DB
	secret   []byte
	tokenTTL time.Duration
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:       db,
		secret:   []byte(support.GetEnv("GB_JWT_SECRET", "")),
		tokenTTL: support.GetEnvDuration("GB_TOKEN_TTL", defaultTokenTTL),
	}
}

// Migrate creates the admin table and, when GB_ADMIN_USER is set and the
// table is empty, bootstraps the first operator account from env.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&AdminAccount{}); err != nil {
		return fmt.Errorf("auth: migrate: %w", err)
	}

	username := support.GetEnv("GB_ADMIN_USER", "")
	password := support.GetEnv("GB_ADMIN_PASSWORD", "")
	if username == "" || password == "" {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&AdminAccount{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := s.CreateAccount(ctx, username, password,
		identity.CapManageBlocks, identity.CapLocalOverride, identity.CapViewHidden)
	if err != nil {
		return err
	}
	log.Info("Bootstrap admin account created", "username", username)
	return nil
}

// CreateAccount provisions an operator with the given capability grants.
func (s *Service) CreateAccount(ctx context.Context, username, password string, capabilities ...string) (*AdminAccount, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	account := &AdminAccount{
		Username:     username,
		PasswordHash: string(hash),
		Capabilities: domain.StringList(capabilities),
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate checks credentials and issues a session token carrying the
// account's capability grants.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	account, err := s.accountByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		AccountID:    account.ID,
		Capabilities: account.Capabilities.Clone(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a session token and returns its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}

func (s *Service) accountByUsername(ctx context.Context, username string) (*AdminAccount, error) {
	var account AdminAccount
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) accountByID(ctx context.Context, id uint64) *AdminAccount {
	var account AdminAccount
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if err != nil {
		return nil
	}
	return &account
}

// identity.Service implementation, backed by the admin table.

func (s *Service) HasCapability(ctx context.Context, accountID uint64, capability string) bool {
	account := s.accountByID(ctx, accountID)
	return account != nil && account.HasCapability(capability)
}

func (s *Service) ResolveAccountID(ctx context.Context, name string) (uint64, bool) {
	account, err := s.accountByUsername(ctx, name)
	if err != nil || account == nil {
		return 0, false
	}
	return account.ID, true
}

func (s *Service) DisplayName(ctx context.Context, accountID uint64) (string, bool) {
	account := s.accountByID(ctx, accountID)
	if account == nil {
		return "", false
	}
	return account.Username, true
}

func (s *Service) IsHidden(ctx context.Context, accountID uint64) bool {
	account := s.accountByID(ctx, accountID)
	return account != nil && account.Hidden
}

var _ identity.Service = (*Service)(nil)
