package auth

import (
	"time"

	"globalblock/internal/domain"
)

// AdminAccount is a locally provisioned operator account. Deployments with
// a real identity backend bypass this table entirely; it exists so a
// standalone service can still authenticate its command API.
type AdminAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Username     string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	// Capabilities is the grant list, e.g.
	// ["globalblock", "globalblock-whitelist"].
	Capabilities domain.StringList `gorm:"type:json"`

	// Hidden marks the account as suppressed for display purposes.
	Hidden bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AdminAccount) TableName() string {
	return "admin_accounts"
}

// HasCapability checks the grant list.
func (a *AdminAccount) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
