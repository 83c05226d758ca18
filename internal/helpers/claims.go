package helpers

import (
	"github.com/google/uuid"
)

// EnhancedClaims is the token claims joined with the caller's profile row.
type EnhancedClaims struct {
	*CustomClaims
	UserID      uuid.UUID `json:"id"`
	Role        string    `json:"role"`
	Email       string    `json:"email,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	IsSupport   bool      `json:"is_support"`
	Suspended   bool      `json:"is_suspended"`
	KYCVerified bool      `json:"kyc_verified"`
	AccessToken string    `json:"-"`
}

func (ec *EnhancedClaims) IsStaff() bool {
	return ec.IsAdmin || ec.IsSupport
}

func (ec *EnhancedClaims) HasRole(role string) bool {
	return ec.Role == role
}

func (ec *EnhancedClaims) IsOwner(userID uuid.UUID) bool {
	return ec.UserID == userID
}

func (ec *EnhancedClaims) GetSafeRole() string {
	if ec.Role == "" {
		return "guest"
	}
	return ec.Role
}
