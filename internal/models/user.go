package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleClient   = "client"
	RoleMusician = "musician"
	RoleAdmin    = "admin"
)

// User is a user_profiles row. Password only travels on signup and is never
// written to the profile table.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Email       string    `db:"email" json:"email" validate:"required,email"`
	Password    string    `db:"-" json:"password,omitempty" validate:"required,min=8"`
	FirstName   string    `db:"first_name" json:"first_name" validate:"required,max=80"`
	LastName    string    `db:"last_name" json:"last_name" validate:"max=80"`
	Role        string    `db:"role" json:"role" validate:"required,oneof=client musician"`
	PhoneNumber string    `db:"phone" json:"phone,omitempty"`
	Bio         string    `db:"bio" json:"bio,omitempty"`
	Location    string    `db:"location" json:"location,omitempty"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url,omitempty"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	IsSupport   bool      `db:"is_support" json:"is_support"`
	IsSuspended bool      `db:"is_suspended" json:"is_suspended"`
	KYCVerified bool      `db:"kyc_verified" json:"kyc_verified"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// profile columns a user may change about themselves
var updatableProfileFields = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"phone":      true,
	"bio":        true,
	"location":   true,
	"avatar_url": true,
}

// SanitizeProfileUpdate drops any key a user is not allowed to set on their
// own profile (role, flags, ids).
func SanitizeProfileUpdate(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if updatableProfileFields[k] {
			out[k] = v
		}
	}
	return out
}
