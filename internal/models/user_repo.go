package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	ProfileTable = "user_profiles"
	profileCols  = "id,email,first_name,last_name,role,phone,bio,location,avatar_url,is_admin,is_support,is_suspended,kyc_verified,created_at,updated_at"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*User, error)
	UpdateUser(ctx context.Context, fields map[string]interface{}, userid uuid.UUID, accessToken string) (*User, error)
}

// cleanAuthError turns gotrue/postgrest failures into messages safe to show users.
func cleanAuthError(err error) error {
	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "already registered"):
		return fmt.Errorf("email already in use: %w", ErrConflict)
	case strings.Contains(errMsg, "unique constraint"), strings.Contains(errMsg, "duplicate key"):
		return fmt.Errorf("user already exists: %w", ErrConflict)
	case strings.Contains(errMsg, "null value in column"):
		return fmt.Errorf("required field is missing: %w", ErrInvalidInput)
	case strings.Contains(errMsg, "invalid input syntax"):
		return fmt.Errorf("invalid input format: %w", ErrInvalidInput)
	default:
		return fmt.Errorf("failed to create user")
	}
}

func (su *SupabaseRepo) CreateUser(ctx context.Context, user *User) (*User, error) {
	res, err := su.supabaseClient.Auth.Signup(types.SignupRequest{
		Email:    user.Email,
		Password: user.Password,
		Data: map[string]interface{}{
			"first_name": user.FirstName,
			"role":       user.Role,
		},
	})
	if err != nil {
		return nil, cleanAuthError(err)
	}

	id := res.User.ID
	if id == uuid.Nil {
		id = res.Session.User.ID
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("signup returned no user id")
	}

	profile := map[string]interface{}{
		"id":         id,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role":       user.Role,
		"phone":      user.PhoneNumber,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	}

	raw, _, err := su.supabaseClient.From(ProfileTable).
		Upsert(profile, "id", "representation", "").
		Execute()
	if err != nil {
		return nil, cleanAuthError(err)
	}

	return decodeOne[User](raw, "created profile")
}

func (su *SupabaseRepo) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("invalid UUID: %w", ErrInvalidInput)
	}

	client, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %w", err)
	}

	raw, status, err := client.From(ProfileTable).
		Select(profileCols, "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		// include response status and body when available so caller can distinguish
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%w", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return decodeOne[User](raw, "user")
}

func (su *SupabaseRepo) UpdateUser(ctx context.Context, fields map[string]interface{}, userid uuid.UUID, accessToken string) (*User, error) {
	if userid == uuid.Nil {
		return nil, fmt.Errorf("invalid UUID: %w", ErrInvalidInput)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", ErrInvalidInput)
	}

	client, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %w", err)
	}

	raw, _, err := client.From(ProfileTable).
		Update(fields, "representation", "").
		Eq("id", userid.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return decodeOne[User](raw, "updated user")
}

func (su *SupabaseRepo) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate user: %w", err)
	}
	return resp, nil
}

func (su *SupabaseRepo) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return resp, nil
}
