package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/joshua-takyi/gigbay/internal/models"
)

const AvatarFolder = "avatars"

var (
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasNumber  = regexp.MustCompile(`\d`)
	hasSpecial = regexp.MustCompile(`[@$!%*?&]`)
)

func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	return hasLower.MatchString(password) && hasUpper.MatchString(password) &&
		hasNumber.MatchString(password) && hasSpecial.MatchString(password)
}

type UserService struct {
	userRepo models.UserRepo
	media    MediaUploader
	logger   *slog.Logger
}

func NewUserService(userRepo models.UserRepo, media MediaUploader, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		userRepo: userRepo,
		media:    media,
		logger:   logger,
	}
}

func (us *UserService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := models.Validate.Struct(user); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if !IsPasswordStrong(user.Password) {
		return nil, fmt.Errorf("password is not strong enough: %w", models.ErrInvalidInput)
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	created, err := us.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	us.logger.Info("user registered", "user_id", created.ID, "role", created.Role)
	return created, nil
}

func (us *UserService) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
	}
	if err := models.Validate.Var(password, "required,min=8"); err != nil {
		return nil, fmt.Errorf("invalid password format: %w", models.ErrInvalidInput)
	}
	return us.userRepo.AuthenticateUser(ctx, strings.ToLower(strings.TrimSpace(email)), password)
}

func (us *UserService) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required: %w", models.ErrInvalidInput)
	}
	return us.userRepo.RefreshToken(ctx, refreshToken)
}

func (us *UserService) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	return us.userRepo.GetUser(ctx, id, accessToken)
}

// UpdateUser applies profile edits. Role and account flags are silently dropped.
func (us *UserService) UpdateUser(ctx context.Context, fields map[string]interface{}, userID uuid.UUID, accessToken string) (*models.User, error) {
	fields = models.SanitizeProfileUpdate(fields)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no updatable fields: %w", models.ErrInvalidInput)
	}
	fields["updated_at"] = time.Now().UTC()
	return us.userRepo.UpdateUser(ctx, fields, userID, accessToken)
}

func (us *UserService) UploadAvatar(ctx context.Context, userID uuid.UUID, file io.Reader, filename, accessToken string) (*models.User, error) {
	if us.media == nil {
		return nil, fmt.Errorf("media uploads are not configured: %w", models.ErrUnavailable)
	}
	media, err := us.media.Upload(ctx, file, filename, AvatarFolder)
	if err != nil {
		return nil, err
	}
	return us.UpdateUser(ctx, map[string]interface{}{"avatar_url": media.URL}, userID, accessToken)
}
