package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/models"
)

const uploadTag = "gigbay"

type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// TokenValidator checks Supabase access tokens. Asymmetric tokens are checked
// against the project JWKS, HS256 tokens against the project secret.
type TokenValidator struct {
	jwks   *keyfunc.JWKS
	secret []byte
}

func NewTokenValidator(ctx context.Context, supabaseURL, secret string, logger *slog.Logger) (*TokenValidator, error) {
	v := &TokenValidator{secret: []byte(secret)}

	jwksURL := strings.TrimRight(supabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("JWKS refresh failed", "error", err)
		},
	})
	if err != nil {
		if secret == "" {
			return nil, fmt.Errorf("failed to load JWKS and no JWT secret is configured: %w", err)
		}
		logger.Warn("JWKS unavailable, accepting HS256 tokens only", "url", jwksURL, "error", err)
		return v, nil
	}
	v.jwks = jwks
	return v, nil
}

// NewSecretValidator accepts only HS256 tokens signed with secret.
func NewSecretValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

func (v *TokenValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
		if len(v.secret) == 0 {
			return nil, errors.New("HS256 tokens are not accepted")
		}
		return v.secret, nil
	}
	if v.jwks == nil {
		return nil, errors.New("no key set for asymmetric tokens")
	}
	return v.jwks.Keyfunc(token)
}

func (v *TokenValidator) Validate(tokenStr string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, v.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// publicID keeps the original name readable but never collides.
func publicID(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

// CloudinaryUploader stores avatars and feed media.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cld *cloudinary.Cloudinary) *CloudinaryUploader {
	return &CloudinaryUploader{cld: cld}
}

func (u *CloudinaryUploader) Upload(ctx context.Context, file io.Reader, filename, folder string) (models.Media, error) {
	if u == nil || u.cld == nil {
		return models.Media{}, fmt.Errorf("cloudinary is not configured: %w", models.ErrUnavailable)
	}

	res, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID(filename),
		ResourceType: "auto",
		Tags:         []string{uploadTag},
	})
	if err != nil {
		return models.Media{}, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if res.Error.Message != "" {
		return models.Media{}, fmt.Errorf("failed to upload %s: %s", filename, res.Error.Message)
	}

	return models.Media{URL: res.SecureURL, PublicID: res.PublicID, Type: res.ResourceType}, nil
}
