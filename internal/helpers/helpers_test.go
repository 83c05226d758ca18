package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/gigbay/internal/models"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signHS256(t *testing.T, secret string, sub uuid.UUID, expires time.Time) string {
	t.Helper()
	claims := CustomClaims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateHS256(t *testing.T) {
	v := NewSecretValidator(testSecret)
	sub := uuid.New()

	claims, err := v.Validate(signHS256(t, testSecret, sub, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, sub.String(), claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestValidateRejectsExpired(t *testing.T) {
	v := NewSecretValidator(testSecret)

	_, err := v.Validate(signHS256(t, testSecret, uuid.New(), time.Now().Add(-time.Minute)))
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v := NewSecretValidator(testSecret)

	_, err := v.Validate(signHS256(t, "another-secret-that-is-also-long-enough", uuid.New(), time.Now().Add(time.Hour)))
	assert.Error(t, err)
}

func TestValidateRejectsMissingExpiry(t *testing.T) {
	v := NewSecretValidator(testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Validate(signed)
	assert.Error(t, err)
}

func TestValidateWithoutSecretRejectsHS256(t *testing.T) {
	v := &TokenValidator{}

	_, err := v.Validate(signHS256(t, testSecret, uuid.New(), time.Now().Add(time.Hour)))
	assert.Error(t, err)
}

func TestUploaderWithoutCloudinary(t *testing.T) {
	var u *CloudinaryUploader

	_, err := u.Upload(context.Background(), nil, "avatar.png", "avatars")
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestPublicIDKeepsBaseName(t *testing.T) {
	id := publicID("/tmp/uploads/stage-photo.jpg")
	assert.Regexp(t, `^stage-photo-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, publicID("/tmp/uploads/stage-photo.jpg"))
}

func TestEnhancedClaims(t *testing.T) {
	id := uuid.New()
	ec := &EnhancedClaims{UserID: id, IsSupport: true}

	assert.True(t, ec.IsStaff())
	assert.True(t, ec.IsOwner(id))
	assert.Equal(t, "guest", ec.GetSafeRole())
}
