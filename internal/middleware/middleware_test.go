package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct {
	valid map[string]uuid.UUID
}

func (f *fakeValidator) Validate(token string) (*helpers.CustomClaims, error) {
	id, ok := f.valid[token]
	if !ok {
		return nil, errors.New("token is expired")
	}
	return &helpers.CustomClaims{
		Email:            "musician@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()},
	}, nil
}

type fakeProfiles struct {
	users     map[uuid.UUID]*models.User
	refreshed map[string]*types.TokenResponse
	calls     int
}

func (f *fakeProfiles) RefreshToken(_ context.Context, rt string) (*types.TokenResponse, error) {
	f.calls++
	res, ok := f.refreshed[rt]
	if !ok {
		return nil, errors.New("invalid refresh token")
	}
	return res, nil
}

func (f *fakeProfiles) GetUser(_ context.Context, id uuid.UUID, _ string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authRouter(v TokenValidator, p Profiles, extra ...gin.HandlerFunc) (*gin.Engine, **helpers.EnhancedClaims) {
	var seen *helpers.EnhancedClaims
	r := gin.New()
	r.Use(AuthMiddleware(v, p, false, quietLogger()))
	r.Use(extra...)
	r.GET("/me", func(c *gin.Context) {
		v, _ := c.Get("user")
		seen, _ = v.(*helpers.EnhancedClaims)
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestAuthMiddlewareBearerToken(t *testing.T) {
	id := uuid.New()
	v := &fakeValidator{valid: map[string]uuid.UUID{"good": id}}
	p := &fakeProfiles{users: map[uuid.UUID]*models.User{
		id: {ID: id, Role: models.RoleMusician, FirstName: "Tunde", KYCVerified: true},
	}}
	r, seen := authRouter(v, p)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, *seen)
	assert.Equal(t, id, (*seen).UserID)
	assert.Equal(t, models.RoleMusician, (*seen).Role)
	assert.True(t, (*seen).KYCVerified)
	assert.Equal(t, "good", (*seen).AccessToken)
	assert.Equal(t, 0, p.calls)
}

func TestAuthMiddlewareCookieToken(t *testing.T) {
	id := uuid.New()
	v := &fakeValidator{valid: map[string]uuid.UUID{"cookie-token": id}}
	r, seen := authRouter(v, &fakeProfiles{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest", (*seen).GetSafeRole())
}

func TestAuthMiddlewareNoToken(t *testing.T) {
	r, _ := authRouter(&fakeValidator{}, &fakeProfiles{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication required")
}

func TestAuthMiddlewareRefreshesExpiredCookie(t *testing.T) {
	id := uuid.New()
	v := &fakeValidator{valid: map[string]uuid.UUID{"fresh": id}}
	p := &fakeProfiles{refreshed: map[string]*types.TokenResponse{
		"rt-1": {Session: types.Session{AccessToken: "fresh", RefreshToken: "rt-2", ExpiresIn: 3600}},
	}}
	r, seen := authRouter(v, p)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "rt-1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "fresh", (*seen).AccessToken)

	cookies := map[string]string{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	assert.Equal(t, "fresh", cookies[AccessTokenCookie])
	assert.Equal(t, "rt-2", cookies[RefreshTokenCookie])
}

func TestAuthMiddlewareFailedRefresh(t *testing.T) {
	r, _ := authRouter(&fakeValidator{}, &fakeProfiles{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "revoked"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "refresh failed")
}

func TestRequireStaff(t *testing.T) {
	staff, member := uuid.New(), uuid.New()
	v := &fakeValidator{valid: map[string]uuid.UUID{"staff": staff, "member": member}}
	p := &fakeProfiles{users: map[uuid.UUID]*models.User{
		staff:  {ID: staff, Role: models.RoleClient, IsSupport: true},
		member: {ID: member, Role: models.RoleClient},
	}}
	r, _ := authRouter(v, p, RequireStaff())

	for token, want := range map[string]int{"staff": http.StatusOK, "member": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, token)
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestErrorHandlerWritesEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(quietLogger()))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal server error"}`, w.Body.String())
}
