package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authapp "unlock-server/internal/application/auth"
	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

const testSecret = "test-secret"

func newTestAuthService() *authapp.AuthApplicationService {
	return authapp.NewAuthApplicationService(&config.JWTConfig{
		Secret:     testSecret,
		Expiration: time.Hour,
		Issuer:     "unlock-server",
	}, otelinfra.NewNopLogger())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	authService := newTestAuthService()
	valid, err := authService.GenerateToken(context.Background(), &authapp.GenerateTokenRequest{UserID: "user-1", Role: authapp.RoleCreator})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID string
		wantRole   string
	}{
		{
			name:       "正常系: 有効なトークン",
			header:     "Bearer " + valid.Token,
			wantStatus: http.StatusOK,
			wantUserID: "user-1",
			wantRole:   authapp.RoleCreator,
		},
		{
			name: "正常系: roleクレームなしはuser",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"user_id": "user-2",
				"iss":     "unlock-server",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusOK,
			wantUserID: "user-2",
			wantRole:   authapp.RoleUser,
		},
		{
			name:       "異常系: ヘッダーなし",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "異常系: Bearer形式でない",
			header:     "Token " + valid.Token,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "異常系: 不正なトークン",
			header:     "Bearer not-a-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "異常系: 署名鍵が違う",
			header: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
				"user_id": "user-1",
				"iss":     "unlock-server",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "異常系: 期限切れ",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"user_id": "user-1",
				"iss":     "unlock-server",
				"exp":     time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "異常系: user_idなし",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"iss": "unlock-server",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var gotUserID, gotRole string
			handler := AuthMiddleware(authService, otelinfra.NewNopLogger())(func(c echo.Context) error {
				gotUserID = UserID(c)
				gotRole = Role(c)
				return c.String(http.StatusOK, "ok")
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUserID, gotUserID)
			assert.Equal(t, tt.wantRole, gotRole)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		allowed    []string
		wantStatus int
	}{
		{"正常系: 一致するロール", authapp.RoleAdmin, []string{authapp.RoleAdmin}, http.StatusOK},
		{"正常系: 複数候補のいずれか", authapp.RoleCreator, []string{authapp.RoleCreator, authapp.RoleAdmin}, http.StatusOK},
		{"異常系: ロール不足", authapp.RoleUser, []string{authapp.RoleAdmin}, http.StatusForbidden},
		{"異常系: 未認証", "", []string{authapp.RoleUser}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if tt.role != "" {
				c.Set(ContextKeyRole, tt.role)
			}

			handler := RequireRole(otelinfra.NewNopLogger(), tt.allowed...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
