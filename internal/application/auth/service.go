package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

var (
	// ErrUserIDRequired ユーザーIDが空のエラー
	ErrUserIDRequired = errors.New("user_id is required")
	// ErrInvalidRole ロールが不正なエラー
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidToken トークンが不正または期限切れのエラー
	ErrInvalidToken = errors.New("invalid or expired token")
)

// ValidRole ロールが定義済みかどうか
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleCreator, RoleAdmin:
		return true
	default:
		return false
	}
}

// AuthApplicationService 認証アプリケーションサービス
type AuthApplicationService struct {
	jwtConfig *config.JWTConfig
	logger    *otelinfra.Logger
	now       func() time.Time
}

// NewAuthApplicationService 新しいAuthApplicationServiceを作成
func NewAuthApplicationService(jwtConfig *config.JWTConfig, logger *otelinfra.Logger) *AuthApplicationService {
	return &AuthApplicationService{
		jwtConfig: jwtConfig,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateToken JWTトークンを生成
func (s *AuthApplicationService) GenerateToken(ctx context.Context, req *GenerateTokenRequest) (*GenerateTokenResponse, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "AuthApplicationService.GenerateToken")
	defer span.End()

	role := req.Role
	if role == "" {
		role = RoleUser
	}
	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("role", role),
	)

	if req.UserID == "" {
		span.RecordError(ErrUserIDRequired)
		span.SetStatus(codes.Error, ErrUserIDRequired.Error())
		return nil, ErrUserIDRequired
	}
	if !ValidRole(role) {
		err := fmt.Errorf("%w: %s", ErrInvalidRole, role)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.jwtConfig.Expiration)

	claims := jwt.MapClaims{
		"user_id": req.UserID,
		"role":    role,
		"iss":     s.jwtConfig.Issuer,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "Failed to generate token", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info(ctx, "Token generated successfully", map[string]interface{}{
		"user_id":    req.UserID,
		"role":       role,
		"expires_at": expiresAt.Unix(),
	})

	return &GenerateTokenResponse{
		Token:     tokenString,
		ExpiresIn: int64(s.jwtConfig.Expiration.Seconds()),
		TokenType: "Bearer",
	}, nil
}

// ParseToken トークンを検証し、ユーザーIDとロールを返す
// role クレームがない場合は "user" として扱う
func (s *AuthApplicationService) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.jwtConfig.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwtConfig.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwtConfig.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	userID, ok := mapClaims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	role, _ := mapClaims["role"].(string)
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return &Claims{UserID: userID, Role: role}, nil
}

// WithClock 時刻の取得元を差し替える
func (s *AuthApplicationService) WithClock(now func() time.Time) *AuthApplicationService {
	s.now = now
	return s
}
