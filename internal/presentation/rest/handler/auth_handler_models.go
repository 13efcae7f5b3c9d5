package handler

// GenerateTokenRequest トークン生成リクエスト
// @Description トークン生成リクエスト（開発環境のみ）
type GenerateTokenRequest struct {
	UserID string `json:"user_id" example:"user123"`
	Role   string `json:"role" example:"creator" enums:"user,creator,admin"`
}

// GenerateTokenResponse トークン生成レスポンス
// @Description トークン生成レスポンス
type GenerateTokenResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoidXNlcjEyMyJ9.signature"`
	ExpiresIn int    `json:"expires_in" example:"3600"`
	TokenType string `json:"token_type" example:"Bearer"`
}

// ErrorResponse エラーレスポンス
// @Description エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error" example:"not_found"`
	Message string `json:"message" example:"invalid or already used code"`
	Code    string `json:"code,omitempty" example:"invalid_or_used_code"`
}
