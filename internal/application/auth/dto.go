package auth

// GenerateTokenRequest トークン生成リクエスト
type GenerateTokenRequest struct {
	UserID string
	Role   string // 空の場合は "user"
}

// GenerateTokenResponse トークン生成レスポンス
type GenerateTokenResponse struct {
	Token     string
	ExpiresIn int64  // 秒単位
	TokenType string // "Bearer"
}

// Claims 検証済みトークンから取り出した呼び出し元の情報
type Claims struct {
	UserID string
	Role   string
}
