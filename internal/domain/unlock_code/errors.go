package unlock_code

import "errors"

var (
	// ErrMalformedCode コード形式またはチェックサムが不正なエラー
	ErrMalformedCode = errors.New("malformed code")
	// ErrCodeNotFound コードが見つからないエラー
	ErrCodeNotFound = errors.New("code not found")
	// ErrCodeAlreadyRedeemed コードが既に引き換え済みのエラー
	ErrCodeAlreadyRedeemed = errors.New("code already redeemed")
	// ErrCodeRevoked コードが失効しているエラー
	ErrCodeRevoked = errors.New("code revoked")
	// ErrCodeExpired コードが期限切れのエラー
	ErrCodeExpired = errors.New("code expired")
	// ErrDuplicateCode 保存時にコードが重複したエラー
	ErrDuplicateCode = errors.New("duplicate code")
	// ErrGenerationFailed 一意なコードを生成できなかったエラー
	ErrGenerationFailed = errors.New("code generation failed")
	// ErrInvalidQuantity 生成数量が範囲外のエラー
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrBatchNotFound バッチが見つからないエラー
	ErrBatchNotFound = errors.New("batch not found")
	// ErrDeviceChangeLimitReached デバイス変更回数の上限に達したエラー
	ErrDeviceChangeLimitReached = errors.New("device change limit reached")
	// ErrInvalidBulkAction 一括操作の種別が不正なエラー
	ErrInvalidBulkAction = errors.New("invalid bulk action")
	// ErrInvalidTransition 許可されていないステータス遷移のエラー
	ErrInvalidTransition = errors.New("invalid status transition")
)
