package wallet

import "errors"

var (
	// ErrInsufficientWalletBalance 残高不足エラー
	ErrInsufficientWalletBalance = errors.New("insufficient wallet balance")
	// ErrWalletNotFound ウォレットが見つからないエラー
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrConcurrentUpdate 楽観的ロックの競合エラー
	ErrConcurrentUpdate = errors.New("wallet was updated concurrently")
)
