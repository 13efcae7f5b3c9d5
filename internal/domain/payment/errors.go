package payment

import "errors"

var (
	// ErrPaymentNotFound 支払い記録が見つからないエラー
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentNotConfirmed 支払いが確定していないエラー
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	// ErrPaymentAlreadyConsumed 支払いが既に充当済みのエラー
	ErrPaymentAlreadyConsumed = errors.New("payment already consumed")
	// ErrPaymentAmountTooLow 支払い金額が見積もりに満たないエラー
	ErrPaymentAmountTooLow = errors.New("payment amount below quoted total")
	// ErrUnsupportedPaymentMethod 未対応の支払い方法エラー
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
)
