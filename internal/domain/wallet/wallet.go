package wallet

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidOwnerID 所有者IDが無効
	ErrInvalidOwnerID = errors.New("invalid owner id")
	// ErrInvalidAmount 無効な金額エラー
	ErrInvalidAmount = errors.New("invalid amount")
)

var ownerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Wallet クリエイターウォレットエンティティ
type Wallet struct {
	ownerID  string
	currency string
	balance  decimal.Decimal
	version  int // 楽観的ロック用
}

// NewWallet 新しいWalletエンティティを作成
func NewWallet(ownerID, currency string, balance decimal.Decimal, version int) (*Wallet, error) {
	if !ownerIDRegex.MatchString(ownerID) {
		return nil, ErrInvalidOwnerID
	}
	if balance.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return &Wallet{
		ownerID:  ownerID,
		currency: currency,
		balance:  balance,
		version:  version,
	}, nil
}

// OwnerID 所有者IDを返す
func (w *Wallet) OwnerID() string {
	return w.ownerID
}

// Currency 通貨コードを返す
func (w *Wallet) Currency() string {
	return w.currency
}

// Balance 残高を返す
func (w *Wallet) Balance() decimal.Decimal {
	return w.balance
}

// Version バージョンを返す（楽観的ロック用）
func (w *Wallet) Version() int {
	return w.version
}

// Debit 残高から引き落とす（マイナス残高は許可しない）
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if w.balance.LessThan(amount) {
		return ErrInsufficientWalletBalance
	}
	w.balance = w.balance.Sub(amount)
	w.version++
	return nil
}

// Credit 残高に入金する
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	w.balance = w.balance.Add(amount)
	w.version++
	return nil
}

// MustNewWallet テスト用ヘルパー: NewWalletを呼び出し、エラーが発生した場合はpanicする
func MustNewWallet(ownerID, currency string, balance decimal.Decimal, version int) *Wallet {
	w, err := NewWallet(ownerID, currency, balance, version)
	if err != nil {
		panic(err)
	}
	return w
}
