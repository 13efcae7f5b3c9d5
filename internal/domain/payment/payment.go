package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Method 支払い方法
type Method string

const (
	MethodWallet       Method = "wallet"        // クリエイターウォレット残高
	MethodCard         Method = "card"          // カード決済（外部決済記録）
	MethodCrypto       Method = "crypto"        // 暗号資産決済（外部決済記録）
	MethodBankTransfer Method = "bank_transfer" // 銀行振込（外部決済記録）
)

// NewMethod 新しいMethodを作成
func NewMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodWallet, MethodCard, MethodCrypto, MethodBankTransfer:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, s)
	}
}

// String 文字列表現を返す
func (m Method) String() string {
	return string(m)
}

// Status 支払い記録のステータス
type Status string

const (
	StatusPending   Status = "pending"   // 処理中
	StatusConfirmed Status = "confirmed" // 確定
	StatusFailed    Status = "failed"    // 失敗
	StatusCancelled Status = "cancelled" // キャンセル
)

// String 文字列表現を返す
func (s Status) String() string {
	return string(s)
}

// Payment 外部決済の記録エンティティ
// 確定済みの記録は一度だけコード生成に充当できる
type Payment struct {
	reference  string
	payerID    string
	method     Method
	amount     decimal.Decimal
	currency   string
	status     Status
	consumedBy string
	consumedAt *time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

// NewPayment 新しい処理中のPaymentを作成
func NewPayment(reference, payerID string, method Method, amount decimal.Decimal, currency string) *Payment {
	now := time.Now()
	return &Payment{
		reference: reference,
		payerID:   payerID,
		method:    method,
		amount:    amount,
		currency:  currency,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// Record 永続化層との受け渡しに使う全属性
type Record struct {
	Reference  string
	PayerID    string
	Method     Method
	Amount     decimal.Decimal
	Currency   string
	Status     Status
	ConsumedBy string
	ConsumedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Reconstruct 永続化されたレコードからPaymentを復元
func Reconstruct(r Record) *Payment {
	return &Payment{
		reference:  r.Reference,
		payerID:    r.PayerID,
		method:     r.Method,
		amount:     r.Amount,
		currency:   r.Currency,
		status:     r.Status,
		consumedBy: r.ConsumedBy,
		consumedAt: r.ConsumedAt,
		createdAt:  r.CreatedAt,
		updatedAt:  r.UpdatedAt,
	}
}

// Reference 支払い参照を返す
func (p *Payment) Reference() string {
	return p.reference
}

// PayerID 支払者IDを返す
func (p *Payment) PayerID() string {
	return p.payerID
}

// Method 支払い方法を返す
func (p *Payment) Method() Method {
	return p.method
}

// Amount 金額を返す
func (p *Payment) Amount() decimal.Decimal {
	return p.amount
}

// Currency 通貨コードを返す
func (p *Payment) Currency() string {
	return p.currency
}

// Status ステータスを返す
func (p *Payment) Status() Status {
	return p.status
}

// ConsumedBy 充当先（バッチID）を返す
func (p *Payment) ConsumedBy() string {
	return p.consumedBy
}

// ConsumedAt 充当日時を返す
func (p *Payment) ConsumedAt() *time.Time {
	return p.consumedAt
}

// CreatedAt 作成日時を返す
func (p *Payment) CreatedAt() time.Time {
	return p.createdAt
}

// Confirm 決済を確定状態にする
func (p *Payment) Confirm() {
	p.status = StatusConfirmed
	p.updatedAt = time.Now()
}

// Fail 決済を失敗状態にする
func (p *Payment) Fail() {
	p.status = StatusFailed
	p.updatedAt = time.Now()
}

// IsConfirmed 確定状態かどうかを返す
func (p *Payment) IsConfirmed() bool {
	return p.status == StatusConfirmed
}

// CheckUsableFor 支払者・金額・通貨が充当条件を満たすかをチェック
func (p *Payment) CheckUsableFor(payerID string, amount decimal.Decimal, currency string) error {
	if p.payerID != payerID {
		return ErrPaymentNotFound
	}
	if !p.IsConfirmed() {
		return ErrPaymentNotConfirmed
	}
	if p.consumedAt != nil {
		return ErrPaymentAlreadyConsumed
	}
	if p.currency != currency || p.amount.LessThan(amount) {
		return ErrPaymentAmountTooLow
	}
	return nil
}

// Consume 支払いを充当済みにする
func (p *Payment) Consume(consumedBy string, at time.Time) error {
	if !p.IsConfirmed() {
		return ErrPaymentNotConfirmed
	}
	if p.consumedAt != nil {
		return ErrPaymentAlreadyConsumed
	}
	p.consumedBy = consumedBy
	p.consumedAt = &at
	p.updatedAt = at
	return nil
}
