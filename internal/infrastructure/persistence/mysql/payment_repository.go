package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/payment"
)

// PaymentRepository MySQL実装のPaymentRepository
type PaymentRepository struct {
	db     *DB
	tracer trace.Tracer
	now    func() time.Time
}

// NewPaymentRepository 新しいPaymentRepositoryを作成
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{
		db:     db,
		tracer: otel.Tracer("payment-repository"),
		now:    time.Now,
	}
}

// Save 支払い記録を保存（存在する場合はステータスのみ更新）
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.reference", p.Reference()),
		attribute.String("db.status", p.Status().String()),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.table", "payments"),
	)

	now := r.now()
	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO payments (
			reference, payer_id, method, amount, currency, status,
			consumed_by, consumed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			updated_at = VALUES(updated_at)`,
		p.Reference(),
		p.PayerID(),
		p.Method().String(),
		p.Amount(),
		p.Currency(),
		p.Status().String(),
		nullString(p.ConsumedBy()),
		nullTime(p.ConsumedAt()),
		p.CreatedAt(),
		now,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to save payment: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "payment saved")
	return nil
}

// FindByReference 支払い参照で取得
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.FindByReference")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.reference", reference),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "payments"),
	)

	var rec payment.Record
	var method, status string
	var amount decimal.Decimal
	var consumedBy sql.NullString
	var consumedAt sql.NullTime
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT
			reference, payer_id, method, amount, currency, status,
			consumed_by, consumed_at, created_at, updated_at
		FROM payments
		WHERE reference = ?`,
		reference,
	).Scan(
		&rec.Reference,
		&rec.PayerID,
		&method,
		&amount,
		&rec.Currency,
		&status,
		&consumedBy,
		&consumedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "payment not found")
		return nil, payment.ErrPaymentNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	m, err := payment.NewMethod(method)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("invalid payment method: %w", err)
	}
	rec.Method = m
	rec.Amount = amount
	rec.Status = payment.Status(status)
	rec.ConsumedBy = consumedBy.String
	rec.ConsumedAt = timePtr(consumedAt)

	span.SetStatus(otelcodes.Ok, "payment found")
	return payment.Reconstruct(rec), nil
}

// Consume 確定済みかつ未充当の記録のみ充当済みにする
func (r *PaymentRepository) Consume(ctx context.Context, reference, consumedBy string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Consume")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.reference", reference),
		attribute.String("db.consumed_by", consumedBy),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "payments"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE payments
		SET consumed_by = ?, consumed_at = ?, updated_at = ?
		WHERE reference = ? AND consumed_at IS NULL AND status = ?`,
		consumedBy, at, at, reference, payment.StatusConfirmed.String(),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to consume payment: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	if n == 0 {
		span.SetStatus(otelcodes.Ok, "payment already consumed")
		return payment.ErrPaymentAlreadyConsumed
	}

	span.SetStatus(otelcodes.Ok, "payment consumed")
	return nil
}
