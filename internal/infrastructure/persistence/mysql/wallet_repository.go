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

	"unlock-server/internal/domain/wallet"
)

// WalletRepository MySQL実装のWalletRepository
type WalletRepository struct {
	db     *DB
	tracer trace.Tracer
	now    func() time.Time
}

// NewWalletRepository 新しいWalletRepositoryを作成
func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{
		db:     db,
		tracer: otel.Tracer("wallet-repository"),
		now:    time.Now,
	}
}

// FindByOwner 所有者と通貨でウォレットを取得
func (r *WalletRepository) FindByOwner(ctx context.Context, ownerID, currency string) (*wallet.Wallet, error) {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.FindByOwner")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.owner_id", ownerID),
		attribute.String("db.currency", currency),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "creator_wallets"),
	)

	var balance decimal.Decimal
	var version int
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT balance, version
		FROM creator_wallets
		WHERE owner_id = ? AND currency = ?`,
		ownerID, currency,
	).Scan(&balance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "wallet not found")
		return nil, wallet.ErrWalletNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	span.SetAttributes(
		attribute.String("db.balance", balance.String()),
		attribute.Int("db.version", version),
	)

	w, err := wallet.NewWallet(ownerID, currency, balance, version)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to reconstruct wallet entity: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "wallet found")
	return w, nil
}

// Save ウォレットを保存（楽観的ロック対応）
// エンティティのバージョンは変更操作で1つ進んでいるため、直前のバージョンを条件にする
func (r *WalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.owner_id", w.OwnerID()),
		attribute.String("db.currency", w.Currency()),
		attribute.String("db.balance", w.Balance().String()),
		attribute.Int("db.version", w.Version()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "creator_wallets"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE creator_wallets
		SET balance = ?, version = ?, updated_at = ?
		WHERE owner_id = ? AND currency = ? AND version = ?`,
		w.Balance(),
		w.Version(),
		r.now(),
		w.OwnerID(),
		w.Currency(),
		w.Version()-1,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to save wallet: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	if n == 0 {
		span.SetStatus(otelcodes.Error, "optimistic lock failed")
		return wallet.ErrConcurrentUpdate
	}

	span.SetStatus(otelcodes.Ok, "wallet saved")
	return nil
}

// Create 新しいウォレットを作成
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.owner_id", w.OwnerID()),
		attribute.String("db.currency", w.Currency()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "creator_wallets"),
	)

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO creator_wallets (owner_id, currency, balance, version, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		w.OwnerID(),
		w.Currency(),
		w.Balance(),
		w.Version(),
		r.now(),
	)
	if err != nil {
		fail(span, err)
		if isDuplicateKey(err) {
			return wallet.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "wallet created")
	return nil
}
