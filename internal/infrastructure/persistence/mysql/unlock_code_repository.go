package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/unlock_code"
)

// codeInsertChunk 1回のINSERTでまとめて保存するコード数
const codeInsertChunk = 500

// existenceCheckChunk 1回の存在確認で問い合わせるコード数
const existenceCheckChunk = 1000

const unlockCodeColumns = `
	id, code, release_id, creator_id, batch_id, status,
	device_locked_to, ip_locked_to, redeemed_by, redeemed_at,
	group_pack_id, group_member_id, device_change_count,
	expires_at, revoked_reason, created_at, updated_at`

// UnlockCodeRepository MySQL実装のUnlockCodeRepository
type UnlockCodeRepository struct {
	db     *DB
	tracer trace.Tracer
	now    func() time.Time
}

// NewUnlockCodeRepository 新しいUnlockCodeRepositoryを作成
func NewUnlockCodeRepository(db *DB) *UnlockCodeRepository {
	return &UnlockCodeRepository{
		db:     db,
		tracer: otel.Tracer("unlock-code-repository"),
		now:    time.Now,
	}
}

func scanUnlockCode(s scanner) (*unlock_code.UnlockCode, error) {
	var (
		rec                                  unlock_code.Record
		status                               string
		deviceLockedTo, ipLockedTo           sql.NullString
		redeemedBy, groupPackID, groupMember sql.NullString
		revokedReason                        sql.NullString
		redeemedAt, expiresAt                sql.NullTime
	)
	err := s.Scan(
		&rec.ID,
		&rec.Code,
		&rec.ReleaseID,
		&rec.CreatorID,
		&rec.BatchID,
		&status,
		&deviceLockedTo,
		&ipLockedTo,
		&redeemedBy,
		&redeemedAt,
		&groupPackID,
		&groupMember,
		&rec.DeviceChangeCount,
		&expiresAt,
		&revokedReason,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cs, err := unlock_code.NewCodeStatus(status)
	if err != nil {
		return nil, err
	}
	rec.Status = cs
	rec.DeviceLockedTo = deviceLockedTo.String
	rec.IPLockedTo = ipLockedTo.String
	rec.RedeemedBy = redeemedBy.String
	rec.RedeemedAt = timePtr(redeemedAt)
	rec.GroupPackID = groupPackID.String
	rec.GroupMemberID = groupMember.String
	rec.ExpiresAt = timePtr(expiresAt)
	rec.RevokedReason = revokedReason.String

	return unlock_code.Reconstruct(rec), nil
}

// FindByCode コード文字列で取得
func (r *UnlockCodeRepository) FindByCode(ctx context.Context, code string) (*unlock_code.UnlockCode, error) {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.FindByCode")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "unlock_codes"),
	)

	query := `SELECT` + unlockCodeColumns + ` FROM unlock_codes WHERE code = ?`
	uc, err := scanUnlockCode(r.db.conn(ctx).QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "unlock code not found")
		return nil, unlock_code.ErrCodeNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find unlock code: %w", err)
	}

	span.SetAttributes(
		attribute.String("db.code_id", uc.ID()),
		attribute.String("db.status", uc.Status().String()),
	)
	span.SetStatus(otelcodes.Ok, "unlock code found")
	return uc, nil
}

// FindByID IDで取得
func (r *UnlockCodeRepository) FindByID(ctx context.Context, id string) (*unlock_code.UnlockCode, error) {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.code_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "unlock_codes"),
	)

	query := `SELECT` + unlockCodeColumns + ` FROM unlock_codes WHERE id = ?`
	uc, err := scanUnlockCode(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "unlock code not found")
		return nil, unlock_code.ErrCodeNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find unlock code: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "unlock code found")
	return uc, nil
}

// FindByBatchID バッチ内のコードを作成順に取得
func (r *UnlockCodeRepository) FindByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*unlock_code.UnlockCode, int, error) {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.FindByBatchID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.batch_id", batchID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "unlock_codes"),
	)

	var total int
	if err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM unlock_codes WHERE batch_id = ?`, batchID,
	).Scan(&total); err != nil {
		fail(span, err)
		return nil, 0, fmt.Errorf("failed to count batch codes: %w", err)
	}

	query := `SELECT` + unlockCodeColumns + `
		FROM unlock_codes
		WHERE batch_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, batchID, limit, offset)
	if err != nil {
		fail(span, err)
		return nil, 0, fmt.Errorf("failed to find batch codes: %w", err)
	}
	defer rows.Close()

	var codes []*unlock_code.UnlockCode
	for rows.Next() {
		uc, err := scanUnlockCode(rows)
		if err != nil {
			fail(span, err)
			return nil, 0, fmt.Errorf("failed to scan unlock code: %w", err)
		}
		codes = append(codes, uc)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, 0, fmt.Errorf("failed to iterate unlock codes: %w", err)
	}

	span.SetAttributes(attribute.Int("db.total", total))
	span.SetStatus(otelcodes.Ok, "batch codes found")
	return codes, total, nil
}

// ExistingCodes 指定コードのうち保存済みのものを返す
func (r *UnlockCodeRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.ExistingCodes")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.candidates", len(codes)),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "unlock_codes"),
	)

	existing := make(map[string]struct{})
	for start := 0; start < len(codes); start += existenceCheckChunk {
		end := start + existenceCheckChunk
		if end > len(codes) {
			end = len(codes)
		}
		chunk := codes[start:end]

		query := `SELECT code FROM unlock_codes WHERE code IN (` + placeholders(len(chunk)) + `)`
		rows, err := r.db.conn(ctx).QueryContext(ctx, query, stringArgs(chunk)...)
		if err != nil {
			fail(span, err)
			return nil, fmt.Errorf("failed to check existing codes: %w", err)
		}
		for rows.Next() {
			var code string
			if err := rows.Scan(&code); err != nil {
				rows.Close()
				fail(span, err)
				return nil, fmt.Errorf("failed to scan existing code: %w", err)
			}
			existing[code] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			fail(span, err)
			return nil, fmt.Errorf("failed to iterate existing codes: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("db.existing", len(existing)))
	span.SetStatus(otelcodes.Ok, "existing codes checked")
	return existing, nil
}

// CreateBatch バッチとコードを保存
// 呼び出し側のトランザクション内で実行されることを前提とする
func (r *UnlockCodeRepository) CreateBatch(ctx context.Context, batch *unlock_code.CodeBatch, codes []*unlock_code.UnlockCode) error {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.CreateBatch")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.batch_id", batch.ID()),
		attribute.Int("db.quantity", len(codes)),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "code_batches,unlock_codes"),
	)

	p := batch.Pricing()
	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO code_batches (
			id, release_id, creator_id, quantity,
			price_per_code, subtotal, discount_amount, total_cost, currency,
			payment_reference, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID(),
		batch.ReleaseID(),
		batch.CreatorID(),
		batch.Quantity(),
		p.PricePerCode,
		p.Subtotal,
		p.DiscountAmount,
		p.TotalCost,
		p.Currency,
		batch.PaymentReference(),
		nullTime(batch.ExpiresAt()),
		batch.CreatedAt(),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to create code batch: %w", err)
	}

	for start := 0; start < len(codes); start += codeInsertChunk {
		end := start + codeInsertChunk
		if end > len(codes) {
			end = len(codes)
		}
		if err := r.insertCodes(ctx, codes[start:end]); err != nil {
			fail(span, err)
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %v", unlock_code.ErrDuplicateCode, err)
			}
			return fmt.Errorf("failed to create unlock codes: %w", err)
		}
	}

	span.SetStatus(otelcodes.Ok, "code batch created")
	return nil
}

func (r *UnlockCodeRepository) insertCodes(ctx context.Context, codes []*unlock_code.UnlockCode) error {
	const cols = 11
	rowPlaceholder := "(" + placeholders(cols) + ")"
	values := make([]string, len(codes))
	args := make([]interface{}, 0, len(codes)*cols)
	for i, uc := range codes {
		values[i] = rowPlaceholder
		args = append(args,
			uc.ID(),
			uc.Code(),
			uc.ReleaseID(),
			uc.CreatorID(),
			uc.BatchID(),
			uc.Status().String(),
			nullString(uc.GroupPackID()),
			nullString(uc.GroupMemberID()),
			nullTime(uc.ExpiresAt()),
			uc.CreatedAt(),
			uc.UpdatedAt(),
		)
	}

	query := `
		INSERT INTO unlock_codes (
			id, code, release_id, creator_id, batch_id, status,
			group_pack_id, group_member_id, expires_at, created_at, updated_at
		) VALUES ` + strings.Join(values, ", ")
	_, err := r.db.conn(ctx).ExecContext(ctx, query, args...)
	return err
}

// FindBatch バッチを取得
func (r *UnlockCodeRepository) FindBatch(ctx context.Context, id string) (*unlock_code.CodeBatch, error) {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.FindBatch")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.batch_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "code_batches"),
	)

	var (
		batchID, releaseID, creatorID, paymentRef string
		quantity                                  int
		p                                         unlock_code.BatchPricing
		expiresAt                                 sql.NullTime
		createdAt                                 time.Time
	)
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT
			id, release_id, creator_id, quantity,
			price_per_code, subtotal, discount_amount, total_cost, currency,
			payment_reference, expires_at, created_at
		FROM code_batches
		WHERE id = ?`, id,
	).Scan(
		&batchID,
		&releaseID,
		&creatorID,
		&quantity,
		&p.PricePerCode,
		&p.Subtotal,
		&p.DiscountAmount,
		&p.TotalCost,
		&p.Currency,
		&paymentRef,
		&expiresAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "code batch not found")
		return nil, unlock_code.ErrBatchNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find code batch: %w", err)
	}

	batch, err := unlock_code.NewCodeBatch(batchID, releaseID, creatorID, quantity, p, paymentRef, timePtr(expiresAt), createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid code batch: %w", err)
	}
	span.SetStatus(otelcodes.Ok, "code batch found")
	return batch, nil
}

// MarkRedeemed status = UNUSED の場合のみ REDEEMED に遷移させる
func (r *UnlockCodeRepository) MarkRedeemed(ctx context.Context, id string, red unlock_code.Redemption) error {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.MarkRedeemed")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.code_id", id),
		attribute.String("db.user_id", red.UserID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "unlock_codes"),
	)

	query := `
		UPDATE unlock_codes
		SET
			status = 'REDEEMED',
			redeemed_by = ?,
			redeemed_at = ?,
			device_locked_to = COALESCE(device_locked_to, NULLIF(?, '')),
			ip_locked_to = COALESCE(ip_locked_to, NULLIF(?, '')),
			updated_at = ?
		WHERE id = ?
			AND status = 'UNUSED'
			AND (expires_at IS NULL OR expires_at > ?)
	`
	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		red.UserID,
		red.RedeemedAt,
		red.DeviceFingerprint,
		red.IPAddress,
		red.RedeemedAt,
		id,
		red.RedeemedAt,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to mark unlock code redeemed: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	if n == 0 {
		span.SetStatus(otelcodes.Ok, "unlock code already redeemed")
		return unlock_code.ErrCodeAlreadyRedeemed
	}

	span.SetStatus(otelcodes.Ok, "unlock code redeemed")
	return nil
}

// ChangeDevice 変更回数が上限未満の場合のみデバイスロック先を変更する
func (r *UnlockCodeRepository) ChangeDevice(ctx context.Context, id, fingerprint string, limit int) error {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.ChangeDevice")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.code_id", id),
		attribute.Int("db.device_change_limit", limit),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "unlock_codes"),
	)

	query := `
		UPDATE unlock_codes
		SET
			device_locked_to = ?,
			device_change_count = device_change_count + 1,
			updated_at = ?
		WHERE id = ? AND device_change_count < ?
	`
	result, err := r.db.conn(ctx).ExecContext(ctx, query, fingerprint, r.now(), id, limit)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to change device lock: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	if n == 0 {
		span.SetStatus(otelcodes.Ok, "device change limit reached")
		return unlock_code.ErrDeviceChangeLimitReached
	}

	span.SetStatus(otelcodes.Ok, "device lock changed")
	return nil
}

// BulkUpdateStatus 一括操作を適用し、更新件数を返す
// 遷移できないコードは対象外として数えない
func (r *UnlockCodeRepository) BulkUpdateStatus(ctx context.Context, ids []string, action unlock_code.BulkAction, includeRedeemed bool) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "UnlockCodeRepository.BulkUpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.action", string(action)),
		attribute.Int("db.ids", len(ids)),
		attribute.Bool("db.include_redeemed", includeRedeemed),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "unlock_codes"),
	)

	if len(ids) == 0 {
		return 0, nil
	}

	var query string
	var args []interface{}
	switch action {
	case unlock_code.BulkActionRevoke, unlock_code.BulkActionMarkInvalid:
		statuses := []string{unlock_code.CodeStatusUnused.String()}
		if includeRedeemed {
			statuses = append(statuses, unlock_code.CodeStatusRedeemed.String())
		}
		query = `
			UPDATE unlock_codes
			SET status = 'REVOKED', revoked_reason = ?, updated_at = ?
			WHERE id IN (` + placeholders(len(ids)) + `)
				AND status IN (` + placeholders(len(statuses)) + `)`
		args = append(args, action.RevokedReason(), r.now())
		args = append(args, stringArgs(ids)...)
		args = append(args, stringArgs(statuses)...)
	case unlock_code.BulkActionMarkUnused:
		query = `
			UPDATE unlock_codes
			SET status = 'UNUSED', revoked_reason = NULL, updated_at = ?
			WHERE id IN (` + placeholders(len(ids)) + `)
				AND status = 'REVOKED'
				AND redeemed_by IS NULL`
		args = append(args, r.now())
		args = append(args, stringArgs(ids)...)
	default:
		return 0, unlock_code.ErrInvalidBulkAction
	}

	result, err := r.db.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		fail(span, err)
		return 0, fmt.Errorf("failed to bulk update unlock codes: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	span.SetStatus(otelcodes.Ok, "unlock codes updated")
	return n, nil
}
