package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/security"
)

// singletonConfigID セキュリティ設定は1行のみ保持する
const singletonConfigID = 1

// SecurityConfigurationRepository MySQL実装のConfigurationRepository
type SecurityConfigurationRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewSecurityConfigurationRepository 新しいSecurityConfigurationRepositoryを作成
func NewSecurityConfigurationRepository(db *DB) *SecurityConfigurationRepository {
	return &SecurityConfigurationRepository{
		db:     db,
		tracer: otel.Tracer("security-configuration-repository"),
	}
}

// Find 保存済みの設定を取得
func (r *SecurityConfigurationRepository) Find(ctx context.Context) (*security.Configuration, error) {
	ctx, span := r.tracer.Start(ctx, "SecurityConfigurationRepository.Find")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "security_configurations"),
	)

	var settings []byte
	var updatedBy sql.NullString
	var updatedAt time.Time
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT settings, updated_by, updated_at FROM security_configurations WHERE id = ?`,
		singletonConfigID,
	).Scan(&settings, &updatedBy, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "security configuration not found")
		return nil, security.ErrConfigurationNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find security configuration: %w", err)
	}

	cfg := security.DefaultConfiguration()
	if err := json.Unmarshal(settings, &cfg); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to unmarshal security configuration: %w", err)
	}
	cfg.UpdatedBy = updatedBy.String
	cfg.UpdatedAt = updatedAt

	span.SetStatus(otelcodes.Ok, "security configuration found")
	return &cfg, nil
}

// Save 設定を保存
func (r *SecurityConfigurationRepository) Save(ctx context.Context, cfg security.Configuration) error {
	ctx, span := r.tracer.Start(ctx, "SecurityConfigurationRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.updated_by", cfg.UpdatedBy),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.table", "security_configurations"),
	)

	settings, err := json.Marshal(cfg)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to marshal security configuration: %w", err)
	}

	_, err = r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO security_configurations (id, settings, updated_by, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			settings = VALUES(settings),
			updated_by = VALUES(updated_by),
			updated_at = VALUES(updated_at)`,
		singletonConfigID, string(settings), nullString(cfg.UpdatedBy), cfg.UpdatedAt,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to save security configuration: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "security configuration saved")
	return nil
}

// identityFilter ユーザーまたはIPに一致する条件を組み立てる
// どちらも空の場合は ok = false
func identityFilter(userColumn, ipColumn, userID, ipAddress string) (string, []interface{}, bool) {
	var conds []string
	var args []interface{}
	if userID != "" {
		conds = append(conds, userColumn+" = ?")
		args = append(args, userID)
	}
	if ipAddress != "" {
		conds = append(conds, ipColumn+" = ?")
		args = append(args, ipAddress)
	}
	if len(conds) == 0 {
		return "", nil, false
	}
	return "(" + strings.Join(conds, " OR ") + ")", args, true
}

const signalColumns = `
	id, code_id, user_id, ip_address, reason, score, details,
	resolved, resolved_by, resolved_at, flagged_at`

// FraudSignalRepository MySQL実装のFraudSignalRepository
type FraudSignalRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewFraudSignalRepository 新しいFraudSignalRepositoryを作成
func NewFraudSignalRepository(db *DB) *FraudSignalRepository {
	return &FraudSignalRepository{
		db:     db,
		tracer: otel.Tracer("fraud-signal-repository"),
	}
}

func scanSignal(s scanner) (*security.FraudSignal, error) {
	var rec security.SignalRecord
	var codeID, userID, ip, resolvedBy sql.NullString
	var reason string
	var details []byte
	var resolvedAt sql.NullTime
	err := s.Scan(
		&rec.ID,
		&codeID,
		&userID,
		&ip,
		&reason,
		&rec.Score,
		&details,
		&rec.Resolved,
		&resolvedBy,
		&resolvedAt,
		&rec.FlaggedAt,
	)
	if err != nil {
		return nil, err
	}
	rr, err := security.NewReason(reason)
	if err != nil {
		return nil, err
	}
	rec.Reason = rr
	rec.CodeID = codeID.String
	rec.UserID = userID.String
	rec.IPAddress = ip.String
	rec.ResolvedBy = resolvedBy.String
	rec.ResolvedAt = timePtr(resolvedAt)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}
	return security.ReconstructSignal(rec), nil
}

// Save シグナルを保存
func (r *FraudSignalRepository) Save(ctx context.Context, signal *security.FraudSignal) error {
	ctx, span := r.tracer.Start(ctx, "FraudSignalRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.signal_id", signal.ID()),
		attribute.String("db.reason", signal.Reason().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "fraud_signals"),
	)

	var details interface{}
	if len(signal.Details()) > 0 {
		b, err := json.Marshal(signal.Details())
		if err != nil {
			fail(span, err)
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		details = string(b)
	}

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO fraud_signals (`+signalColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		signal.ID(),
		nullString(signal.CodeID()),
		nullString(signal.UserID()),
		nullString(signal.IPAddress()),
		signal.Reason().String(),
		signal.Score(),
		details,
		signal.Resolved(),
		nullString(signal.ResolvedBy()),
		nullTime(signal.ResolvedAt()),
		signal.FlaggedAt(),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to save fraud signal: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "fraud signal saved")
	return nil
}

// FindByID シグナルを取得
func (r *FraudSignalRepository) FindByID(ctx context.Context, id string) (*security.FraudSignal, error) {
	ctx, span := r.tracer.Start(ctx, "FraudSignalRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.signal_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "fraud_signals"),
	)

	query := `SELECT` + signalColumns + ` FROM fraud_signals WHERE id = ?`
	sig, err := scanSignal(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "fraud signal not found")
		return nil, security.ErrFraudSignalNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find fraud signal: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "fraud signal found")
	return sig, nil
}

// List 条件に一致するシグナルを新しい順に取得
func (r *FraudSignalRepository) List(ctx context.Context, filter security.SignalFilter) ([]*security.FraudSignal, int, error) {
	ctx, span := r.tracer.Start(ctx, "FraudSignalRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", filter.Limit),
		attribute.Int("db.offset", filter.Offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "fraud_signals"),
	)

	where := []string{"1 = 1"}
	var args []interface{}
	if filter.Resolved != nil {
		where = append(where, "resolved = ?")
		args = append(args, *filter.Resolved)
	}
	if filter.Reason != "" {
		where = append(where, "reason = ?")
		args = append(args, filter.Reason.String())
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fraud_signals WHERE `+whereClause, args...,
	).Scan(&total); err != nil {
		fail(span, err)
		return nil, 0, fmt.Errorf("failed to count fraud signals: %w", err)
	}

	query := `SELECT` + signalColumns + ` FROM fraud_signals WHERE ` + whereClause + `
		ORDER BY flagged_at DESC, id ASC
		LIMIT ? OFFSET ?`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		fail(span, err)
		return nil, 0, fmt.Errorf("failed to list fraud signals: %w", err)
	}
	defer rows.Close()

	var signals []*security.FraudSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			fail(span, err)
			return nil, 0, fmt.Errorf("failed to scan fraud signal: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, 0, fmt.Errorf("failed to iterate fraud signals: %w", err)
	}

	span.SetAttributes(attribute.Int("db.total", total))
	span.SetStatus(otelcodes.Ok, "fraud signals listed")
	return signals, total, nil
}

// Resolve 未解決のシグナルのみ解決済みにする
func (r *FraudSignalRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "FraudSignalRepository.Resolve")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.signal_id", id),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "fraud_signals"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE fraud_signals
		SET resolved = 1, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND resolved = 0`,
		resolvedBy, at, id,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to resolve fraud signal: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	if n == 0 {
		// 存在しないのか解決済みなのかを区別する
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		span.SetStatus(otelcodes.Ok, "fraud signal already resolved")
		return security.ErrFraudSignalResolved
	}

	span.SetStatus(otelcodes.Ok, "fraud signal resolved")
	return nil
}

// CountUnresolved ユーザーまたはIPに紐づく未解決シグナル数
func (r *FraudSignalRepository) CountUnresolved(ctx context.Context, userID, ipAddress string, since time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "FraudSignalRepository.CountUnresolved")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "fraud_signals"),
	)

	cond, args, ok := identityFilter("user_id", "ip_address", userID, ipAddress)
	if !ok {
		return 0, nil
	}

	var count int
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fraud_signals WHERE resolved = 0 AND flagged_at >= ? AND `+cond,
		append([]interface{}{since}, args...)...,
	).Scan(&count)
	if err != nil {
		fail(span, err)
		return 0, fmt.Errorf("failed to count unresolved fraud signals: %w", err)
	}

	span.SetAttributes(attribute.Int("db.count", count))
	span.SetStatus(otelcodes.Ok, "unresolved fraud signals counted")
	return count, nil
}

// AttemptLogRepository MySQL実装のAttemptLogRepository
type AttemptLogRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewAttemptLogRepository 新しいAttemptLogRepositoryを作成
func NewAttemptLogRepository(db *DB) *AttemptLogRepository {
	return &AttemptLogRepository{
		db:     db,
		tracer: otel.Tracer("attempt-log-repository"),
	}
}

// Save 試行ログを追記
func (r *AttemptLogRepository) Save(ctx context.Context, a *security.RedemptionAttempt) error {
	ctx, span := r.tracer.Start(ctx, "AttemptLogRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.attempt_id", a.ID),
		attribute.Bool("db.success", a.Success),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "redemption_attempts"),
	)

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO redemption_attempts (
			id, code_id, submitted_code, user_id, ip_address, user_agent,
			device_fingerprint, success, failure_reason, attempted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		nullString(a.CodeID),
		a.SubmittedCode,
		nullString(a.UserID),
		nullString(a.IPAddress),
		nullString(a.UserAgent),
		nullString(a.DeviceFingerprint),
		a.Success,
		nullString(a.FailureReason),
		a.AttemptedAt,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to save redemption attempt: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "redemption attempt saved")
	return nil
}

func (r *AttemptLogRepository) count(ctx context.Context, spanName, query string, args ...interface{}) (int, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "redemption_attempts"),
	)

	var count int
	if err := r.db.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		fail(span, err)
		return 0, fmt.Errorf("failed to count redemption attempts: %w", err)
	}

	span.SetAttributes(attribute.Int("db.count", count))
	span.SetStatus(otelcodes.Ok, "redemption attempts counted")
	return count, nil
}

// CountFailed ユーザーまたはIPによる失敗試行数
func (r *AttemptLogRepository) CountFailed(ctx context.Context, userID, ipAddress string, since time.Time) (int, error) {
	cond, args, ok := identityFilter("user_id", "ip_address", userID, ipAddress)
	if !ok {
		return 0, nil
	}
	return r.count(ctx, "AttemptLogRepository.CountFailed",
		`SELECT COUNT(*) FROM redemption_attempts WHERE success = 0 AND attempted_at >= ? AND `+cond,
		append([]interface{}{since}, args...)...,
	)
}

// CountDistinctDevices ユーザーが使用したデバイス数
func (r *AttemptLogRepository) CountDistinctDevices(ctx context.Context, userID string, since time.Time) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return r.count(ctx, "AttemptLogRepository.CountDistinctDevices", `
		SELECT COUNT(DISTINCT device_fingerprint)
		FROM redemption_attempts
		WHERE user_id = ? AND attempted_at >= ? AND device_fingerprint IS NOT NULL`,
		userID, since,
	)
}

// CountDistinctUsersForDevice デバイスを使用したアカウント数
func (r *AttemptLogRepository) CountDistinctUsersForDevice(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	if fingerprint == "" {
		return 0, nil
	}
	return r.count(ctx, "AttemptLogRepository.CountDistinctUsersForDevice", `
		SELECT COUNT(DISTINCT user_id)
		FROM redemption_attempts
		WHERE device_fingerprint = ? AND attempted_at >= ? AND user_id IS NOT NULL`,
		fingerprint, since,
	)
}

// FindBySubmittedCode 提出されたコードの試行ログを新しい順に取得
func (r *AttemptLogRepository) FindBySubmittedCode(ctx context.Context, code string, limit int) ([]*security.RedemptionAttempt, error) {
	ctx, span := r.tracer.Start(ctx, "AttemptLogRepository.FindBySubmittedCode")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "redemption_attempts"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, `
		SELECT
			id, code_id, submitted_code, user_id, ip_address, user_agent,
			device_fingerprint, success, failure_reason, attempted_at
		FROM redemption_attempts
		WHERE submitted_code = ?
		ORDER BY attempted_at DESC, id ASC
		LIMIT ?`,
		code, limit,
	)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find redemption attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*security.RedemptionAttempt
	for rows.Next() {
		var a security.RedemptionAttempt
		var codeID, userID, ip, ua, device, reason sql.NullString
		if err := rows.Scan(
			&a.ID,
			&codeID,
			&a.SubmittedCode,
			&userID,
			&ip,
			&ua,
			&device,
			&a.Success,
			&reason,
			&a.AttemptedAt,
		); err != nil {
			fail(span, err)
			return nil, fmt.Errorf("failed to scan redemption attempt: %w", err)
		}
		a.CodeID = codeID.String
		a.UserID = userID.String
		a.IPAddress = ip.String
		a.UserAgent = ua.String
		a.DeviceFingerprint = device.String
		a.FailureReason = reason.String
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to iterate redemption attempts: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "redemption attempts found")
	return attempts, nil
}
