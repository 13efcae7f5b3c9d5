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

	"unlock-server/internal/domain/group_pack"
)

const packColumns = `
	id, release_id, creator_id, owner_id, pack_type, batch_id,
	max_members, current_members,
	original_price, discounted_price, discount_percent,
	is_active, expires_at, created_at`

const memberColumns = `
	id, pack_id, user_id, invite_code, role, unlock_code_id,
	has_redeemed, redeemed_code_id, joined_at, redeemed_at`

// GroupPackRepository MySQL実装のGroupPackRepository
type GroupPackRepository struct {
	db     *DB
	tracer trace.Tracer
	now    func() time.Time
}

// NewGroupPackRepository 新しいGroupPackRepositoryを作成
func NewGroupPackRepository(db *DB) *GroupPackRepository {
	return &GroupPackRepository{
		db:     db,
		tracer: otel.Tracer("group-pack-repository"),
		now:    time.Now,
	}
}

func scanPack(s scanner) (*group_pack.GroupCodePack, error) {
	var rec group_pack.PackRecord
	var expiresAt sql.NullTime
	err := s.Scan(
		&rec.ID,
		&rec.ReleaseID,
		&rec.CreatorID,
		&rec.OwnerID,
		&rec.PackType,
		&rec.BatchID,
		&rec.MaxMembers,
		&rec.CurrentMembers,
		&rec.Pricing.OriginalPrice,
		&rec.Pricing.DiscountedPrice,
		&rec.Pricing.DiscountPercent,
		&rec.IsActive,
		&expiresAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ExpiresAt = timePtr(expiresAt)
	return group_pack.ReconstructPack(rec), nil
}

func scanMember(s scanner) (*group_pack.PackMember, error) {
	var rec group_pack.MemberRecord
	var role string
	var userID, redeemedCodeID sql.NullString
	var joinedAt, redeemedAt sql.NullTime
	err := s.Scan(
		&rec.ID,
		&rec.PackID,
		&userID,
		&rec.InviteCode,
		&role,
		&rec.UnlockCodeID,
		&rec.HasRedeemed,
		&redeemedCodeID,
		&joinedAt,
		&redeemedAt,
	)
	if err != nil {
		return nil, err
	}
	r, err := group_pack.NewMemberRole(role)
	if err != nil {
		return nil, err
	}
	rec.Role = r
	rec.UserID = userID.String
	rec.RedeemedCodeID = redeemedCodeID.String
	rec.JoinedAt = timePtr(joinedAt)
	rec.RedeemedAt = timePtr(redeemedAt)
	return group_pack.ReconstructMember(rec), nil
}

// Create パックと全メンバースロットを保存
func (r *GroupPackRepository) Create(ctx context.Context, pack *group_pack.GroupCodePack, members []*group_pack.PackMember) error {
	ctx, span := r.tracer.Start(ctx, "GroupPackRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.pack_id", pack.ID()),
		attribute.Int("db.members", len(members)),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "group_code_packs,pack_members"),
	)

	p := pack.Pricing()
	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO group_code_packs (`+packColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pack.ID(),
		pack.ReleaseID(),
		pack.CreatorID(),
		pack.OwnerID(),
		pack.PackType(),
		pack.BatchID(),
		pack.MaxMembers(),
		pack.CurrentMembers(),
		p.OriginalPrice,
		p.DiscountedPrice,
		p.DiscountPercent,
		pack.IsActive(),
		nullTime(pack.ExpiresAt()),
		pack.CreatedAt(),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to create group pack: %w", err)
	}

	if len(members) > 0 {
		values := make([]string, len(members))
		args := make([]interface{}, 0, len(members)*10)
		for i, m := range members {
			values[i] = "(" + placeholders(10) + ")"
			args = append(args,
				m.ID(),
				m.PackID(),
				nullString(m.UserID()),
				m.InviteCode(),
				string(m.Role()),
				m.UnlockCodeID(),
				m.HasRedeemed(),
				nullString(m.RedeemedCodeID()),
				nullTime(m.JoinedAt()),
				nullTime(m.RedeemedAt()),
			)
		}
		query := `INSERT INTO pack_members (` + memberColumns + `) VALUES ` + strings.Join(values, ", ")
		if _, err := r.db.conn(ctx).ExecContext(ctx, query, args...); err != nil {
			fail(span, err)
			return fmt.Errorf("failed to create pack members: %w", err)
		}
	}

	span.SetStatus(otelcodes.Ok, "group pack created")
	return nil
}

// FindByID パックを取得
func (r *GroupPackRepository) FindByID(ctx context.Context, id string) (*group_pack.GroupCodePack, error) {
	ctx, span := r.tracer.Start(ctx, "GroupPackRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.pack_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "group_code_packs"),
	)

	query := `SELECT` + packColumns + ` FROM group_code_packs WHERE id = ?`
	pack, err := scanPack(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "group pack not found")
		return nil, group_pack.ErrPackNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find group pack: %w", err)
	}

	span.SetAttributes(attribute.Int("db.current_members", pack.CurrentMembers()))
	span.SetStatus(otelcodes.Ok, "group pack found")
	return pack, nil
}

// FindMembers パックの全メンバースロットを取得（所有者が先頭）
func (r *GroupPackRepository) FindMembers(ctx context.Context, packID string) ([]*group_pack.PackMember, error) {
	ctx, span := r.tracer.Start(ctx, "GroupPackRepository.FindMembers")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.pack_id", packID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "pack_members"),
	)

	query := `SELECT` + memberColumns + `
		FROM pack_members
		WHERE pack_id = ?
		ORDER BY role = 'owner' DESC, id ASC`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, packID)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find pack members: %w", err)
	}
	defer rows.Close()

	var members []*group_pack.PackMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			fail(span, err)
			return nil, fmt.Errorf("failed to scan pack member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to iterate pack members: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "pack members found")
	return members, nil
}

func (r *GroupPackRepository) findMemberBy(ctx context.Context, spanName, where string, args ...interface{}) (*group_pack.PackMember, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "pack_members"),
	)

	query := `SELECT` + memberColumns + ` FROM pack_members WHERE ` + where
	m, err := scanMember(r.db.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "pack member not found")
		return nil, group_pack.ErrMemberNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find pack member: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "pack member found")
	return m, nil
}

// FindMember メンバースロットをIDで取得
func (r *GroupPackRepository) FindMember(ctx context.Context, memberID string) (*group_pack.PackMember, error) {
	return r.findMemberBy(ctx, "GroupPackRepository.FindMember", "id = ?", memberID)
}

// FindMemberByInviteCode 招待コードでメンバースロットを取得
func (r *GroupPackRepository) FindMemberByInviteCode(ctx context.Context, inviteCode string) (*group_pack.PackMember, error) {
	m, err := r.findMemberBy(ctx, "GroupPackRepository.FindMemberByInviteCode", "invite_code = ?", inviteCode)
	if errors.Is(err, group_pack.ErrMemberNotFound) {
		return nil, group_pack.ErrInviteCodeNotFound
	}
	return m, err
}

// FindMemberByUser パック内のユーザーのスロットを取得
func (r *GroupPackRepository) FindMemberByUser(ctx context.Context, packID, userID string) (*group_pack.PackMember, error) {
	return r.findMemberBy(ctx, "GroupPackRepository.FindMemberByUser", "pack_id = ? AND user_id = ?", packID, userID)
}

// ClaimSlot user_id IS NULL のスロットのみユーザーに割り当てる
func (r *GroupPackRepository) ClaimSlot(ctx context.Context, memberID, userID string, joinedAt time.Time) error {
	ctx, span := r.tracer.Start(ctx, "GroupPackRepository.ClaimSlot")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.member_id", memberID),
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "pack_members"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE pack_members
		SET user_id = ?, joined_at = ?
		WHERE id = ? AND user_id IS NULL`,
		userID, joinedAt, memberID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			span.SetStatus(otelcodes.Ok, "user already a member")
			return group_pack.ErrAlreadyAMember
		}
		fail(span, err)
		return fmt.Errorf("failed to claim pack slot: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	if n == 0 {
		span.SetStatus(otelcodes.Ok, "slot already claimed")
		return group_pack.ErrInviteCodeClaimed
	}

	span.SetStatus(otelcodes.Ok, "slot claimed")
	return nil
}

// IncrementMembers current_members < max_members かつ有効なパックのみ人数を増やす
func (r *GroupPackRepository) IncrementMembers(ctx context.Context, packID string) error {
	ctx, span := r.tracer.Start(ctx, "GroupPackRepository.IncrementMembers")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.pack_id", packID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "group_code_packs"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE group_code_packs
		SET current_members = current_members + 1
		WHERE id = ?
			AND is_active = 1
			AND current_members < max_members
			AND (expires_at IS NULL OR expires_at > ?)`,
		packID, r.now(),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to increment pack members: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	if n == 0 {
		span.SetStatus(otelcodes.Ok, "pack full")
		return group_pack.ErrPackFull
	}

	span.SetStatus(otelcodes.Ok, "pack members incremented")
	return nil
}

// MarkMemberRedeemed has_redeemed = false のスロットのみ引き換え済みにする
func (r *GroupPackRepository) MarkMemberRedeemed(ctx context.Context, memberID, unlockCodeID string, at time.Time) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "GroupPackRepository.MarkMemberRedeemed")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.member_id", memberID),
		attribute.String("db.unlock_code_id", unlockCodeID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "pack_members"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE pack_members
		SET has_redeemed = 1, redeemed_code_id = ?, redeemed_at = ?
		WHERE id = ? AND has_redeemed = 0`,
		unlockCodeID, at, memberID,
	)
	if err != nil {
		fail(span, err)
		return false, fmt.Errorf("failed to mark member redeemed: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return false, err
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	span.SetStatus(otelcodes.Ok, "member redemption recorded")
	return n > 0, nil
}
