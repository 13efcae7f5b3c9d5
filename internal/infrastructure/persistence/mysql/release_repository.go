package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/release"
)

// ReleaseRepository MySQL実装のReleaseRepository
type ReleaseRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewReleaseRepository 新しいReleaseRepositoryを作成
func NewReleaseRepository(db *DB) *ReleaseRepository {
	return &ReleaseRepository{
		db:     db,
		tracer: otel.Tracer("release-repository"),
	}
}

// FindByID リリースを取得
func (r *ReleaseRepository) FindByID(ctx context.Context, id string) (*release.Release, error) {
	ctx, span := r.tracer.Start(ctx, "ReleaseRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.release_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "releases"),
	)

	var creatorID, title, artist string
	var coverURL sql.NullString
	var createdAt time.Time
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT creator_id, title, artist_name, cover_url, created_at
		FROM releases
		WHERE id = ?`,
		id,
	).Scan(&creatorID, &title, &artist, &coverURL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "release not found")
		return nil, release.ErrReleaseNotFound
	}
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("failed to find release: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "release found")
	return release.NewRelease(id, creatorID, title, artist, coverURL.String, createdAt), nil
}

// Save リリースを登録（存在する場合はメタデータを更新）
func (r *ReleaseRepository) Save(ctx context.Context, rel *release.Release) error {
	ctx, span := r.tracer.Start(ctx, "ReleaseRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.release_id", rel.ID()),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.table", "releases"),
	)

	_, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO releases (id, creator_id, title, artist_name, cover_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title),
			artist_name = VALUES(artist_name),
			cover_url = VALUES(cover_url)`,
		rel.ID(),
		rel.CreatorID(),
		rel.Title(),
		rel.ArtistName(),
		nullString(rel.CoverURL()),
		rel.CreatedAt(),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to save release: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "release saved")
	return nil
}

// AccessRepository MySQL実装のAccessRepository
type AccessRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewAccessRepository 新しいAccessRepositoryを作成
func NewAccessRepository(db *DB) *AccessRepository {
	return &AccessRepository{
		db:     db,
		tracer: otel.Tracer("access-repository"),
	}
}

// Grant アクセス権を付与（既存の付与は保持する）
func (r *AccessRepository) Grant(ctx context.Context, a release.Access) error {
	ctx, span := r.tracer.Start(ctx, "AccessRepository.Grant")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", a.UserID),
		attribute.String("db.release_id", a.ReleaseID),
		attribute.String("db.source", string(a.Source)),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "release_access"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx, `
		INSERT IGNORE INTO release_access (user_id, release_id, source, code_id, granted_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.UserID,
		a.ReleaseID,
		string(a.Source),
		nullString(a.CodeID),
		a.GrantedAt,
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("failed to grant release access: %w", err)
	}

	n, err := rowsAffected(span, result)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Bool("db.already_granted", n == 0))
	span.SetStatus(otelcodes.Ok, "release access granted")
	return nil
}

// HasAccess アクセス権を持っているかどうか
func (r *AccessRepository) HasAccess(ctx context.Context, userID, releaseID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "AccessRepository.HasAccess")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.release_id", releaseID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "release_access"),
	)

	var exists bool
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM release_access WHERE user_id = ? AND release_id = ?)`,
		userID, releaseID,
	).Scan(&exists)
	if err != nil {
		fail(span, err)
		return false, fmt.Errorf("failed to check release access: %w", err)
	}

	span.SetAttributes(attribute.Bool("db.has_access", exists))
	span.SetStatus(otelcodes.Ok, "release access checked")
	return exists, nil
}
