package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"unlock-server/internal/domain/release"
)

func TestReleaseRepository_FindByID(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError error
	}{
		{
			name: "正常系: リリースを取得",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT creator_id, title, artist_name, cover_url, created_at FROM releases WHERE id = \?`).
					WithArgs("rel-1").
					WillReturnRows(sqlmock.NewRows([]string{"creator_id", "title", "artist_name", "cover_url", "created_at"}).
						AddRow("creator-1", "First Light", "The Band", nil, testNow))
			},
		},
		{
			name: "異常系: 存在しない",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM releases`).WillReturnError(sql.ErrNoRows)
			},
			wantError: release.ErrReleaseNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &ReleaseRepository{db: db, tracer: otel.Tracer("test")}
			tt.setupMock(mock)

			got, err := repo.FindByID(context.Background(), "rel-1")

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
				assert.True(t, got.IsOwnedBy("creator-1"))
				assert.Equal(t, "First Light", got.Title())
				assert.Empty(t, got.CoverURL())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReleaseRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &ReleaseRepository{db: db, tracer: otel.Tracer("test")}

	mock.ExpectExec(`INSERT INTO releases .* ON DUPLICATE KEY UPDATE`).
		WithArgs("rel-1", "creator-1", "First Light", "The Band", sql.NullString{String: "https://cdn.example.com/c.png", Valid: true}, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), release.NewRelease("rel-1", "creator-1", "First Light", "The Band", "https://cdn.example.com/c.png", testNow))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepository_Grant(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
	}{
		{
			name:         "正常系: 新規付与",
			rowsAffected: 1,
		},
		{
			name:         "正常系: 付与済みでもエラーにしない",
			rowsAffected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &AccessRepository{db: db, tracer: otel.Tracer("test")}

			mock.ExpectExec(`INSERT IGNORE INTO release_access`).
				WithArgs("user-1", "rel-1", "unlock_code", sql.NullString{String: "code-1", Valid: true}, testNow).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			err := repo.Grant(context.Background(), release.Access{
				UserID:    "user-1",
				ReleaseID: "rel-1",
				Source:    release.AccessSourceUnlockCode,
				CodeID:    "code-1",
				GrantedAt: testNow,
			})
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccessRepository_HasAccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &AccessRepository{db: db, tracer: otel.Tracer("test")}

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM release_access WHERE user_id = \? AND release_id = \?\)`).
		WithArgs("user-1", "rel-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasAccess(context.Background(), "user-1", "rel-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
