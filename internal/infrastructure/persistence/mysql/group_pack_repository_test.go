package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"unlock-server/internal/domain/group_pack"
)

func newGroupPackRepo(t *testing.T) (*GroupPackRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return &GroupPackRepository{
		db:     db,
		tracer: otel.Tracer("test"),
		now:    func() time.Time { return testNow },
	}, mock
}

func packRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "release_id", "creator_id", "owner_id", "pack_type", "batch_id",
		"max_members", "current_members",
		"original_price", "discounted_price", "discount_percent",
		"is_active", "expires_at", "created_at",
	})
}

func memberRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "pack_id", "user_id", "invite_code", "role", "unlock_code_id",
		"has_redeemed", "redeemed_code_id", "joined_at", "redeemed_at",
	})
}

func TestGroupPackRepository_FindByID(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError error
	}{
		{
			name: "正常系: パックが見つかる",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM group_code_packs WHERE id = \?`).
					WithArgs("pack-1").
					WillReturnRows(packRows().AddRow(
						"pack-1", "rel-1", "creator-1", "owner-1", "standard", "batch-1",
						4, 2,
						"200.00", "180.00", "10.00",
						true, nil, testNow,
					))
			},
		},
		{
			name: "異常系: パックが見つからない",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM group_code_packs`).
					WillReturnError(sql.ErrNoRows)
			},
			wantError: group_pack.ErrPackNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newGroupPackRepo(t)
			tt.setupMock(mock)

			got, err := repo.FindByID(context.Background(), "pack-1")

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 4, got.MaxMembers())
				assert.Equal(t, 2, got.CurrentMembers())
				assert.Equal(t, 2, got.RemainingSlots())
				assert.True(t, got.IsActive())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGroupPackRepository_FindMemberByInviteCode(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantOpen  bool
		wantError error
	}{
		{
			name: "正常系: 空きスロット",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM pack_members WHERE invite_code = \?`).
					WithArgs("INVITE1234").
					WillReturnRows(memberRows().AddRow(
						"member-2", "pack-1", nil, "INVITE1234", "member", "code-2",
						false, nil, nil, nil,
					))
			},
			wantOpen: true,
		},
		{
			name: "異常系: 招待コードが存在しない",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM pack_members WHERE invite_code = \?`).
					WillReturnError(sql.ErrNoRows)
			},
			wantError: group_pack.ErrInviteCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newGroupPackRepo(t)
			tt.setupMock(mock)

			got, err := repo.FindMemberByInviteCode(context.Background(), "INVITE1234")

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOpen, got.IsOpen())
				assert.Equal(t, group_pack.MemberRoleMember, got.Role())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGroupPackRepository_ClaimSlot(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError error
	}{
		{
			name: "正常系: 空きスロットを取得",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE pack_members SET user_id = \?, joined_at = \? WHERE id = \? AND user_id IS NULL`).
					WithArgs("user-2", testNow, "member-2").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "異常系: 既に取得済みのスロット",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE pack_members`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantError: group_pack.ErrInviteCodeClaimed,
		},
		{
			name: "異常系: 同じパックに参加済み（一意制約違反）",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE pack_members`).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
			},
			wantError: group_pack.ErrAlreadyAMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newGroupPackRepo(t)
			tt.setupMock(mock)

			err := repo.ClaimSlot(context.Background(), "member-2", "user-2", testNow)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGroupPackRepository_IncrementMembers(t *testing.T) {
	tests := []struct {
		name      string
		affected  int64
		wantError error
	}{
		{
			name:     "正常系: 人数を増やす",
			affected: 1,
		},
		{
			name:      "異常系: 満員",
			affected:  0,
			wantError: group_pack.ErrPackFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newGroupPackRepo(t)
			mock.ExpectExec(`UPDATE group_code_packs SET current_members = current_members \+ 1 WHERE id = \? AND is_active = 1 AND current_members < max_members`).
				WithArgs("pack-1", testNow).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.IncrementMembers(context.Background(), "pack-1")

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGroupPackRepository_MarkMemberRedeemed(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      bool
		wantError bool
	}{
		{
			name: "正常系: 初回の引き換え",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE pack_members SET has_redeemed = 1 .* WHERE id = \? AND has_redeemed = 0`).
					WithArgs("code-2", testNow, "member-2").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: true,
		},
		{
			name: "正常系: 既に引き換え済みなら変更なし",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE pack_members`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: false,
		},
		{
			name: "異常系: DBエラー",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE pack_members`).
					WillReturnError(errors.New("connection reset"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newGroupPackRepo(t)
			tt.setupMock(mock)

			got, err := repo.MarkMemberRedeemed(context.Background(), "member-2", "code-2", testNow)

			if tt.wantError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGroupPackRepository_Create(t *testing.T) {
	repo, mock := newGroupPackRepo(t)

	pack := group_pack.MustNewGroupCodePack("pack-1", "rel-1", "creator-1", "owner-1", 3, nil)
	owner, err := group_pack.NewOwnerSlot("member-1", "pack-1", "owner-1", "INVITE0001", "code-1", testNow)
	require.NoError(t, err)
	open1, err := group_pack.NewOpenSlot("member-2", "pack-1", "INVITE0002", "code-2")
	require.NoError(t, err)
	open2, err := group_pack.NewOpenSlot("member-3", "pack-1", "INVITE0003", "code-3")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO group_code_packs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO pack_members .* VALUES \(.*\), \(.*\), \(.*\)`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err = repo.Create(context.Background(), pack, []*group_pack.PackMember{owner, open1, open2})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
