package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"unlock-server/internal/domain/wallet"
)

func newWalletRepo(t *testing.T) (*WalletRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return &WalletRepository{
		db:     db,
		tracer: otel.Tracer("test"),
		now:    func() time.Time { return testNow },
	}, mock
}

func TestWalletRepository_FindByOwner(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(mock sqlmock.Sqlmock)
		wantError   error
		wantBalance string
	}{
		{
			name: "正常系: ウォレットを取得",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT balance, version FROM creator_wallets WHERE owner_id = \? AND currency = \?`).
					WithArgs("creator-1", "USD").
					WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow("300.00", 4))
			},
			wantBalance: "300",
		},
		{
			name: "異常系: 存在しない",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT balance, version FROM creator_wallets`).
					WillReturnError(sql.ErrNoRows)
			},
			wantError: wallet.ErrWalletNotFound,
		},
		{
			name: "異常系: データベースエラー",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT balance, version FROM creator_wallets`).
					WillReturnError(errors.New("connection reset"))
			},
			wantError: errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newWalletRepo(t)
			tt.setupMock(mock)

			got, err := repo.FindByOwner(context.Background(), "creator-1", "USD")

			if tt.wantError != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError.Error())
			} else {
				require.NoError(t, err)
				assert.True(t, decimal.RequireFromString(tt.wantBalance).Equal(got.Balance()))
				assert.Equal(t, 4, got.Version())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWalletRepository_Save(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantError    error
	}{
		{
			name:         "正常系: 引き落とし後の保存",
			rowsAffected: 1,
		},
		{
			name:         "異常系: バージョン競合",
			rowsAffected: 0,
			wantError:    wallet.ErrConcurrentUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newWalletRepo(t)

			w := wallet.MustNewWallet("creator-1", "USD", decimal.RequireFromString("300"), 4)
			require.NoError(t, w.Debit(decimal.RequireFromString("250")))

			mock.ExpectExec(`UPDATE creator_wallets SET balance = \?, version = \?, updated_at = \? WHERE owner_id = \? AND currency = \? AND version = \?`).
				WithArgs(decimal.RequireFromString("50"), 5, testNow, "creator-1", "USD", 4).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			err := repo.Save(context.Background(), w)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWalletRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		execErr   error
		wantError error
	}{
		{
			name: "正常系: 作成",
		},
		{
			name:      "異常系: 既に存在する",
			execErr:   &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"},
			wantError: wallet.ErrConcurrentUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newWalletRepo(t)
			exp := mock.ExpectExec(`INSERT INTO creator_wallets`).
				WithArgs("creator-1", "USD", decimal.Zero, 0, testNow)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.Create(context.Background(), wallet.MustNewWallet("creator-1", "USD", decimal.Zero, 0))

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
