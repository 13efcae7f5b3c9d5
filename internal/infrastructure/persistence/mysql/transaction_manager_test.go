package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestTransactionManager_WithTransaction(t *testing.T) {
	tests := []struct {
		name      string
		fn        func(ctx context.Context) error
		setupMock func(mock sqlmock.Sqlmock)
		wantError bool
		wantPanic bool
	}{
		{
			name: "正常系: トランザクション成功",
			fn: func(ctx context.Context) error {
				return nil
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
		},
		{
			name: "正常系: トランザクションロールバック（エラー発生）",
			fn: func(ctx context.Context) error {
				return errors.New("test error")
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			wantError: true,
		},
		{
			name: "異常系: Beginエラー",
			fn: func(ctx context.Context) error {
				return nil
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("begin error"))
			},
			wantError: true,
		},
		{
			name: "異常系: Commitエラー",
			fn: func(ctx context.Context) error {
				return nil
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(errors.New("commit error"))
			},
			wantError: true,
		},
		{
			name: "正常系: パニック発生時もロールバック",
			fn: func(ctx context.Context) error {
				panic("test panic")
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tm := NewTransactionManager(db)
			tt.setupMock(mock)

			if tt.wantPanic {
				assert.PanicsWithValue(t, "test panic", func() {
					_ = tm.WithTransaction(context.Background(), tt.fn)
				})
			} else {
				err := tm.WithTransaction(context.Background(), tt.fn)
				if tt.wantError {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionManager_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE unlock_codes`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		outer, ok := ctx.Value(txKey{}).(*sql.Tx)
		assert.True(t, ok)

		if err := tm.WithTransaction(ctx, func(ctx context.Context) error {
			inner, _ := ctx.Value(txKey{}).(*sql.Tx)
			assert.Same(t, outer, inner)
			_, err := db.conn(ctx).ExecContext(ctx, `UPDATE unlock_codes SET status = 'REVOKED'`)
			return err
		}); err != nil {
			return err
		}
		return errors.New("abort outer")
	})

	assert.EqualError(t, err, "abort outer")
	assert.NoError(t, mock.ExpectationsWereMet())
}
