package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements()
	require.Len(t, stmts, 11)
	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
	}
}

func TestMigrate(t *testing.T) {
	tests := []struct {
		name      string
		failAt    int
		wantError bool
	}{
		{
			name:   "正常系: 全テーブルを作成",
			failAt: -1,
		},
		{
			name:      "異常系: 途中で失敗したら中断",
			failAt:    2,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			for i := range schemaStatements() {
				exp := mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`)
				if i == tt.failAt {
					exp.WillReturnError(errors.New("syntax error"))
					break
				}
				exp.WillReturnResult(sqlmock.NewResult(0, 0))
			}

			err := Migrate(context.Background(), db)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
