package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"unlock-server/internal/domain/security"
)

func TestSecurityConfigurationRepository_Find(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError error
		check     func(t *testing.T, cfg *security.Configuration)
	}{
		{
			name: "正常系: 保存済みの設定を取得",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT settings, updated_by, updated_at FROM security_configurations WHERE id = \?`).
					WithArgs(1).
					WillReturnRows(sqlmock.NewRows([]string{"settings", "updated_by", "updated_at"}).
						AddRow(`{"device_locking_enabled":true,"rate_limiting_enabled":true,"max_redemption_attempts":3}`, "admin-1", testNow))
			},
			check: func(t *testing.T, cfg *security.Configuration) {
				assert.True(t, cfg.DeviceLockingEnabled)
				assert.True(t, cfg.RateLimitingEnabled)
				assert.Equal(t, 3, cfg.MaxRedemptionAttempts)
				// 保存されていない項目は既定値
				assert.Equal(t, 1, cfg.RateLimitWindowHours)
				assert.Equal(t, "admin-1", cfg.UpdatedBy)
			},
		},
		{
			name: "異常系: 未保存",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT settings`).
					WillReturnError(sql.ErrNoRows)
			},
			wantError: security.ErrConfigurationNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &SecurityConfigurationRepository{db: db, tracer: otel.Tracer("test")}
			tt.setupMock(mock)

			got, err := repo.Find(context.Background())

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSecurityConfigurationRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &SecurityConfigurationRepository{db: db, tracer: otel.Tracer("test")}

	cfg := security.DefaultConfiguration()
	cfg.IPLockingEnabled = true
	cfg.UpdatedBy = "admin-1"
	cfg.UpdatedAt = testNow

	mock.ExpectExec(`INSERT INTO security_configurations .* ON DUPLICATE KEY UPDATE`).
		WithArgs(1, sqlmock.AnyArg(), "admin-1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), cfg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func signalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "code_id", "user_id", "ip_address", "reason", "score", "details",
		"resolved", "resolved_by", "resolved_at", "flagged_at",
	})
}

func TestFraudSignalRepository_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError error
	}{
		{
			name: "正常系: 未解決のシグナルを解決",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE fraud_signals SET resolved = 1 .* WHERE id = \? AND resolved = 0`).
					WithArgs("admin-1", testNow, "sig-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "異常系: 既に解決済み",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE fraud_signals`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT .* FROM fraud_signals WHERE id = \?`).
					WithArgs("sig-1").
					WillReturnRows(signalRows().AddRow(
						"sig-1", "code-1", "user-1", "10.0.0.1", "DEVICE_MISMATCH", 0, nil,
						true, "admin-0", testNow, testNow,
					))
			},
			wantError: security.ErrFraudSignalResolved,
		},
		{
			name: "異常系: 存在しない",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE fraud_signals`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT .* FROM fraud_signals WHERE id = \?`).
					WillReturnError(sql.ErrNoRows)
			},
			wantError: security.ErrFraudSignalNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &FraudSignalRepository{db: db, tracer: otel.Tracer("test")}
			tt.setupMock(mock)

			err := repo.Resolve(context.Background(), "sig-1", "admin-1", testNow)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFraudSignalRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &FraudSignalRepository{db: db, tracer: otel.Tracer("test")}

	resolved := false
	filter := security.SignalFilter{Resolved: &resolved, Reason: security.ReasonDeviceMismatch, Limit: 10}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM fraud_signals WHERE 1 = 1 AND resolved = \? AND reason = \?`).
		WithArgs(false, "DEVICE_MISMATCH").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM fraud_signals WHERE 1 = 1 AND resolved = \? AND reason = \? ORDER BY flagged_at DESC`).
		WithArgs(false, "DEVICE_MISMATCH", 10, 0).
		WillReturnRows(signalRows().AddRow(
			"sig-1", "code-1", "user-1", "10.0.0.1", "DEVICE_MISMATCH", 4, `{"action":"redeem"}`,
			false, nil, nil, testNow,
		))

	signals, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, signals, 1)
	assert.Equal(t, "redeem", signals[0].Details()["action"])
	assert.Equal(t, 4, signals[0].Score())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptLogRepository_CountFailed(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		ip        string
		setupMock func(mock sqlmock.Sqlmock)
		want      int
	}{
		{
			name:   "正常系: ユーザーとIPのどちらかに一致",
			userID: "user-1",
			ip:     "10.0.0.1",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM redemption_attempts WHERE success = 0 AND attempted_at >= \? AND \(user_id = \? OR ip_address = \?\)`).
					WithArgs(testNow, "user-1", "10.0.0.1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
			},
			want: 7,
		},
		{
			name:   "正常系: IPのみ",
			ip:     "10.0.0.1",
			userID: "",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`\(ip_address = \?\)`).
					WithArgs(testNow, "10.0.0.1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
			},
			want: 2,
		},
		{
			name:      "正常系: 識別子がなければ問い合わせない",
			setupMock: func(mock sqlmock.Sqlmock) {},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &AttemptLogRepository{db: db, tracer: otel.Tracer("test")}
			tt.setupMock(mock)

			got, err := repo.CountFailed(context.Background(), tt.userID, tt.ip, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttemptLogRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &AttemptLogRepository{db: db, tracer: otel.Tracer("test")}

	attempt := &security.RedemptionAttempt{
		ID:            "att-1",
		SubmittedCode: "ABCDEFGHJKMNR",
		UserID:        "user-1",
		IPAddress:     "10.0.0.1",
		Success:       false,
		FailureReason: "invalid_or_used_code",
		AttemptedAt:   testNow,
	}

	mock.ExpectExec(`INSERT INTO redemption_attempts`).
		WithArgs(
			"att-1",
			sql.NullString{},
			"ABCDEFGHJKMNR",
			sql.NullString{String: "user-1", Valid: true},
			sql.NullString{String: "10.0.0.1", Valid: true},
			sql.NullString{},
			sql.NullString{},
			false,
			sql.NullString{String: "invalid_or_used_code", Valid: true},
			testNow,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), attempt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptLogRepository_CountDistinctDevices(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &AttemptLogRepository{db: db, tracer: otel.Tracer("test")}

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT device_fingerprint\)`).
		WithArgs("user-1", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	got, err := repo.CountDistinctDevices(context.Background(), "user-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
