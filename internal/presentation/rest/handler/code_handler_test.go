package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restmiddleware "unlock-server/internal/presentation/rest/middleware"
)

func TestCodeHandler_ValidateCode(t *testing.T) {
	app := newTestApp(t)
	batch := app.generate(t, 2)

	tests := []struct {
		name           string
		code           string
		expectedStatus int
		validate       func(*testing.T, ValidateCodeResponse)
	}{
		{
			name:           "正常系: 未使用コード",
			code:           batch.Codes[0],
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp ValidateCodeResponse) {
				assert.True(t, resp.Valid)
				assert.Equal(t, "UNUSED", resp.Status)
				require.NotNil(t, resp.Release)
				assert.Equal(t, "rel-1", resp.Release.ID)
				assert.Equal(t, "Night Drive", resp.Release.Title)
			},
		},
		{
			name:           "正常系: ハイフンなし小文字でも検証できる",
			code:           strings.ToLower(strings.ReplaceAll(batch.Codes[1], "-", "")),
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp ValidateCodeResponse) {
				assert.True(t, resp.Valid)
				assert.Equal(t, batch.Codes[1], resp.Code)
			},
		},
		{
			name:           "異常系: 形式不正",
			code:           "nope",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: 存在しないコード",
			code:           unknownCode(t),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, app.codes.ValidateCode, http.MethodPost, "/api/v1/codes/validate", ValidateCodeRequest{Code: tt.code}, "")
			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.validate != nil {
				tt.validate(t, decode[ValidateCodeResponse](t, rec))
			}
		})
	}
}

func TestCodeHandler_RedeemCode(t *testing.T) {
	app := newTestApp(t)
	batch := app.generate(t, 5)
	third := batch.Codes[2]

	rec := call(t, app.codes.RedeemCode, http.MethodPost, "/api/v1/codes/redeem", RedeemCodeRequest{
		Code:              third,
		DeviceFingerprint: "fp-1",
	}, "fan-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RedeemCodeResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, third, resp.Code)
	assert.Equal(t, "rel-1", resp.Release.ID)
	assert.Equal(t, "fan-1", resp.Access.UserID)
	assert.Equal(t, "unlock_code", resp.Access.Source)

	// 同じユーザーの再引き換えは具体的なエラー
	rec = call(t, app.codes.RedeemCode, http.MethodPost, "/api/v1/codes/redeem", RedeemCodeRequest{Code: third}, "fan-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "code_already_redeemed", decode[restmiddleware.ErrorResponse](t, rec).Code)

	// 他人には存在しないコードと区別できない応答
	rec = call(t, app.codes.RedeemCode, http.MethodPost, "/api/v1/codes/redeem", RedeemCodeRequest{Code: third}, "fan-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "invalid_or_used_code", decode[restmiddleware.ErrorResponse](t, rec).Code)

	rec = call(t, app.codes.RedeemCode, http.MethodPost, "/api/v1/codes/redeem", RedeemCodeRequest{Code: unknownCode(t)}, "fan-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "invalid_or_used_code", decode[restmiddleware.ErrorResponse](t, rec).Code)

	// 検証は状態を変えず引き換え済みを返す
	rec = call(t, app.codes.ValidateCode, http.MethodPost, "/api/v1/codes/validate", ValidateCodeRequest{Code: third}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[ValidateCodeResponse](t, rec)
	assert.False(t, v.Valid)
	assert.Equal(t, "REDEEMED", v.Status)
}

func TestCodeHandler_RedeemCode_InvalidBody(t *testing.T) {
	app := newTestApp(t)

	rec := call(t, app.codes.RedeemCode, http.MethodPost, "/api/v1/codes/redeem", "not-an-object", "fan-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
