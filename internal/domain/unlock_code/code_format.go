package unlock_code

import (
	"strings"
)

const (
	// Alphabet コードに使用する文字集合（0 O 1 I L を除外）
	Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	// BodyLength チェックサムを除いた本体の長さ
	BodyLength = 12
	// CodeLength チェックサムを含むコード全体の長さ
	CodeLength = BodyLength + 1
	// groupSize 表示用のグループ幅
	groupSize = 4
)

var alphabetIndex = func() map[rune]int {
	m := make(map[rune]int, len(Alphabet))
	for i, r := range Alphabet {
		m[r] = i
	}
	return m
}()

// Normalize 大文字化し、ハイフンと空白を取り除く
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		switch r {
		case '-', ' ', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Checksum 本体から重み付きmod-Nのチェックサム文字を計算
func Checksum(body string) (byte, error) {
	if len(body) != BodyLength {
		return 0, ErrMalformedCode
	}
	sum := 0
	for i, r := range body {
		idx, ok := alphabetIndex[r]
		if !ok {
			return 0, ErrMalformedCode
		}
		sum += (i + 1) * idx
	}
	return Alphabet[sum%len(Alphabet)], nil
}

// ParseCode 入力を正規化し、長さ・文字集合・チェックサムを検証する
// ストレージへの問い合わせ前に誤入力を弾くために使用する
func ParseCode(raw string) (string, error) {
	code := Normalize(raw)
	if len(code) != CodeLength {
		return "", ErrMalformedCode
	}
	want, err := Checksum(code[:BodyLength])
	if err != nil {
		return "", err
	}
	if code[BodyLength] != want {
		return "", ErrMalformedCode
	}
	return code, nil
}

// FormatCode 表示用に4文字ごとにハイフンで区切る
func FormatCode(code string) string {
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(code[i])
	}
	return b.String()
}
