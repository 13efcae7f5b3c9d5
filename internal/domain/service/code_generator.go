package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"unlock-server/internal/domain/unlock_code"
)

const (
	// DefaultGenerationRounds 重複時の再生成ラウンド数
	DefaultGenerationRounds = 5
	// InviteCodeLength 招待コードの長さ
	InviteCodeLength = 10

	// rejectionLimit 剰余の偏りを避けるため、これ以上のバイト値は捨てる
	rejectionLimit = 256 - 256%len(unlock_code.Alphabet)
)

// CodeGenerator 推測不能かつ重複のないアンロックコードを生成するドメインサービス
type CodeGenerator struct {
	codeRepo  unlock_code.UnlockCodeRepository
	random    io.Reader
	maxRounds int
}

// NewCodeGenerator 新しいCodeGeneratorを作成（random が nil の場合は crypto/rand を使用）
func NewCodeGenerator(codeRepo unlock_code.UnlockCodeRepository, random io.Reader) *CodeGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &CodeGenerator{
		codeRepo:  codeRepo,
		random:    random,
		maxRounds: DefaultGenerationRounds,
	}
}

// NewCode チェックサム付きのコードを1件生成する
func (g *CodeGenerator) NewCode() (string, error) {
	body, err := g.symbols(unlock_code.BodyLength)
	if err != nil {
		return "", err
	}
	check, err := unlock_code.Checksum(body)
	if err != nil {
		return "", err
	}
	return body + string(check), nil
}

// NewInviteCode パック招待コードを1件生成する
func (g *CodeGenerator) NewInviteCode() (string, error) {
	return g.symbols(InviteCodeLength)
}

// GenerateUnique バッチ内およびストレージ上で重複しないコードを quantity 件生成する
func (g *CodeGenerator) GenerateUnique(ctx context.Context, quantity int) ([]string, error) {
	if quantity < 1 {
		return nil, unlock_code.ErrInvalidQuantity
	}

	accepted := make([]string, 0, quantity)
	seen := make(map[string]struct{}, quantity)

	for round := 0; round < g.maxRounds && len(accepted) < quantity; round++ {
		need := quantity - len(accepted)
		candidates := make([]string, 0, need)
		for i := 0; i < need; i++ {
			code, err := g.NewCode()
			if err != nil {
				return nil, fmt.Errorf("failed to read random source: %w", err)
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			candidates = append(candidates, code)
		}
		if len(candidates) == 0 {
			continue
		}

		existing, err := g.codeRepo.ExistingCodes(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing codes: %w", err)
		}
		for _, c := range candidates {
			if _, taken := existing[c]; !taken {
				accepted = append(accepted, c)
			}
		}
	}

	if len(accepted) < quantity {
		return nil, fmt.Errorf("%w: %d of %d unique codes after %d rounds", unlock_code.ErrGenerationFailed, len(accepted), quantity, g.maxRounds)
	}
	return accepted, nil
}

// symbols アルファベットから一様にn文字を選ぶ
func (g *CodeGenerator) symbols(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= rejectionLimit {
				continue
			}
			out = append(out, unlock_code.Alphabet[int(b)%len(unlock_code.Alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
