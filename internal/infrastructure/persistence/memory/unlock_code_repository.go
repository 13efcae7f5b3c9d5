package memory

import (
	"context"
	"fmt"
	"sort"

	"unlock-server/internal/domain/unlock_code"
)

// UnlockCodeRepository メモリ実装のUnlockCodeRepository
type UnlockCodeRepository struct {
	s *Store
}

// FindByCode 正規化済みコード文字列で取得
func (r *UnlockCodeRepository) FindByCode(ctx context.Context, code string) (*unlock_code.UnlockCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.codeByText[code]
	if !ok {
		return nil, unlock_code.ErrCodeNotFound
	}
	return unlock_code.Reconstruct(r.s.codes[id]), nil
}

// FindByID IDで取得
func (r *UnlockCodeRepository) FindByID(ctx context.Context, id string) (*unlock_code.UnlockCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.codes[id]
	if !ok {
		return nil, unlock_code.ErrCodeNotFound
	}
	return unlock_code.Reconstruct(rec), nil
}

// FindByBatchID バッチ内のコードを作成順に取得
func (r *UnlockCodeRepository) FindByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*unlock_code.UnlockCode, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var recs []unlock_code.Record
	for _, rec := range r.s.codes {
		if rec.BatchID == batchID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})

	total := len(recs)
	codes := make([]*unlock_code.UnlockCode, 0, limit)
	for i := offset; i < total && len(codes) < limit; i++ {
		codes = append(codes, unlock_code.Reconstruct(recs[i]))
	}
	return codes, total, nil
}

// ExistingCodes 指定コードのうち既に保存済みのものを返す
func (r *UnlockCodeRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing := make(map[string]struct{})
	for _, c := range codes {
		if _, ok := r.s.codeByText[c]; ok {
			existing[c] = struct{}{}
		}
	}
	return existing, nil
}

// CreateBatch バッチとコードを保存
// 1件でも重複があれば何も保存せず ErrDuplicateCode を返す
func (r *UnlockCodeRepository) CreateBatch(ctx context.Context, batch *unlock_code.CodeBatch, codes []*unlock_code.UnlockCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.batches[batch.ID()]; ok {
		return fmt.Errorf("batch %s already exists", batch.ID())
	}
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, ok := r.s.codeByText[c.Code()]; ok {
			return fmt.Errorf("%w: %s", unlock_code.ErrDuplicateCode, c.Code())
		}
		if _, ok := seen[c.Code()]; ok {
			return fmt.Errorf("%w: %s", unlock_code.ErrDuplicateCode, c.Code())
		}
		seen[c.Code()] = struct{}{}
	}

	r.s.batches[batch.ID()] = batch
	for _, c := range codes {
		r.s.codes[c.ID()] = c.Record()
		r.s.codeByText[c.Code()] = c.ID()
	}

	r.s.onRollback(ctx, func() {
		delete(r.s.batches, batch.ID())
		for _, c := range codes {
			delete(r.s.codes, c.ID())
			delete(r.s.codeByText, c.Code())
		}
	})
	return nil
}

// FindBatch バッチを取得
func (r *UnlockCodeRepository) FindBatch(ctx context.Context, id string) (*unlock_code.CodeBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.batches[id]
	if !ok {
		return nil, unlock_code.ErrBatchNotFound
	}
	return b, nil
}

// update 既存レコードを置き換え、トランザクション内なら元に戻す操作を登録する
func (r *UnlockCodeRepository) update(ctx context.Context, prev, next unlock_code.Record) {
	r.s.codes[next.ID] = next
	r.s.onRollback(ctx, func() {
		r.s.codes[prev.ID] = prev
	})
}

// MarkRedeemed 未使用かつ期限内のコードのみ引き換え済みにする
func (r *UnlockCodeRepository) MarkRedeemed(ctx context.Context, id string, red unlock_code.Redemption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.codes[id]
	if !ok {
		return unlock_code.ErrCodeAlreadyRedeemed
	}
	uc := unlock_code.Reconstruct(prev)
	if uc.IsExpired(red.RedeemedAt) {
		return unlock_code.ErrCodeAlreadyRedeemed
	}
	if err := uc.Redeem(red); err != nil {
		return err
	}
	r.update(ctx, prev, uc.Record())
	return nil
}

// ChangeDevice 変更回数が上限未満の場合のみデバイスロック先を変更する
func (r *UnlockCodeRepository) ChangeDevice(ctx context.Context, id, fingerprint string, limit int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.codes[id]
	if !ok {
		return unlock_code.ErrDeviceChangeLimitReached
	}
	uc := unlock_code.Reconstruct(prev)
	if err := uc.ChangeDevice(fingerprint, limit); err != nil {
		return err
	}
	r.update(ctx, prev, uc.Record())
	return nil
}

// BulkUpdateStatus 一括操作を適用し、遷移できたコード数を返す
func (r *UnlockCodeRepository) BulkUpdateStatus(ctx context.Context, ids []string, action unlock_code.BulkAction, includeRedeemed bool) (int64, error) {
	switch action {
	case unlock_code.BulkActionRevoke, unlock_code.BulkActionMarkInvalid, unlock_code.BulkActionMarkUnused:
	default:
		return 0, unlock_code.ErrInvalidBulkAction
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, id := range ids {
		prev, ok := r.s.codes[id]
		if !ok {
			continue
		}
		uc := unlock_code.Reconstruct(prev)
		var err error
		if action == unlock_code.BulkActionMarkUnused {
			err = uc.Restore()
		} else {
			err = uc.Revoke(action.RevokedReason(), includeRedeemed)
		}
		if err != nil {
			continue
		}
		r.update(ctx, prev, uc.Record())
		n++
	}
	return n, nil
}
