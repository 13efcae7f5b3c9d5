package code_generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/pricing"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/service"
	"unlock-server/internal/domain/transaction"
	"unlock-server/internal/domain/unlock_code"
	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

// ErrExpiryInPast 有効期限が過去の日時のエラー
var ErrExpiryInPast = errors.New("expiry must be in the future")

// Settings コード生成の設定値
type Settings struct {
	MaxQuantity int
	Retries     int
	CodeTTL     time.Duration
}

// Order 発行するバッチの内容
type Order struct {
	ReleaseID        string
	CreatorID        string
	Quantity         int
	PaymentMethod    payment.Method
	PaymentReference string
	Quote            *pricing.Quote
	ExpiresAt        *time.Time
}

// Issued 発行されたバッチ
type Issued struct {
	Batch   *unlock_code.CodeBatch
	Codes   []*unlock_code.UnlockCode
	Receipt *service.Receipt
}

// AssignFunc コード保存前に同じトランザクション内で呼ばれるフック
type AssignFunc func(ctx context.Context, batch *unlock_code.CodeBatch, codes []*unlock_code.UnlockCode) error

// CodeGenerationApplicationService 見積もり・コードバッチ生成アプリケーションサービス
type CodeGenerationApplicationService struct {
	codeRepo  unlock_code.UnlockCodeRepository
	releases  release.ReleaseRepository
	generator *service.CodeGenerator
	settler   *service.PaymentSettler
	engine    *pricing.Engine
	prices    *config.PricingTable
	txManager transaction.TransactionManager
	logger    *otelinfra.Logger
	metrics   *otelinfra.Metrics
	tracer    trace.Tracer
	settings  Settings
	now       func() time.Time
}

// NewCodeGenerationApplicationService 新しいCodeGenerationApplicationServiceを作成
func NewCodeGenerationApplicationService(
	codeRepo unlock_code.UnlockCodeRepository,
	releases release.ReleaseRepository,
	generator *service.CodeGenerator,
	settler *service.PaymentSettler,
	prices *config.PricingTable,
	txManager transaction.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	settings Settings,
) *CodeGenerationApplicationService {
	if settings.Retries < 1 {
		settings.Retries = 1
	}
	return &CodeGenerationApplicationService{
		codeRepo:  codeRepo,
		releases:  releases,
		generator: generator,
		settler:   settler,
		engine:    pricing.NewEngine(prices.StackCap),
		prices:    prices,
		txManager: txManager,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("code-generation-service"),
		settings:  settings,
		now:       time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (s *CodeGenerationApplicationService) WithClock(now func() time.Time) *CodeGenerationApplicationService {
	s.now = now
	return s
}

// Currency 価格表の通貨を返す
func (s *CodeGenerationApplicationService) Currency() string {
	return s.prices.Currency
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

// CheckOwnership リリースが存在し、クリエイターが所有していることを確認する
func (s *CodeGenerationApplicationService) CheckOwnership(ctx context.Context, releaseID, creatorID string) error {
	rel, err := s.releases.FindByID(ctx, releaseID)
	if err != nil {
		if errors.Is(err, release.ErrReleaseNotFound) {
			return err
		}
		return fmt.Errorf("failed to find release: %w", err)
	}
	if !rel.IsOwnedBy(creatorID) {
		return release.ErrReleaseNotOwned
	}
	return nil
}

// Price 数量に対する見積もりを計算する
// packMembers が0の場合はグループ割引を適用しない
func (s *CodeGenerationApplicationService) Price(quantity, packMembers int, packType string) (*pricing.Quote, error) {
	if quantity < 1 || quantity > s.settings.MaxQuantity {
		return nil, fmt.Errorf("%w: must be between 1 and %d", unlock_code.ErrInvalidQuantity, s.settings.MaxQuantity)
	}
	if packMembers == 0 {
		return s.engine.Calculate(quantity, s.prices.Tiers, nil, pricing.DiscountContext{})
	}
	return s.engine.Calculate(quantity, s.prices.Tiers, s.prices.GroupDiscounts, pricing.DiscountContext{
		Members:  packMembers,
		PackType: packType,
	})
}

// Quote 価格見積もりを返す（生成時と同じ計算）
func (s *CodeGenerationApplicationService) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "CodeGenerationApplicationService.Quote")
	defer span.End()

	span.SetAttributes(
		attribute.String("release_id", req.ReleaseID),
		attribute.String("creator_id", req.CreatorID),
		attribute.Int("quantity", req.Quantity),
		attribute.Int("pack_members", req.PackMembers),
	)

	if err := s.CheckOwnership(ctx, req.ReleaseID, req.CreatorID); err != nil {
		fail(span, err)
		return nil, err
	}

	quantity := req.Quantity
	if req.PackMembers > 0 {
		quantity = req.PackMembers
	}
	quote, err := s.Price(quantity, req.PackMembers, req.PackType)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "quote calculated")
	return s.QuoteResponse(quote), nil
}

// Generate 支払いを充当し、コードバッチを生成する
func (s *CodeGenerationApplicationService) Generate(ctx context.Context, req *GenerateCodesRequest) (*GenerateCodesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "CodeGenerationApplicationService.Generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("release_id", req.ReleaseID),
		attribute.String("creator_id", req.CreatorID),
		attribute.Int("quantity", req.Quantity),
		attribute.String("payment_method", req.PaymentMethod),
	)

	s.logger.Info(ctx, "Generating unlock codes", map[string]interface{}{
		"release_id":     req.ReleaseID,
		"creator_id":     req.CreatorID,
		"quantity":       req.Quantity,
		"payment_method": req.PaymentMethod,
	})

	method, err := payment.NewMethod(req.PaymentMethod)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	if err := s.CheckOwnership(ctx, req.ReleaseID, req.CreatorID); err != nil {
		fail(span, err)
		return nil, err
	}
	quote, err := s.Price(req.Quantity, 0, "")
	if err != nil {
		fail(span, err)
		return nil, err
	}

	issued, err := s.Issue(ctx, Order{
		ReleaseID:        req.ReleaseID,
		CreatorID:        req.CreatorID,
		Quantity:         req.Quantity,
		PaymentMethod:    method,
		PaymentReference: req.PaymentReference,
		Quote:            quote,
		ExpiresAt:        req.ExpiresAt,
	}, nil)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	codes := make([]string, len(issued.Codes))
	for i, c := range issued.Codes {
		codes[i] = unlock_code.FormatCode(c.Code())
	}

	span.SetStatus(otelcodes.Ok, "codes generated")
	return &GenerateCodesResponse{
		BatchID:          issued.Batch.ID(),
		ReleaseID:        issued.Batch.ReleaseID(),
		Quantity:         issued.Batch.Quantity(),
		Codes:            codes,
		Quote:            *s.QuoteResponse(quote),
		PaymentMethod:    issued.Receipt.Method.String(),
		PaymentReference: issued.Receipt.Reference,
		WalletBalance:    issued.Receipt.WalletBalance,
		ExpiresAt:        issued.Batch.ExpiresAt(),
		CreatedAt:        issued.Batch.CreatedAt(),
	}, nil
}

// Issue 支払い充当・コード生成・保存を1トランザクションで行う
// 保存時にコードが重複した場合はバッチ全体を作り直す
func (s *CodeGenerationApplicationService) Issue(ctx context.Context, order Order, assign AssignFunc) (*Issued, error) {
	ctx, span := s.tracer.Start(ctx, "CodeGenerationApplicationService.Issue")
	defer span.End()

	expiresAt, err := s.expiry(order.ExpiresAt)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	var issued *Issued
	for attempt := 0; attempt < s.settings.Retries; attempt++ {
		issued, err = s.issueOnce(ctx, order, expiresAt, assign)
		if err == nil {
			break
		}
		if !errors.Is(err, unlock_code.ErrDuplicateCode) {
			break
		}
		s.logger.Warn(ctx, "Duplicate code on insert, regenerating batch", map[string]interface{}{
			"release_id": order.ReleaseID,
			"attempt":    attempt + 1,
		})
	}
	if err != nil {
		fail(span, err)
		if errors.Is(err, unlock_code.ErrDuplicateCode) {
			err = fmt.Errorf("%w: duplicate codes after %d attempts", unlock_code.ErrGenerationFailed, s.settings.Retries)
		}
		s.logger.Error(ctx, "Failed to generate unlock codes", err, map[string]interface{}{
			"release_id": order.ReleaseID,
			"creator_id": order.CreatorID,
			"quantity":   order.Quantity,
		})
		s.metrics.RecordError(ctx, "code_generation_failed")
		return nil, err
	}

	s.metrics.RecordCodesGenerated(ctx, order.ReleaseID, len(issued.Codes))
	s.logger.Info(ctx, "Unlock codes generated", map[string]interface{}{
		"batch_id":          issued.Batch.ID(),
		"release_id":        order.ReleaseID,
		"quantity":          len(issued.Codes),
		"total_cost":        order.Quote.TotalCost.StringFixed(2),
		"payment_reference": issued.Receipt.Reference,
	})

	span.SetAttributes(attribute.String("batch_id", issued.Batch.ID()))
	span.SetStatus(otelcodes.Ok, "batch issued")
	return issued, nil
}

func (s *CodeGenerationApplicationService) issueOnce(ctx context.Context, order Order, expiresAt *time.Time, assign AssignFunc) (*Issued, error) {
	batchID := uuid.NewString()
	var issued *Issued

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		receipt, err := s.settler.Settle(ctx, service.SettleRequest{
			PayerID:    order.CreatorID,
			Method:     order.PaymentMethod,
			Reference:  order.PaymentReference,
			Amount:     order.Quote.TotalCost,
			Currency:   s.prices.Currency,
			ConsumedBy: batchID,
		})
		if err != nil {
			return err
		}

		texts, err := s.generator.GenerateUnique(ctx, order.Quantity)
		if err != nil {
			return err
		}

		batch, err := unlock_code.NewCodeBatch(batchID, order.ReleaseID, order.CreatorID, order.Quantity, unlock_code.BatchPricing{
			PricePerCode:   order.Quote.PricePerCode,
			Subtotal:       order.Quote.Subtotal,
			DiscountAmount: order.Quote.DiscountAmount,
			TotalCost:      order.Quote.TotalCost,
			Currency:       s.prices.Currency,
		}, receipt.Reference, expiresAt, s.now())
		if err != nil {
			return err
		}

		codes := make([]*unlock_code.UnlockCode, len(texts))
		for i, text := range texts {
			codes[i], err = unlock_code.NewUnlockCode(uuid.NewString(), text, order.ReleaseID, order.CreatorID, batchID, expiresAt)
			if err != nil {
				return err
			}
		}

		if assign != nil {
			if err := assign(ctx, batch, codes); err != nil {
				return err
			}
		}
		if err := s.codeRepo.CreateBatch(ctx, batch, codes); err != nil {
			return err
		}

		issued = &Issued{Batch: batch, Codes: codes, Receipt: receipt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// expiry 指定がなければ既定の有効期間から期限を決める（0は無期限）
func (s *CodeGenerationApplicationService) expiry(requested *time.Time) (*time.Time, error) {
	now := s.now()
	if requested != nil {
		if !requested.After(now) {
			return nil, ErrExpiryInPast
		}
		at := requested.UTC()
		return &at, nil
	}
	if s.settings.CodeTTL <= 0 {
		return nil, nil
	}
	at := now.Add(s.settings.CodeTTL).UTC()
	return &at, nil
}

// QuoteResponse 見積もりをレスポンス形式に変換する
func (s *CodeGenerationApplicationService) QuoteResponse(q *pricing.Quote) *QuoteResponse {
	applied := make([]AppliedDiscount, len(q.AppliedDiscounts))
	for i, d := range q.AppliedDiscounts {
		applied[i] = AppliedDiscount{
			ID:     d.ID,
			Name:   d.Name,
			Type:   string(d.Type),
			Amount: d.Amount,
		}
	}
	return &QuoteResponse{
		Quantity:         q.Quantity,
		PricePerCode:     q.PricePerCode,
		Subtotal:         q.Subtotal,
		DiscountAmount:   q.DiscountAmount,
		TotalCost:        q.TotalCost,
		Savings:          q.Savings,
		DiscountPercent:  q.DiscountPercent,
		Currency:         s.prices.Currency,
		AppliedDiscounts: applied,
	}
}
