// Package loan は装備品の貸出・返却・キャンセルを提供する。
// 貸出は作成時に在庫を厳密減算し、返却またはキャンセルでちょうど1回だけ
// 復元する。二重復元はリポジトリ層のCAS置換で防ぐ。
package loan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/security"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/stock"
)

// Service は貸出のビジネスロジックを提供する。
type Service struct {
	checkouts repository.CheckOutRepository
	engine    *stock.Engine
	sanitizer security.NotesSanitizerService
	clock     clock.Clock
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	checkouts repository.CheckOutRepository,
	engine *stock.Engine,
	sanitizer security.NotesSanitizerService,
	clk clock.Clock,
	logger *slog.Logger,
) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		checkouts: checkouts,
		engine:    engine,
		sanitizer: sanitizer,
		clock:     clk,
		logger:    logger,
	}
}

// CreateInput は貸出作成の入力。
type CreateInput struct {
	ItemID             string
	Quantity           int
	Borrower           string
	ExpectedReturnDate string // YYYY-MM-DD
	Notes              string
}

// Create は貸出を作成する。在庫が不足している場合はConflictエラーを返し、
// 貸出レコードは作成されない（クランプではなく厳密減算）。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.CheckOut, error) {
	borrower := strings.TrimSpace(in.Borrower)
	if borrower == "" {
		return nil, model.NewValidationError("借用者名を指定してください")
	}
	if in.Quantity <= 0 {
		return nil, model.NewValidationError("数量は1以上で指定してください")
	}
	due, err := time.Parse("2006-01-02", strings.TrimSpace(in.ExpectedReturnDate))
	if err != nil {
		return nil, model.NewValidationError("返却予定日の形式が正しくありません（YYYY-MM-DD）")
	}

	// 減算が成功した時点で在庫は確保済み。以降の失敗経路では必ず復元する。
	item, err := s.engine.DeductStrict(ctx, in.ItemID, in.Quantity)
	if err != nil {
		return nil, err
	}

	checkout := &model.CheckOut{
		ID:                 uuid.New().String(),
		ItemID:             in.ItemID,
		ItemName:           item.Name,
		Quantity:           in.Quantity,
		Borrower:           borrower,
		Status:             model.CheckOutStatusActive,
		Notes:              s.sanitizer.Sanitize(in.Notes),
		CheckedOutAt:       s.clock.Now(),
		ExpectedReturnDate: due,
	}
	if err := s.checkouts.Create(ctx, checkout); err != nil {
		if restoreErr := s.engine.Restore(ctx, in.ItemID, in.Quantity); restoreErr != nil {
			s.logger.Error("貸出作成失敗後の在庫復元に失敗しました",
				slog.String("item_id", in.ItemID),
				slog.Int("quantity", in.Quantity),
				slog.String("error", restoreErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}

	s.logger.Info("貸出を作成しました",
		slog.String("checkout_id", checkout.ID),
		slog.String("item_id", checkout.ItemID),
		slog.Int("quantity", checkout.Quantity),
		slog.String("borrower", checkout.Borrower),
	)
	return checkout, nil
}

// Return は貸出を返却済みにし、在庫を復元する。
// 状態遷移はCAS置換で保護されるため、同じ貸出への並行返却で在庫が
// 二重に戻ることはない。負けた側にはConflictエラーが返る。
func (s *Service) Return(ctx context.Context, id string) (*model.CheckOut, error) {
	checkout, err := s.checkouts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	if checkout == nil {
		return nil, model.NewNotFoundError("貸出", id)
	}
	if checkout.Status == model.CheckOutStatusReturned {
		return nil, model.NewLoanAlreadyReturnedError(id)
	}

	now := s.clock.Now()
	updated := *checkout
	updated.Status = model.CheckOutStatusReturned
	updated.ActualReturnDate = &now

	ok, err := s.checkouts.Replace(ctx, checkout, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to replace checkout: %w", err)
	}
	if !ok {
		// 並行する返却・キャンセルに先を越された
		return nil, model.NewLoanAlreadyReturnedError(id)
	}

	if err := s.engine.Restore(ctx, checkout.ItemID, checkout.Quantity); err != nil {
		// 遷移は確定済みなので復元の失敗だけを報告する。再実行しても
		// CASガードにより二重復元にはならない。
		return &updated, err
	}

	s.logger.Info("貸出を返却しました",
		slog.String("checkout_id", id),
		slog.String("item_id", checkout.ItemID),
		slog.Int("quantity", checkout.Quantity),
	)
	return &updated, nil
}

// Cancel は貸出中のレコードを取り消し、在庫を復元した上で削除する。
// 返却済みの貸出は取り消せない（在庫は既に復元されている）。
func (s *Service) Cancel(ctx context.Context, id string) error {
	checkout, err := s.checkouts.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find checkout: %w", err)
	}
	if checkout == nil {
		return model.NewNotFoundError("貸出", id)
	}
	if checkout.Status == model.CheckOutStatusReturned {
		return model.NewLoanAlreadyReturnedError(id)
	}

	// 復元権を先にCASで確保する。並行するReturn/Cancelとの競合で
	// 負けた側は何も復元しない。
	now := s.clock.Now()
	claimed := *checkout
	claimed.Status = model.CheckOutStatusReturned
	claimed.ActualReturnDate = &now

	ok, err := s.checkouts.Replace(ctx, checkout, &claimed)
	if err != nil {
		return fmt.Errorf("failed to replace checkout: %w", err)
	}
	if !ok {
		return model.NewLoanAlreadyReturnedError(id)
	}

	if err := s.engine.Restore(ctx, checkout.ItemID, checkout.Quantity); err != nil {
		return err
	}

	if err := s.checkouts.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete checkout: %w", err)
	}

	s.logger.Info("貸出をキャンセルしました",
		slog.String("checkout_id", id),
		slog.String("item_id", checkout.ItemID),
		slog.Int("quantity", checkout.Quantity),
	)
	return nil
}

// FindByID は指定IDの貸出を返す。見つからない場合はNotFoundエラー。
func (s *Service) FindByID(ctx context.Context, id string) (*model.CheckOut, error) {
	checkout, err := s.checkouts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	if checkout == nil {
		return nil, model.NewNotFoundError("貸出", id)
	}
	return checkout, nil
}

// List は全貸出を返す。
func (s *Service) List(ctx context.Context) ([]*model.CheckOut, error) {
	checkouts, err := s.checkouts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkouts: %w", err)
	}
	return checkouts, nil
}

// ListOverdue は返却期限を過ぎた貸出中レコードを返す。
func (s *Service) ListOverdue(ctx context.Context) ([]*model.CheckOut, error) {
	checkouts, err := s.checkouts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkouts: %w", err)
	}
	now := s.clock.Now()
	overdue := make([]*model.CheckOut, 0)
	for _, c := range checkouts {
		if c.Overdue(now) {
			overdue = append(overdue, c)
		}
	}
	return overdue, nil
}
