// Package inventory は装備品在庫のCRUDと棚卸し補正を提供する。
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/security"
)

const maxNameLength = 128

// Service は装備品在庫のビジネスロジックを提供する。
type Service struct {
	items     repository.ItemRepository
	sanitizer security.NotesSanitizerService
	clock     clock.Clock
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	items repository.ItemRepository,
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
	return &Service{items: items, sanitizer: sanitizer, clock: clk, logger: logger}
}

// CreateInput は装備品作成の入力。
type CreateInput struct {
	Name      string
	Category  model.ItemCategory
	Quantity  int
	Location  string
	Condition model.Condition
	Notes     string
}

// Create は装備品を作成する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.InventoryItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, model.NewValidationError("品名は1〜128文字で指定してください")
	}
	if !in.Category.Valid() {
		return nil, model.NewValidationError("不正なカテゴリです: " + string(in.Category))
	}
	if in.Quantity < 0 {
		return nil, model.NewValidationError("数量は0以上で指定してください")
	}

	now := s.clock.Now()
	item := &model.InventoryItem{
		ID:        uuid.New().String(),
		Name:      name,
		Category:  in.Category,
		Quantity:  in.Quantity,
		Location:  strings.TrimSpace(in.Location),
		Condition: in.Condition,
		Notes:     s.sanitizer.Sanitize(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.logger.Info("装備品を登録しました",
		slog.String("item_id", item.ID),
		slog.String("name", item.Name),
		slog.String("category", string(item.Category)),
	)
	return item, nil
}

// UpdateInput は装備品更新の入力。在庫数の直接変更はここでは受け付けず、
// 棚卸し（Reconcile）か在庫エンジン経由に限定する。
type UpdateInput struct {
	Name      string
	Location  string
	Condition model.Condition
	Notes     string
}

// Update は装備品のメタデータを更新する。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.InventoryItem, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewNotFoundError("装備品", id)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, model.NewValidationError("品名は1〜128文字で指定してください")
	}

	item.Name = name
	item.Location = strings.TrimSpace(in.Location)
	item.Condition = in.Condition
	item.Notes = s.sanitizer.Sanitize(in.Notes)
	item.UpdatedAt = s.clock.Now()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

// FindByID は指定IDの装備品を返す。見つからない場合はNotFoundエラー。
func (s *Service) FindByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewNotFoundError("装備品", id)
	}
	return item, nil
}

// Delete は装備品を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return model.NewNotFoundError("装備品", id)
	}
	if err := s.items.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	s.logger.Info("装備品を削除しました", slog.String("item_id", id), slog.String("name", item.Name))
	return nil
}

// List は全装備品を返す。
func (s *Service) List(ctx context.Context) ([]*model.InventoryItem, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Reconcile は棚卸し結果を在庫に反映する。各補正は独立に適用され、
// 一部の品目が失敗しても残りは続行する（部分失敗はBatchErrorで報告）。
// 実地棚卸しの数え直しコストは高いので、1品目の不備で全体をやり直させない。
func (s *Service) Reconcile(ctx context.Context, corrections []model.StockCorrection) error {
	batchErr := &model.BatchError{}

	for _, c := range corrections {
		if err := s.applyCorrection(ctx, c); err != nil {
			s.logger.Warn("棚卸し補正の適用に失敗しました",
				slog.String("item_id", c.ItemID),
				slog.String("error", err.Error()),
			)
			batchErr.Add(c.ItemID, err)
		}
	}

	s.logger.Info("棚卸しを反映しました",
		slog.Int("corrections", len(corrections)),
		slog.Int("failures", len(batchErr.Failures)),
	)
	return batchErr.OrNil()
}

func (s *Service) applyCorrection(ctx context.Context, c model.StockCorrection) error {
	if c.CountedQuantity < 0 {
		return model.NewValidationError("実数は0以上で指定してください")
	}

	item, err := s.items.FindByID(ctx, c.ItemID)
	if err != nil {
		return fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return model.NewNotFoundError("装備品", c.ItemID)
	}

	item.Quantity = c.CountedQuantity
	if c.CountedCondition != nil {
		item.Condition = *c.CountedCondition
	}
	item.UpdatedAt = s.clock.Now()

	if err := s.items.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}
