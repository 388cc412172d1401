// Package plan はキャンプ計画のCRUDと、計画変更に伴う在庫の整合処理を提供する。
package plan

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

const maxNameLength = 128

// Service はキャンプ計画のビジネスロジックを提供する。
// 計画の保存と在庫副作用の適用は原子的ではない。計画本体を先に永続化し、
// 在庫側の部分失敗はBatchErrorとして呼び出し元に伝える。
type Service struct {
	plans     repository.PlanRepository
	items     repository.ItemRepository
	engine    *stock.Engine
	sanitizer security.NotesSanitizerService
	clock     clock.Clock
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	plans repository.PlanRepository,
	items repository.ItemRepository,
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
		plans:     plans,
		items:     items,
		engine:    engine,
		sanitizer: sanitizer,
		clock:     clk,
		logger:    logger,
	}
}

// Input は計画の作成・更新の入力。Itemsは全量置換。
type Input struct {
	Name      string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Items     []model.CampPlanItem
	Notes     string
}

// Create は計画を作成する。この時点では在庫への副作用はない
// （パッキング状態の変化は更新時の差分で初めて在庫に反映される）。
func (s *Service) Create(ctx context.Context, in Input) (*model.CampPlan, error) {
	p := &model.CampPlan{ID: uuid.New().String()}
	if err := s.populate(ctx, p, in); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.plans.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	// 作成時にpacked指定された品目も差分処理に通す。旧状態が空なので
	// 全品目が「追加」扱いとなり、即時の在庫副作用は発生しない。
	if err := s.engine.ApplyPlanDiff(ctx, nil, p.Items); err != nil {
		return p, err
	}

	s.logger.Info("キャンプ計画を作成しました",
		slog.String("plan_id", p.ID),
		slog.String("name", p.Name),
		slog.Int("items", len(p.Items)),
	)
	return p, nil
}

// Update は計画を全量置換で更新し、新旧のパッキング状態の差分を在庫に
// 反映する。計画の永続化が成功した後に在庫処理を行うため、在庫側の
// 部分失敗（BatchError）が返っても計画自体は更新済みである。
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.CampPlan, error) {
	old, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	if old == nil {
		return nil, model.NewNotFoundError("キャンプ計画", id)
	}

	updated := &model.CampPlan{ID: id, CreatedAt: old.CreatedAt}
	if err := s.populate(ctx, updated, in); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.clock.Now()

	if err := s.plans.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	if err := s.engine.ApplyPlanDiff(ctx, old.Items, updated.Items); err != nil {
		return updated, err
	}

	s.logger.Info("キャンプ計画を更新しました",
		slog.String("plan_id", id),
		slog.Int("items", len(updated.Items)),
	)
	return updated, nil
}

// Delete は計画を削除する。削除前に、計画が保持していたパッキング状態を
// すべて解除する（パック済み消耗品の在庫復元、持出中装備の帰還マーク）。
func (s *Service) Delete(ctx context.Context, id string) error {
	old, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find plan: %w", err)
	}
	if old == nil {
		return model.NewNotFoundError("キャンプ計画", id)
	}

	// 在庫の巻き戻しを先に行う。計画を先に消すと、巻き戻しが失敗した
	// ときに残量を特定する手がかりが失われる。
	if err := s.engine.ApplyPlanDiff(ctx, old.Items, nil); err != nil {
		return err
	}

	if err := s.plans.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	s.logger.Info("キャンプ計画を削除しました", slog.String("plan_id", id))
	return nil
}

// FindByID は指定IDの計画を返す。見つからない場合はNotFoundエラー。
func (s *Service) FindByID(ctx context.Context, id string) (*model.CampPlan, error) {
	p, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError("キャンプ計画", id)
	}
	return p, nil
}

// List は全計画を返す。
func (s *Service) List(ctx context.Context) ([]*model.CampPlan, error) {
	plans, err := s.plans.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// populate は入力を検証しつつpに反映する。各品目のCategoryは入力値を
// 信用せず、在庫レコードからスナップショットを取り直す。
func (s *Service) populate(ctx context.Context, p *model.CampPlan, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		return model.NewValidationError("計画名は1〜128文字で指定してください")
	}

	start, err := parseDate(in.StartDate)
	if err != nil {
		return model.NewValidationError("開始日の形式が正しくありません（YYYY-MM-DD）")
	}
	end, err := parseDate(in.EndDate)
	if err != nil {
		return model.NewValidationError("終了日の形式が正しくありません（YYYY-MM-DD）")
	}
	if end.Before(start) {
		return model.NewValidationError("終了日は開始日以降を指定してください")
	}

	items := make([]model.CampPlanItem, 0, len(in.Items))
	seen := make(map[string]bool, len(in.Items))
	for _, pi := range in.Items {
		if pi.QuantityPlanned <= 0 {
			return model.NewValidationError("計画数量は1以上で指定してください: " + pi.ItemID)
		}
		if seen[pi.ItemID] {
			return model.NewValidationError("同じ装備品が複数回指定されています: " + pi.ItemID)
		}
		seen[pi.ItemID] = true

		record, err := s.items.FindByID(ctx, pi.ItemID)
		if err != nil {
			return fmt.Errorf("failed to find item: %w", err)
		}
		if record == nil {
			return model.NewNotFoundError("装備品", pi.ItemID)
		}

		pi.Category = record.Category
		pi.Notes = s.sanitizer.Sanitize(pi.Notes)
		items = append(items, pi)
	}

	p.Name = name
	p.StartDate = start
	p.EndDate = end
	p.Items = items
	p.Notes = s.sanitizer.Sanitize(in.Notes)
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}
