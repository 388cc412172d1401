// Package stock は在庫数量の整合性を維持する副作用エンジンを提供する。
// キャンプ計画のパッキング遷移・貸出・棚卸しに伴う在庫の増減を計算し、
// 単一キー書き込みのみで適用する。ストアに複数キートランザクションは
// 存在しないため、品目ごとの書き込みは互いに素なキーへ並行発行し、
// 失敗は部分失敗（PartialFailure）として報告する。ロールバックはしない。
package stock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// ItemStore はエンジンが必要とする装備品操作のインターフェース。
// repository.ItemRepositoryの部分集合。
type ItemStore interface {
	FindByID(ctx context.Context, id string) (*model.InventoryItem, error)
	Update(ctx context.Context, item *model.InventoryItem) error
}

// Recorder は在庫増減のメトリクス記録インターフェース。
type Recorder interface {
	RecordStockDeduction(quantity int)
	RecordStockRestoration(quantity int)
}

// Engine は在庫副作用の計算と適用を行う。
type Engine struct {
	items   ItemStore
	logger  *slog.Logger
	metrics Recorder // nil可
}

// NewEngine はEngineを生成する。loggerがnilの場合はslog.Defaultを使用する。
func NewEngine(items ItemStore, logger *slog.Logger, metrics Recorder) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{items: items, logger: logger, metrics: metrics}
}

// effect は1品目分の在庫副作用。
type effect struct {
	itemID string
	apply  func(ctx context.Context) error
}

// ApplyPlanDiff はキャンプ計画の品目リスト全量置換に伴う在庫副作用を適用する。
// UIは常に差分ではなく新しい全リストを送信するため、旧リストとの突き合わせで
// 遷移を検出する。
//
//  1. 削除された品目: 消耗品でパッキング済み（減算済み）なら計画数量を復元。
//     返却品でパッキング済み未返却なら持出フラグを強制的に下ろす（暗黙の返却）。
//  2. 残存品目: 消耗品はpacked false→trueで減算、true→falseで復元。
//     返却品は新旧のpacked/returnedから最終的な持出状態を1回で計算して書く
//     （返却マークは常に持出フラグを下ろす）。中間状態が観測される窓を作らない。
//  3. 新規追加された品目: それ自体では副作用なし。追加時点のpacked状態が
//     次回保存の差分計算の基準になる。
//
// 品目ごとの書き込みは互いに素なキーに対するため並行に発行し、全完了を待つ。
// 一部の失敗は他をロールバックせず、PartialFailureとして品目別に報告する。
func (e *Engine) ApplyPlanDiff(ctx context.Context, oldItems, newItems []model.CampPlanItem) error {
	oldByID := itemsByID(oldItems)
	newByID := itemsByID(newItems)

	var effects []effect

	// 削除された品目
	for _, old := range oldItems {
		if _, survives := newByID[old.ItemID]; survives {
			continue
		}
		old := old
		switch {
		case old.Category.Consumable() && old.Packed:
			effects = append(effects, effect{old.ItemID, func(ctx context.Context) error {
				return e.Restore(ctx, old.ItemID, old.QuantityPlanned)
			}})
		case !old.Category.Consumable() && old.Packed && !old.Returned:
			effects = append(effects, effect{old.ItemID, func(ctx context.Context) error {
				return e.SetAtCamp(ctx, old.ItemID, false, 0)
			}})
		}
	}

	// 残存品目の遷移
	for _, item := range newItems {
		old, existed := oldByID[item.ItemID]
		if !existed {
			continue
		}
		item := item

		if item.Category.Consumable() {
			switch {
			case !old.Packed && item.Packed:
				effects = append(effects, effect{item.ItemID, func(ctx context.Context) error {
					return e.DeductClamped(ctx, item.ItemID, item.QuantityPlanned)
				}})
			case old.Packed && !item.Packed:
				effects = append(effects, effect{item.ItemID, func(ctx context.Context) error {
					return e.Restore(ctx, item.ItemID, item.QuantityPlanned)
				}})
			}
			continue
		}

		oldAtCamp := old.Packed && !old.Returned
		newAtCamp := item.Packed && !item.Returned
		if oldAtCamp != newAtCamp {
			qty := 0
			if newAtCamp {
				qty = item.QuantityPlanned
			}
			effects = append(effects, effect{item.ItemID, func(ctx context.Context) error {
				return e.SetAtCamp(ctx, item.ItemID, newAtCamp, qty)
			}})
		}
	}

	return e.runConcurrently(ctx, effects)
}

// runConcurrently は副作用を並行に適用し、失敗を品目別に収集する。
func (e *Engine) runConcurrently(ctx context.Context, effects []effect) error {
	if len(effects) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		batchErr model.BatchError
	)

	for _, eff := range effects {
		wg.Add(1)
		go func(eff effect) {
			defer wg.Done()
			if err := eff.apply(ctx); err != nil {
				e.logger.Error("在庫副作用の適用に失敗しました",
					slog.String("item_id", eff.itemID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				batchErr.Add(eff.itemID, err)
				mu.Unlock()
			}
		}(eff)
	}
	wg.Wait()

	return batchErr.OrNil()
}

// DeductClamped は在庫数量をqtyだけ減算する。0を下限とし、
// 並行減算が競合しても負にはならない。計画のパッキングで使用する。
func (e *Engine) DeductClamped(ctx context.Context, itemID string, qty int) error {
	item, err := e.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return model.NewNotFoundError("装備品", itemID)
	}

	deducted := qty
	item.Quantity -= qty
	if item.Quantity < 0 {
		deducted = qty + item.Quantity
		item.Quantity = 0
	}
	if err := e.items.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to deduct stock: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordStockDeduction(deducted)
	}
	e.logger.Info("在庫を減算しました",
		slog.String("item_id", itemID),
		slog.Int("quantity", qty),
		slog.Int("remaining", item.Quantity),
	)
	return nil
}

// DeductStrict は在庫数量をqtyだけ減算する。在庫不足の場合は減算せず
// Conflictを返す。貸出作成で使用する。
func (e *Engine) DeductStrict(ctx context.Context, itemID string, qty int) (*model.InventoryItem, error) {
	item, err := e.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewNotFoundError("装備品", itemID)
	}
	if item.Quantity < qty {
		return nil, model.NewInsufficientStockError(item.Name, item.Quantity, qty)
	}

	item.Quantity -= qty
	if err := e.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to deduct stock: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordStockDeduction(qty)
	}
	e.logger.Info("在庫を減算しました",
		slog.String("item_id", itemID),
		slog.Int("quantity", qty),
		slog.Int("remaining", item.Quantity),
	)
	return item, nil
}

// Restore は在庫数量をqtyだけ復元する。
// すべての取り消し経路（荷解き・計画からの削除・貸出返却・キャンセル）で
// 減算と等量の復元を行うための共通経路。
func (e *Engine) Restore(ctx context.Context, itemID string, qty int) error {
	item, err := e.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return model.NewNotFoundError("装備品", itemID)
	}

	item.Quantity += qty
	if err := e.items.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordStockRestoration(qty)
	}
	e.logger.Info("在庫を復元しました",
		slog.String("item_id", itemID),
		slog.Int("quantity", qty),
		slog.Int("total", item.Quantity),
	)
	return nil
}

// SetAtCamp は返却品の持出状態を更新する。在庫数量には決して触れない。
func (e *Engine) SetAtCamp(ctx context.Context, itemID string, atCamp bool, qtyAtCamp int) error {
	item, err := e.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return model.NewNotFoundError("装備品", itemID)
	}

	item.AtCamp = atCamp
	item.QuantityAtCamp = qtyAtCamp
	if err := e.items.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to update at-camp flag: %w", err)
	}
	return nil
}

func itemsByID(items []model.CampPlanItem) map[string]model.CampPlanItem {
	m := make(map[string]model.CampPlanItem, len(items))
	for _, it := range items {
		m[it.ItemID] = it
	}
	return m
}
