package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

const keyPrefixPlans = "plans"

// KVPlanRepo はキー・バリューストアを使用したキャンプ計画リポジトリ。
// 計画は品目リストを含む単一キーのドキュメントとして格納する。
type KVPlanRepo struct {
	store kvstore.Store
}

// NewKVPlanRepo はKVPlanRepoを生成する。
func NewKVPlanRepo(store kvstore.Store) *KVPlanRepo {
	return &KVPlanRepo{store: store}
}

// FindByID は指定IDの計画を取得する。見つからない場合はnilを返す。
func (r *KVPlanRepo) FindByID(ctx context.Context, id string) (*model.CampPlan, error) {
	raw, err := r.store.Get(ctx, kvstore.Key{keyPrefixPlans, id})
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var plan model.CampPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &plan, nil
}

// Create は計画を作成する。
func (r *KVPlanRepo) Create(ctx context.Context, plan *model.CampPlan) error {
	return r.write(ctx, plan, "create")
}

// Update は既存計画を上書き更新する。
func (r *KVPlanRepo) Update(ctx context.Context, plan *model.CampPlan) error {
	return r.write(ctx, plan, "update")
}

func (r *KVPlanRepo) write(ctx context.Context, plan *model.CampPlan, op string) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.Key{keyPrefixPlans, plan.ID}, raw, nil); err != nil {
		return fmt.Errorf("failed to %s plan: %w", op, err)
	}
	return nil
}

// DeleteByID は指定IDの計画を削除する。
func (r *KVPlanRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, kvstore.Key{keyPrefixPlans, id}); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

// List は全計画をID昇順で返す。
func (r *KVPlanRepo) List(ctx context.Context) ([]*model.CampPlan, error) {
	entries, err := r.store.List(ctx, kvstore.Key{keyPrefixPlans})
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	plans := make([]*model.CampPlan, 0, len(entries))
	for _, e := range entries {
		var plan model.CampPlan
		if err := json.Unmarshal(e.Value, &plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan %s: %w", e.Key.Encode(), err)
		}
		plans = append(plans, &plan)
	}
	return plans, nil
}

var _ PlanRepository = (*KVPlanRepo)(nil)
