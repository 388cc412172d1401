package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

const keyPrefixItems = "items"

// KVItemRepo はキー・バリューストアを使用した装備品リポジトリ。
type KVItemRepo struct {
	store kvstore.Store
}

// NewKVItemRepo はKVItemRepoを生成する。
func NewKVItemRepo(store kvstore.Store) *KVItemRepo {
	return &KVItemRepo{store: store}
}

// FindByID は指定IDの装備品を取得する。見つからない場合はnilを返す。
func (r *KVItemRepo) FindByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	raw, err := r.store.Get(ctx, kvstore.Key{keyPrefixItems, id})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var item model.InventoryItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return &item, nil
}

// Create は装備品を作成する。
func (r *KVItemRepo) Create(ctx context.Context, item *model.InventoryItem) error {
	return r.write(ctx, item, "create")
}

// Update は既存装備品を上書き更新する。
func (r *KVItemRepo) Update(ctx context.Context, item *model.InventoryItem) error {
	return r.write(ctx, item, "update")
}

func (r *KVItemRepo) write(ctx context.Context, item *model.InventoryItem, op string) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.Key{keyPrefixItems, item.ID}, raw, nil); err != nil {
		return fmt.Errorf("failed to %s item: %w", op, err)
	}
	return nil
}

// DeleteByID は指定IDの装備品を削除する。
func (r *KVItemRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, kvstore.Key{keyPrefixItems, id}); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// List は全装備品をID昇順で返す。
func (r *KVItemRepo) List(ctx context.Context) ([]*model.InventoryItem, error) {
	entries, err := r.store.List(ctx, kvstore.Key{keyPrefixItems})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	items := make([]*model.InventoryItem, 0, len(entries))
	for _, e := range entries {
		var item model.InventoryItem
		if err := json.Unmarshal(e.Value, &item); err != nil {
			return nil, fmt.Errorf("failed to decode item %s: %w", e.Key.Encode(), err)
		}
		items = append(items, &item)
	}
	return items, nil
}

var _ ItemRepository = (*KVItemRepo)(nil)
