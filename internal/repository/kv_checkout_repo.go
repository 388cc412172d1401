package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

const keyPrefixCheckouts = "checkouts"

// KVCheckOutRepo はキー・バリューストアを使用した貸出リポジトリ。
type KVCheckOutRepo struct {
	store kvstore.Store
}

// NewKVCheckOutRepo はKVCheckOutRepoを生成する。
func NewKVCheckOutRepo(store kvstore.Store) *KVCheckOutRepo {
	return &KVCheckOutRepo{store: store}
}

// FindByID は指定IDの貸出を取得する。見つからない場合はnilを返す。
func (r *KVCheckOutRepo) FindByID(ctx context.Context, id string) (*model.CheckOut, error) {
	raw, err := r.store.Get(ctx, kvstore.Key{keyPrefixCheckouts, id})
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var c model.CheckOut
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout: %w", err)
	}
	return &c, nil
}

// Create は貸出を作成する。
func (r *KVCheckOutRepo) Create(ctx context.Context, checkout *model.CheckOut) error {
	raw, err := json.Marshal(checkout)
	if err != nil {
		return fmt.Errorf("failed to encode checkout: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.Key{keyPrefixCheckouts, checkout.ID}, raw, nil); err != nil {
		return fmt.Errorf("failed to create checkout: %w", err)
	}
	return nil
}

// Replace は貸出レコードをCASで置き換える。
// 現在の格納値がoldのエンコード結果と一致する場合のみupdatedを書き込む。
// 並行する状態遷移（二重返却など）はどちらか一方だけが成功する。
func (r *KVCheckOutRepo) Replace(ctx context.Context, old, updated *model.CheckOut) (bool, error) {
	oldRaw, err := json.Marshal(old)
	if err != nil {
		return false, fmt.Errorf("failed to encode old checkout: %w", err)
	}
	newRaw, err := json.Marshal(updated)
	if err != nil {
		return false, fmt.Errorf("failed to encode updated checkout: %w", err)
	}
	ok, err := r.store.CompareAndSet(ctx, kvstore.Key{keyPrefixCheckouts, updated.ID}, oldRaw, newRaw, nil)
	if err != nil {
		return false, fmt.Errorf("failed to replace checkout: %w", err)
	}
	return ok, nil
}

// DeleteByID は指定IDの貸出を削除する。
func (r *KVCheckOutRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, kvstore.Key{keyPrefixCheckouts, id}); err != nil {
		return fmt.Errorf("failed to delete checkout: %w", err)
	}
	return nil
}

// List は全貸出をID昇順で返す。
func (r *KVCheckOutRepo) List(ctx context.Context) ([]*model.CheckOut, error) {
	entries, err := r.store.List(ctx, kvstore.Key{keyPrefixCheckouts})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkouts: %w", err)
	}
	checkouts := make([]*model.CheckOut, 0, len(entries))
	for _, e := range entries {
		var c model.CheckOut
		if err := json.Unmarshal(e.Value, &c); err != nil {
			return nil, fmt.Errorf("failed to decode checkout %s: %w", e.Key.Encode(), err)
		}
		checkouts = append(checkouts, &c)
	}
	return checkouts, nil
}

var _ CheckOutRepository = (*KVCheckOutRepo)(nil)
