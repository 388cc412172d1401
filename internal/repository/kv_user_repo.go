package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

const (
	keyPrefixUsers       = "users"
	keyPrefixUsersByName = "users_by_name"
)

// KVUserRepo はキー・バリューストアを使用したユーザーリポジトリ。
// 本体は["users", id]、名前→IDの二次インデックスを["users_by_name", name]に持つ。
type KVUserRepo struct {
	store kvstore.Store
}

// NewKVUserRepo はKVUserRepoを生成する。
func NewKVUserRepo(store kvstore.Store) *KVUserRepo {
	return &KVUserRepo{store: store}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *KVUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	raw, err := r.store.Get(ctx, kvstore.Key{keyPrefixUsers, id})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}

// FindByUsername はユーザー名でユーザーを検索する。大文字小文字を区別しない。
func (r *KVUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	idRaw, err := r.store.Get(ctx, kvstore.Key{keyPrefixUsersByName, normalizeUsername(username)})
	if err != nil {
		return nil, fmt.Errorf("failed to get username index: %w", err)
	}
	if idRaw == nil {
		return nil, nil
	}
	return r.FindByID(ctx, string(idRaw))
}

// Create はユーザーを作成する。
// 名前インデックスへのCAS挿入（不在期待）を先に行うことで、
// 同名ユーザーの並行作成をどちらか一方だけ成功させる。
func (r *KVUserRepo) Create(ctx context.Context, user *model.User) error {
	nameKey := kvstore.Key{keyPrefixUsersByName, normalizeUsername(user.Username)}

	ok, err := r.store.CompareAndSet(ctx, nameKey, nil, []byte(user.ID), nil)
	if err != nil {
		return fmt.Errorf("failed to claim username: %w", err)
	}
	if !ok {
		return &model.APIError{
			Code:     model.ErrCodeConflict,
			Message:  fmt.Sprintf("ユーザー名「%s」は既に使用されています。", user.Username),
			Category: "validation",
			Action:   "別のユーザー名を指定してください。",
		}
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.Key{keyPrefixUsers, user.ID}, raw, nil); err != nil {
		// 本体書き込みに失敗した場合は確保した名前キーを戻す（ベストエフォート）
		_ = r.store.Delete(ctx, nameKey)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update は既存ユーザーを上書き更新する。
func (r *KVUserRepo) Update(ctx context.Context, user *model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.Key{keyPrefixUsers, user.ID}, raw, nil); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーと名前インデックスを削除する。
func (r *KVUserRepo) DeleteByID(ctx context.Context, id string) error {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, kvstore.Key{keyPrefixUsers, id}); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if user != nil {
		if err := r.store.Delete(ctx, kvstore.Key{keyPrefixUsersByName, normalizeUsername(user.Username)}); err != nil {
			return fmt.Errorf("failed to delete username index: %w", err)
		}
	}
	return nil
}

// List は全ユーザーをユーザー名昇順で返す。
func (r *KVUserRepo) List(ctx context.Context) ([]*model.User, error) {
	entries, err := r.store.List(ctx, kvstore.Key{keyPrefixUsers})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*model.User, 0, len(entries))
	for _, e := range entries {
		var u model.User
		if err := json.Unmarshal(e.Value, &u); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", e.Key.Encode(), err)
		}
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// normalizeUsername はユーザー名を一意性判定用に小文字正規化し、
// キー区切り文字を含んでもKVキーとして成立するようパーセントエンコードする。
// 検索はユーザー名の出どころを選ばないため、正規化はキー構築側で必ず通す。
func normalizeUsername(username string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(username)))
}

var _ UserRepository = (*KVUserRepo)(nil)
