// Package repository はデータ永続化のインターフェースを定義する。
// 永続化層はスキーマレスなキー・バリューストアであり、SQL制約や
// 複数レコードトランザクションは存在しない。一意性などの不変条件は
// 各実装が単一キーのcompare-and-setで維持する。
package repository

import (
	"context"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名（大文字小文字を区別しない）でユーザーを
	// 検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名の一意性は小文字正規化した
	// 名前キーへのCAS挿入で保証し、重複時はConflictエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// Update は既存ユーザーを上書き更新する。ユーザー名の変更は不可。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーと名前インデックスを削除する。
	DeleteByID(ctx context.Context, id string) error

	// List は全ユーザーをユーザー名昇順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// ItemRepository は装備品在庫データの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDの装備品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.InventoryItem, error)

	// Create は装備品を作成する。
	Create(ctx context.Context, item *model.InventoryItem) error

	// Update は既存装備品を上書き更新する。
	Update(ctx context.Context, item *model.InventoryItem) error

	// DeleteByID は指定IDの装備品を削除する。
	DeleteByID(ctx context.Context, id string) error

	// List は全装備品を返す。
	List(ctx context.Context) ([]*model.InventoryItem, error)
}

// PlanRepository はキャンプ計画データの永続化インターフェース。
type PlanRepository interface {
	// FindByID は指定IDの計画を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CampPlan, error)

	// Create は計画を作成する。
	Create(ctx context.Context, plan *model.CampPlan) error

	// Update は既存計画を上書き更新する。
	Update(ctx context.Context, plan *model.CampPlan) error

	// DeleteByID は指定IDの計画を削除する。
	DeleteByID(ctx context.Context, id string) error

	// List は全計画を返す。
	List(ctx context.Context) ([]*model.CampPlan, error)
}

// CheckOutRepository は貸出データの永続化インターフェース。
type CheckOutRepository interface {
	// FindByID は指定IDの貸出を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CheckOut, error)

	// Create は貸出を作成する。
	Create(ctx context.Context, checkout *model.CheckOut) error

	// Replace は貸出レコードをCASで置き換える。oldの格納時バイト列と
	// 現在値が一致する場合のみnewを書き込み、書き込めたかを返す。
	// 状態遷移（checked-out → returned）の冪等性ガードに使用する。
	Replace(ctx context.Context, old, updated *model.CheckOut) (bool, error)

	// DeleteByID は指定IDの貸出を削除する。
	DeleteByID(ctx context.Context, id string) error

	// List は全貸出を返す。
	List(ctx context.Context) ([]*model.CheckOut, error)
}
