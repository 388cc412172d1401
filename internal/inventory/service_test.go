package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/security"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := kvstore.NewMemoryStore(clk)
	return NewService(repository.NewKVItemRepo(store), security.NewNotesSanitizer(), clk, nil)
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)

	item, err := svc.Create(context.Background(), CreateInput{
		Name:     "  缶詰（豆）  ",
		Category: model.CategoryFood,
		Quantity: 10,
		Location: "倉庫A",
		Notes:    "<script>alert(1)</script>賞味期限注意",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if item.Name != "缶詰（豆）" {
		t.Errorf("item.Name = %q, want trimmed name", item.Name)
	}
	if item.Notes != "賞味期限注意" {
		t.Errorf("item.Notes = %q, want sanitized notes", item.Notes)
	}
	if item.Quantity != 10 {
		t.Errorf("item.Quantity = %d, want 10", item.Quantity)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "品名が空", in: CreateInput{Name: "  ", Category: model.CategoryGear, Quantity: 1}},
		{name: "不正なカテゴリ", in: CreateInput{Name: "テント", Category: model.ItemCategory("weapon"), Quantity: 1}},
		{name: "数量が負", in: CreateInput{Name: "テント", Category: model.CategoryTent, Quantity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
				t.Errorf("Create() error = %v, want VALIDATION_FAILED", err)
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, CreateInput{Name: "テントA", Category: model.CategoryTent, Quantity: 2})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(ctx, item.ID, UpdateInput{
		Name:      "テントA（4人用）",
		Location:  "倉庫B",
		Condition: model.ConditionFair,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "テントA（4人用）" {
		t.Errorf("updated.Name = %q", updated.Name)
	}
	if updated.Condition != model.ConditionFair {
		t.Errorf("updated.Condition = %q, want %q", updated.Condition, model.ConditionFair)
	}
	// メタデータ更新で在庫数は変わらない
	if updated.Quantity != 2 {
		t.Errorf("updated.Quantity = %d, want 2", updated.Quantity)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Update(context.Background(), "no-such-item", UpdateInput{Name: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Fatalf("Update() error = %v, want NOT_FOUND", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, CreateInput{Name: "テントA", Category: model.CategoryTent, Quantity: 2})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.FindByID(ctx, item.ID); err == nil {
		t.Error("deleted item still resolvable")
	}
}

func TestService_Reconcile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	beans, err := svc.Create(ctx, CreateInput{Name: "缶詰（豆）", Category: model.CategoryFood, Quantity: 10})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	tent, err := svc.Create(ctx, CreateInput{Name: "テントA", Category: model.CategoryTent, Quantity: 3})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	broken := model.ConditionBroken
	err = svc.Reconcile(ctx, []model.StockCorrection{
		{ItemID: beans.ID, CountedQuantity: 8},
		{ItemID: tent.ID, CountedQuantity: 2, CountedCondition: &broken},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	gotBeans, _ := svc.FindByID(ctx, beans.ID)
	if gotBeans.Quantity != 8 {
		t.Errorf("beans.Quantity = %d, want 8", gotBeans.Quantity)
	}
	gotTent, _ := svc.FindByID(ctx, tent.ID)
	if gotTent.Quantity != 2 {
		t.Errorf("tent.Quantity = %d, want 2", gotTent.Quantity)
	}
	if gotTent.Condition != model.ConditionBroken {
		t.Errorf("tent.Condition = %q, want %q", gotTent.Condition, model.ConditionBroken)
	}
}

func TestService_Reconcile_PartialFailure(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	beans, err := svc.Create(ctx, CreateInput{Name: "缶詰（豆）", Category: model.CategoryFood, Quantity: 10})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = svc.Reconcile(ctx, []model.StockCorrection{
		{ItemID: "no-such-item", CountedQuantity: 5},
		{ItemID: beans.ID, CountedQuantity: 7},
		{ItemID: beans.ID, CountedQuantity: -1},
	})

	var batchErr *model.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Reconcile() error = %v, want *model.BatchError", err)
	}
	if len(batchErr.Failures) != 2 {
		t.Fatalf("len(Failures) = %d, want 2", len(batchErr.Failures))
	}

	// 失敗した品目があっても有効な補正は適用される
	got, _ := svc.FindByID(ctx, beans.ID)
	if got.Quantity != 7 {
		t.Errorf("beans.Quantity = %d, want 7", got.Quantity)
	}
}
