package plan

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
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/stock"
)

type testEnv struct {
	svc   *Service
	items *repository.KVItemRepo
	clk   *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := kvstore.NewMemoryStore(clk)
	items := repository.NewKVItemRepo(store)
	engine := stock.NewEngine(items, nil, nil)
	svc := NewService(
		repository.NewKVPlanRepo(store),
		items,
		engine,
		security.NewNotesSanitizer(),
		clk,
		nil,
	)
	return &testEnv{svc: svc, items: items, clk: clk}
}

func (e *testEnv) seedItem(t *testing.T, id, name string, cat model.ItemCategory, qty int) {
	t.Helper()
	err := e.items.Create(context.Background(), &model.InventoryItem{
		ID:        id,
		Name:      name,
		Category:  cat,
		Quantity:  qty,
		CreatedAt: e.clk.Now(),
		UpdatedAt: e.clk.Now(),
	})
	if err != nil {
		t.Fatalf("items.Create() error = %v", err)
	}
}

func (e *testEnv) item(t *testing.T, id string) *model.InventoryItem {
	t.Helper()
	got, err := e.items.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("items.FindByID() error = %v", err)
	}
	if got == nil {
		t.Fatalf("item %s not found", id)
	}
	return got
}

func validInput(items ...model.CampPlanItem) Input {
	return Input{
		Name:      "夏キャンプ",
		StartDate: "2025-07-20",
		EndDate:   "2025-07-22",
		Items:     items,
	}
}

func TestService_Create_PackedItemHasNoImmediateEffect(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "beans", "缶詰（豆）", model.CategoryFood, 10)

	p, err := env.svc.Create(context.Background(), validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3, Packed: true},
	))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(p.Items) != 1 {
		t.Fatalf("len(p.Items) = %d, want 1", len(p.Items))
	}

	// 作成時点のpacked指定は在庫に影響しない
	if got := env.item(t, "beans"); got.Quantity != 10 {
		t.Errorf("beans.Quantity = %d, want 10", got.Quantity)
	}
}

func TestService_Create_SnapshotsCategoryFromRecord(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "beans", "缶詰（豆）", model.CategoryFood, 10)

	// 入力のカテゴリは信用せず在庫レコードの値で上書きされる
	p, err := env.svc.Create(context.Background(), validInput(
		model.CampPlanItem{ItemID: "beans", Category: model.CategoryGear, QuantityPlanned: 3},
	))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Items[0].Category != model.CategoryFood {
		t.Errorf("Category = %q, want %q", p.Items[0].Category, model.CategoryFood)
	}
}

func TestService_Update_PackingFoodDeductsStock(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "beans", "缶詰（豆）", model.CategoryFood, 10)
	ctx := context.Background()

	p, err := env.svc.Create(ctx, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3},
	))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := env.svc.Update(ctx, p.ID, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3, Packed: true},
	)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := env.item(t, "beans"); got.Quantity != 7 {
		t.Errorf("beans.Quantity after pack = %d, want 7", got.Quantity)
	}

	// 荷解きで等量が戻る
	if _, err := env.svc.Update(ctx, p.ID, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3, Packed: false},
	)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := env.item(t, "beans"); got.Quantity != 10 {
		t.Errorf("beans.Quantity after unpack = %d, want 10", got.Quantity)
	}
}

func TestService_Update_GearTracksAtCampOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "tent-a", "テントA", model.CategoryTent, 3)
	ctx := context.Background()

	p, err := env.svc.Create(ctx, validInput(
		model.CampPlanItem{ItemID: "tent-a", QuantityPlanned: 2},
	))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := env.svc.Update(ctx, p.ID, validInput(
		model.CampPlanItem{ItemID: "tent-a", QuantityPlanned: 2, Packed: true},
	)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got := env.item(t, "tent-a")
	if !got.AtCamp || got.QuantityAtCamp != 2 {
		t.Errorf("tent-a after pack: AtCamp=%v QuantityAtCamp=%d, want true/2", got.AtCamp, got.QuantityAtCamp)
	}
	if got.Quantity != 3 {
		t.Errorf("tent-a.Quantity = %d, want unchanged 3", got.Quantity)
	}

	// 返却マークで持出状態が解除される
	if _, err := env.svc.Update(ctx, p.ID, validInput(
		model.CampPlanItem{ItemID: "tent-a", QuantityPlanned: 2, Packed: true, Returned: true},
	)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got = env.item(t, "tent-a")
	if got.AtCamp || got.QuantityAtCamp != 0 {
		t.Errorf("tent-a after return: AtCamp=%v QuantityAtCamp=%d, want false/0", got.AtCamp, got.QuantityAtCamp)
	}
}

func TestService_Update_RemovingPackedFoodRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "beans", "缶詰（豆）", model.CategoryFood, 10)
	ctx := context.Background()

	p, err := env.svc.Create(ctx, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3},
	))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := env.svc.Update(ctx, p.ID, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3, Packed: true},
	)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// 品目を計画から外すと在庫が戻る
	if _, err := env.svc.Update(ctx, p.ID, validInput()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := env.item(t, "beans"); got.Quantity != 10 {
		t.Errorf("beans.Quantity = %d, want 10", got.Quantity)
	}
}

func TestService_Delete_UnwindsPackingState(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "beans", "缶詰（豆）", model.CategoryFood, 10)
	env.seedItem(t, "tent-a", "テントA", model.CategoryTent, 3)
	ctx := context.Background()

	p, err := env.svc.Create(ctx, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3},
		model.CampPlanItem{ItemID: "tent-a", QuantityPlanned: 2},
	))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := env.svc.Update(ctx, p.ID, validInput(
		model.CampPlanItem{ItemID: "beans", QuantityPlanned: 3, Packed: true},
		model.CampPlanItem{ItemID: "tent-a", QuantityPlanned: 2, Packed: true},
	)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := env.svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got := env.item(t, "beans"); got.Quantity != 10 {
		t.Errorf("beans.Quantity = %d, want 10", got.Quantity)
	}
	if got := env.item(t, "tent-a"); got.AtCamp {
		t.Error("tent-a.AtCamp = true, want false after plan deletion")
	}
	if _, err := env.svc.FindByID(ctx, p.ID); err == nil {
		t.Error("deleted plan still resolvable")
	}
}

func TestService_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "beans", "缶詰（豆）", model.CategoryFood, 10)

	tests := []struct {
		name string
		in   Input
	}{
		{
			name: "計画名が空",
			in: Input{Name: " ", StartDate: "2025-07-20", EndDate: "2025-07-22",
				Items: []model.CampPlanItem{{ItemID: "beans", QuantityPlanned: 1}}},
		},
		{
			name: "日付形式が不正",
			in: Input{Name: "夏キャンプ", StartDate: "07/20/2025", EndDate: "2025-07-22",
				Items: []model.CampPlanItem{{ItemID: "beans", QuantityPlanned: 1}}},
		},
		{
			name: "終了日が開始日より前",
			in: Input{Name: "夏キャンプ", StartDate: "2025-07-22", EndDate: "2025-07-20",
				Items: []model.CampPlanItem{{ItemID: "beans", QuantityPlanned: 1}}},
		},
		{
			name: "計画数量が0",
			in: Input{Name: "夏キャンプ", StartDate: "2025-07-20", EndDate: "2025-07-22",
				Items: []model.CampPlanItem{{ItemID: "beans", QuantityPlanned: 0}}},
		},
		{
			name: "品目の重複",
			in: Input{Name: "夏キャンプ", StartDate: "2025-07-20", EndDate: "2025-07-22",
				Items: []model.CampPlanItem{
					{ItemID: "beans", QuantityPlanned: 1},
					{ItemID: "beans", QuantityPlanned: 2},
				}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(context.Background(), tt.in)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
				t.Errorf("Create() error = %v, want VALIDATION_FAILED", err)
			}
		})
	}
}

func TestService_Create_UnknownItem(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), validInput(
		model.CampPlanItem{ItemID: "no-such-item", QuantityPlanned: 1},
	))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Fatalf("Create() error = %v, want NOT_FOUND", err)
	}
}
