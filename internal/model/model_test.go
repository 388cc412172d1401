package model

import (
	"testing"
	"time"
)

func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		want     bool
	}{
		{"adminはadmin要件を満たす", RoleAdmin, RoleAdmin, true},
		{"adminはmanager要件を満たす", RoleAdmin, RoleManager, true},
		{"adminはviewer要件を満たす", RoleAdmin, RoleViewer, true},
		{"managerはadmin要件を満たさない", RoleManager, RoleAdmin, false},
		{"managerはmanager要件を満たす", RoleManager, RoleManager, true},
		{"managerはviewer要件を満たす", RoleManager, RoleViewer, true},
		{"viewerはmanager要件を満たさない", RoleViewer, RoleManager, false},
		{"viewerはviewer要件を満たす", RoleViewer, RoleViewer, true},
		{"未定義ロールは常にfalse", Role("superuser"), RoleViewer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.AtLeast(tt.required); got != tt.want {
				t.Errorf("Role(%q).AtLeast(%q) = %v, want %v", tt.role, tt.required, got, tt.want)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleManager, RoleViewer} {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false, want true", r)
		}
	}
	if Role("root").Valid() {
		t.Error(`Role("root").Valid() = true, want false`)
	}
	if Role("").Valid() {
		t.Error(`Role("").Valid() = true, want false`)
	}
}

func TestItemCategory_Consumable(t *testing.T) {
	tests := []struct {
		category ItemCategory
		want     bool
	}{
		{CategoryFood, true},
		{CategoryFuel, true},
		{CategoryGear, false},
		{CategoryTent, false},
		{CategoryKitchen, false},
		{ItemCategory("unknown"), false},
	}
	for _, tt := range tests {
		if got := tt.category.Consumable(); got != tt.want {
			t.Errorf("ItemCategory(%q).Consumable() = %v, want %v", tt.category, got, tt.want)
		}
	}

	if ItemCategory("unknown").Valid() {
		t.Error(`ItemCategory("unknown").Valid() = true, want false`)
	}
	if !CategoryFood.Valid() {
		t.Error("CategoryFood.Valid() = false, want true")
	}
}

func TestCheckOut_Overdue(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		status   CheckOutStatus
		expected time.Time
		want     bool
	}{
		{"期限超過の貸出中", CheckOutStatusActive, now.Add(-24 * time.Hour), true},
		{"期限内の貸出中", CheckOutStatusActive, now.Add(24 * time.Hour), false},
		{"期限超過でも返却済みなら対象外", CheckOutStatusReturned, now.Add(-24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &CheckOut{Status: tt.status, ExpectedReturnDate: tt.expected}
			if got := c.Overdue(now); got != tt.want {
				t.Errorf("Overdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBatchError_OrNil(t *testing.T) {
	var e BatchError
	if err := e.OrNil(); err != nil {
		t.Errorf("empty BatchError.OrNil() = %v, want nil", err)
	}

	e.Add("item-1", NewValidationError("数量が不正です"))
	e.Add("item-2", NewNotFoundError("装備品", "item-2"))

	err := e.OrNil()
	if err == nil {
		t.Fatal("non-empty BatchError.OrNil() = nil, want error")
	}
	be, ok := err.(*BatchError)
	if !ok {
		t.Fatalf("OrNil() returned %T, want *BatchError", err)
	}
	if len(be.Failures) != 2 {
		t.Errorf("len(Failures) = %d, want 2", len(be.Failures))
	}
	if be.Failures[0].ItemID != "item-1" {
		t.Errorf("Failures[0].ItemID = %q, want %q", be.Failures[0].ItemID, "item-1")
	}
}
