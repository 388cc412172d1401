package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/password"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/session"
)

func newTestService(t *testing.T) (*Service, *session.Manager) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := kvstore.NewMemoryStore(clk)
	sessions := session.NewManager(store, clk, time.Hour, nil)
	svc := NewService(
		repository.NewKVUserRepo(store),
		sessions,
		password.NewVault(bcrypt.MinCost),
		clk,
		nil,
	)
	return svc, sessions
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)

	u, err := svc.Create(context.Background(), CreateInput{
		Username: "taro",
		Password: "correct-horse-battery",
		Role:     model.RoleManager,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.ID == "" {
		t.Error("u.ID is empty")
	}
	if u.Role != model.RoleManager {
		t.Errorf("u.Role = %q, want %q", u.Role, model.RoleManager)
	}
	if u.PasswordHash == "correct-horse-battery" {
		t.Error("password stored in plaintext")
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{
			name: "ユーザー名が短すぎる",
			in:   CreateInput{Username: "ab", Password: "correct-horse-battery", Role: model.RoleViewer},
		},
		{
			name: "不正なロール",
			in:   CreateInput{Username: "taro", Password: "correct-horse-battery", Role: model.Role("superuser")},
		},
		{
			name: "パスワードポリシー違反",
			in:   CreateInput{Username: "taro", Password: "short", Role: model.RoleViewer},
		},
		{
			name: "ユーザー名にキー区切り文字",
			in:   CreateInput{Username: "taro/admin", Password: "correct-horse-battery", Role: model.RoleViewer},
		},
		{
			name: "ユーザー名に空白",
			in:   CreateInput{Username: "taro yamada", Password: "correct-horse-battery", Role: model.RoleViewer},
		},
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

func TestService_Create_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := CreateInput{Username: "taro", Password: "correct-horse-battery", Role: model.RoleViewer}
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// 大文字小文字だけ違う名前も重複扱い
	in.Username = "TARO"
	_, err := svc.Create(ctx, in)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConflict {
		t.Fatalf("Create() duplicate error = %v, want CONFLICT", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Create(ctx, CreateInput{Username: "admin", Password: "correct-horse-battery", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	target, err := svc.Create(ctx, CreateInput{Username: "taro", Password: "correct-horse-battery", Role: model.RoleViewer})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sess, err := sessions.Create(ctx, target)
	if err != nil {
		t.Fatalf("sessions.Create() error = %v", err)
	}

	if err := svc.Delete(ctx, admin.ID, target.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := svc.FindByID(ctx, target.ID); err == nil {
		t.Error("deleted user still resolvable")
	}
	got, err := sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("sessions.Get() error = %v", err)
	}
	if got != nil {
		t.Error("session survived user deletion")
	}
}

func TestService_Delete_Self(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Create(ctx, CreateInput{Username: "admin", Password: "correct-horse-battery", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = svc.Delete(ctx, admin.ID, admin.ID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConflict {
		t.Fatalf("Delete(self) error = %v, want CONFLICT", err)
	}
	if _, err := svc.FindByID(ctx, admin.ID); err != nil {
		t.Errorf("admin was deleted despite self-deletion guard: %v", err)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "actor-1", "no-such-user")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Fatalf("Delete() error = %v, want NOT_FOUND", err)
	}
}

func TestService_List_SortedByUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alice", "bob"} {
		if _, err := svc.Create(ctx, CreateInput{Username: name, Password: "correct-horse-battery", Role: model.RoleViewer}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	users, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"alice", "bob", "charlie"}
	if len(users) != len(want) {
		t.Fatalf("len(users) = %d, want %d", len(users), len(want))
	}
	for i, w := range want {
		if users[i].Username != w {
			t.Errorf("users[%d].Username = %q, want %q", i, users[i].Username, w)
		}
	}
}
