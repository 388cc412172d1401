// Package user はユーザーアカウントの管理（作成・削除・一覧）を提供する。
// 管理者ロールのみが呼び出せる前提で、権限チェック自体はミドルウェア層が行う。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/password"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/session"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
)

// usernamePattern はユーザー名に使える文字の制約。
// 区切り文字などの記号を排除し、表示・URL・ログのどこに置いても安全にする。
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Service はユーザー管理のビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	sessions *session.Manager
	vault    *password.Vault
	clock    clock.Clock
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	sessions *session.Manager,
	vault *password.Vault,
	clk clock.Clock,
	logger *slog.Logger,
) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		vault:    vault,
		clock:    clk,
		logger:   logger,
	}
}

// CreateInput はユーザー作成の入力。
type CreateInput struct {
	Username string
	Password string
	Role     model.Role
}

// Create は新規ユーザーを作成する。ユーザー名の重複はリポジトリ層の
// CAS挿入で検出され、Conflictエラーとして返る。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return nil, model.NewValidationError(
			fmt.Sprintf("ユーザー名は%d〜%d文字で指定してください", minUsernameLength, maxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return nil, model.NewValidationError("ユーザー名に使用できるのは英数字と . _ - のみです")
	}
	if !in.Role.Valid() {
		return nil, model.NewValidationError("不正なロールです: " + string(in.Role))
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.vault.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("ユーザーを作成しました",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("role", string(u.Role)),
	)
	return u, nil
}

// Delete は指定ユーザーを削除し、そのユーザーの全セッションを失効させる。
// 操作者自身の削除は拒否する（最後の管理者を誤って消さないための防壁）。
func (s *Service) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return model.NewSelfDeletionError()
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return model.NewNotFoundError("ユーザー", targetID)
	}

	// セッション失効を先に行う。ユーザー削除後にセッションだけ残ると
	// 削除済みユーザーとして認証が通ってしまう。
	if err := s.sessions.DeleteAllForUser(ctx, targetID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	if err := s.users.DeleteByID(ctx, targetID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("ユーザーを削除しました",
		slog.String("user_id", targetID),
		slog.String("username", target.Username),
		slog.String("actor_id", actorID),
	)
	return nil
}

// List は全ユーザーをユーザー名昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// FindByID は指定IDのユーザーを返す。見つからない場合はNotFoundエラー。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewNotFoundError("ユーザー", id)
	}
	return u, nil
}
