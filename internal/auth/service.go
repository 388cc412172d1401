// Package auth はパスワード認証、セッション発行、初回起動時の
// 管理者ブートストラップを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/password"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/ratelimit"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/session"
)

// Recorder はログイン結果のメトリクス記録インターフェース。
type Recorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordLoginLocked()
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	sessions *session.Manager
	vault    *password.Vault
	limiter  *ratelimit.Limiter
	clock    clock.Clock
	logger   *slog.Logger
	metrics  Recorder // nil可
}

// NewService はServiceを生成する。
// clkがnilの場合は実時刻、loggerがnilの場合はslog.Defaultを使用する。
func NewService(
	users repository.UserRepository,
	sessions *session.Manager,
	vault *password.Vault,
	limiter *ratelimit.Limiter,
	clk clock.Clock,
	logger *slog.Logger,
	metrics Recorder,
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
		limiter:  limiter,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
	}
}

// limiterIdentifier はレート制限の識別子を返す。
// IPではなくユーザー名を単位にする。NAT共有の別ユーザーを巻き添えにしない。
// ログインは任意の入力を受け付けるため、キー区切り文字を含む
// ユーザー名でもKVキーとして成立するようパーセントエンコードする。
func limiterIdentifier(username string) string {
	return "login:" + url.PathEscape(strings.ToLower(strings.TrimSpace(username)))
}

// Login はユーザー名とパスワードを検証し、成功時にセッションを発行する。
// 失敗理由（ユーザー不在かパスワード不一致か）は呼び出し側に区別させない。
// 旧形式ハッシュでの検証に成功した場合は新形式ハッシュへ透過的に再永続化する。
func (s *Service) Login(ctx context.Context, username, plainPassword string) (*model.Session, error) {
	identifier := limiterIdentifier(username)

	st, err := s.limiter.Check(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if st.Blocked {
		if s.metrics != nil {
			s.metrics.RecordLoginLocked()
		}
		s.logger.Warn("ロックアウト中のログイン試行を拒否しました",
			slog.String("identifier", identifier),
		)
		return nil, model.NewRateLimitedError()
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, s.loginFailed(ctx, identifier)
	}

	res := s.vault.Verify(plainPassword, user.PasswordHash)
	if !res.Valid {
		return nil, s.loginFailed(ctx, identifier)
	}

	// verify-then-upgrade: 旧形式ハッシュを新形式に差し替える。
	// 失敗してもログイン自体は成立させる（次回ログインで再試行される）。
	if res.UpgradedHash != "" {
		user.PasswordHash = res.UpgradedHash
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Error("パスワードハッシュの移行永続化に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Info("旧形式パスワードハッシュを移行しました",
				slog.String("user_id", user.ID),
			)
		}
	}

	if err := s.limiter.Reset(ctx, identifier); err != nil {
		s.logger.Warn("レート制限カウンタのリセットに失敗しました",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
	}

	sess, err := s.sessions.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}
	s.logger.Info("ログインに成功しました",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return sess, nil
}

// loginFailed は失敗を記録し、原因を伏せた共通エラーを返す。
func (s *Service) loginFailed(ctx context.Context, identifier string) error {
	if err := s.limiter.RecordFailure(ctx, identifier); err != nil {
		s.logger.Error("ログイン失敗の記録に失敗しました",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
	return model.NewAuthenticationFailedError()
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("ログアウトしました", slog.String("session_id", sessionID))
	return nil
}

// ChangePassword は現在のパスワードを検証した上で新パスワードに変更し、
// そのユーザーの全セッションを無効化して全端末で再ログインを強制する。
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUnauthorizedError()
	}

	if !s.vault.Verify(oldPassword, user.PasswordHash).Valid {
		return model.NewAuthenticationFailedError()
	}

	if err := password.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.vault.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	// ベストエフォートのセキュリティ操作。失敗しても変更自体は成立している。
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Error("パスワード変更後のセッション一括削除に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("パスワードを変更しました", slog.String("user_id", userID))
	return nil
}

// EnsureAdmin は管理者ユーザーが一人も存在しない場合に、
// 設定で与えられた資格情報から初期管理者を作成する（初回起動ブートストラップ）。
// パスワードを設定から受け取るのはこの経路だけ。
func (s *Service) EnsureAdmin(ctx context.Context, username, plainPassword string) error {
	if username == "" || plainPassword == "" {
		return nil
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			return nil
		}
	}

	if err := password.Validate(plainPassword); err != nil {
		return fmt.Errorf("bootstrap admin password rejected by policy: %w", err)
	}

	hash, err := s.vault.Hash(plainPassword)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	admin := &model.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	s.logger.Info("初期管理者ユーザーを作成しました",
		slog.String("user_id", admin.ID),
		slog.String("username", admin.Username),
	)
	return nil
}

// sessionMaxAge はCookie発行用にセッション有効期間を返す。
func (s *Service) SessionMaxAge() time.Duration {
	return s.sessions.MaxAge()
}
