package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// 開催がこの日数以内に迫った計画をリマインド対象にする。
const upcomingPlanWindow = 7 * 24 * time.Hour

// LoanLister は期限超過貸出の取得インターフェース。
type LoanLister interface {
	ListOverdue(ctx context.Context) ([]*model.CheckOut, error)
}

// PlanLister は計画一覧の取得インターフェース。
type PlanLister interface {
	List(ctx context.Context) ([]*model.CampPlan, error)
}

// Notifier はリマインド通知の送信インターフェース。
type Notifier interface {
	NotifyOverdueLoan(ctx context.Context, checkout *model.CheckOut) error
	NotifyUpcomingPlan(ctx context.Context, plan *model.CampPlan) error
}

// Recorder は通知実行のメトリクス記録インターフェース。
type Recorder interface {
	RecordNotificationRun(sent int)
}

// Scheduler は定期間隔で通知対象を収集し、日次で1回だけ通知を送信する。
// チェック間隔ごとに起床するが、実際に送信するのはclaimガードを取得した
// プロセスの1日1回のみ。
type Scheduler struct {
	guard    *ClaimGuard
	loans    LoanLister
	plans    PlanLister
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
	metrics  Recorder // nil可
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(
	guard *ClaimGuard,
	loans LoanLister,
	plans PlanLister,
	notifier Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	metrics Recorder,
) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		guard:    guard,
		loans:    loans,
		plans:    plans,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("通知スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("通知サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("通知スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("通知サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は実行権の取得を試み、取得できた場合のみ通知対象を収集して
// 送信する。個別の通知の失敗は他の通知を止めない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	claimed, err := s.guard.TryClaim(ctx)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	start := time.Now()
	sent := 0

	overdue, err := s.loans.ListOverdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to list overdue loans: %w", err)
	}
	for _, c := range overdue {
		if err := s.notifier.NotifyOverdueLoan(ctx, c); err != nil {
			s.logger.Error("期限超過通知の送信に失敗しました",
				slog.String("checkout_id", c.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}

	upcoming, err := s.listUpcomingPlans(ctx)
	if err != nil {
		return err
	}
	for _, p := range upcoming {
		if err := s.notifier.NotifyUpcomingPlan(ctx, p); err != nil {
			s.logger.Error("開催前リマインドの送信に失敗しました",
				slog.String("plan_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}

	if s.metrics != nil {
		s.metrics.RecordNotificationRun(sent)
	}
	s.logger.Info("通知サイクルが完了しました",
		slog.Int("overdue_loans", len(overdue)),
		slog.Int("upcoming_plans", len(upcoming)),
		slog.Int("sent", sent),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// listUpcomingPlans は開催がwindow以内に迫った未開催の計画を返す。
func (s *Scheduler) listUpcomingPlans(ctx context.Context) ([]*model.CampPlan, error) {
	plans, err := s.plans.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	now := s.clock.Now()
	horizon := now.Add(upcomingPlanWindow)

	upcoming := make([]*model.CampPlan, 0)
	for _, p := range plans {
		if p.StartDate.After(now) && !p.StartDate.After(horizon) {
			upcoming = append(upcoming, p)
		}
	}
	return upcoming, nil
}

// LogNotifier は通知を構造化ログとして出力するNotifier実装。
// 外部送信チャネル（メール等）が未設定の環境でのデフォルト。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyOverdueLoan は期限超過貸出のリマインドをログ出力する。
func (n *LogNotifier) NotifyOverdueLoan(_ context.Context, checkout *model.CheckOut) error {
	n.logger.Warn("返却期限を過ぎた貸出があります",
		slog.String("checkout_id", checkout.ID),
		slog.String("item_name", checkout.ItemName),
		slog.String("borrower", checkout.Borrower),
		slog.Time("expected_return_date", checkout.ExpectedReturnDate),
	)
	return nil
}

// NotifyUpcomingPlan は開催間近の計画のリマインドをログ出力する。
func (n *LogNotifier) NotifyUpcomingPlan(_ context.Context, plan *model.CampPlan) error {
	n.logger.Info("開催が近いキャンプ計画があります",
		slog.String("plan_id", plan.ID),
		slog.String("name", plan.Name),
		slog.Time("start_date", plan.StartDate),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
