// Package cleanup は監視データの定期メンテナンスジョブを提供する。
// 期限切れの監視を無効化し、保持期間を超えた通知ログを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule はジョブの実行スケジュールのデフォルト値（cron形式）。
const DefaultSchedule = "@daily"

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Report は1回の実行結果。
type Report struct {
	DeactivatedMonitors int64
	DeletedLogs         int64
}

// CleanupJob は監視データのメンテナンスジョブ。
// 何度実行しても結果が変わらない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 通知ログの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は期限切れ監視の無効化と古い通知ログの削除を行う。
func (j *CleanupJob) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	deactivated, err := j.exec(ctx,
		`UPDATE monitors SET active = false WHERE active = true AND expires_at <= now()`)
	if err != nil {
		j.logger.Error("期限切れ監視の無効化に失敗しました",
			slog.String("error", err.Error()),
		)
		return report, fmt.Errorf("期限切れ監視の無効化に失敗: %w", err)
	}
	report.DeactivatedMonitors = deactivated

	interval := fmt.Sprintf("%d days", j.RetentionDays)
	deleted, err := j.exec(ctx,
		`DELETE FROM notification_logs WHERE created_at < now() - $1::interval`, interval)
	if err != nil {
		j.logger.Error("通知ログのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return report, fmt.Errorf("通知ログのクリーンアップに失敗: %w", err)
	}
	report.DeletedLogs = deleted

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deactivated_monitors", report.DeactivatedMonitors),
		slog.Int64("deleted_logs", report.DeletedLogs),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return report, nil
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("影響件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Start は起動時に1回実行したあと、cron形式のscheduleに従ってジョブを実行する。
// コンテキストがキャンセルされると実行中のジョブの完了を待って戻る。
func (j *CleanupJob) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		// 失敗はRun内でログ出力済み
		_, _ = j.Run(ctx)
	}); err != nil {
		return fmt.Errorf("クリーンアップスケジュールが不正です (%q): %w", schedule, err)
	}

	_, _ = j.Run(ctx)

	c.Start()
	j.logger.Info("クリーンアップスケジューラを開始しました",
		slog.String("schedule", schedule),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("クリーンアップスケジューラを停止しました")
	return nil
}
