// Package poll は在庫監視のポーリングループを提供する。
// 有効な監視を列挙し、(商品, リージョン)ごとに1回だけ在庫を取得して、
// 在庫切れから在庫ありへ変化したときに購読者へ通知する。
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/stockwatch/internal/metrics"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/notify"
	"github.com/hitoshi/stockwatch/internal/stock"
)

const (
	// DefaultInterval はサイクル開始間隔のデフォルト値。
	DefaultInterval = 30 * time.Second
	// DefaultMaxConcurrency は1サイクル内の同時チェック数のデフォルト値。
	DefaultMaxConcurrency = 8
	// MinDelay はサイクル間の最小待機時間。
	MinDelay = time.Second
)

// MonitorLister は有効な監視を列挙するインターフェース。
type MonitorLister interface {
	ListActive(ctx context.Context) ([]*model.ActiveMonitor, error)
}

// StockTracker は在庫状態の変化を判定するインターフェース。
type StockTracker interface {
	ShouldNotify(ctx context.Context, productID string, region model.Region, observed bool) (bool, error)
}

// AlertNotifier は購読者へ在庫通知を送るインターフェース。
type AlertNotifier interface {
	Notify(ctx context.Context, alert notify.Alert, subscribers []int64) notify.Result
}

// NotificationLogWriter は通知結果を記録するインターフェース。
type NotificationLogWriter interface {
	Create(ctx context.Context, entry *model.NotificationLog) error
}

// Options はSchedulerの動作設定。
type Options struct {
	Interval       time.Duration
	MaxConcurrency int
}

// CycleReport は1サイクルの実行結果。
type CycleReport struct {
	Checks   int
	Failures int
	Notified int
}

// Scheduler は一定間隔で在庫チェックを駆動する。
type Scheduler struct {
	monitors MonitorLister
	fetchers map[model.Region]stock.Fetcher
	tracker  StockTracker
	notifier AlertNotifier
	logs     NotificationLogWriter
	recorder metrics.Recorder
	logger   *slog.Logger
	opts     Options

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// logsとrecorderはnilでもよい。
func NewScheduler(
	monitors MonitorLister,
	fetchers map[model.Region]stock.Fetcher,
	tracker StockTracker,
	notifier AlertNotifier,
	logs NotificationLogWriter,
	recorder metrics.Recorder,
	logger *slog.Logger,
	opts Options,
) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Scheduler{
		monitors: monitors,
		fetchers: fetchers,
		tracker:  tracker,
		notifier: notifier,
		logs:     logs,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		after:    time.After,
	}
}

// NextDelay は次のサイクル開始までの待機時間を返す。
// 処理に要した時間を差し引き、最低でもMinDelayだけ待つ。
func NextDelay(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > MinDelay {
		return d
	}
	return MinDelay
}

// Start はコンテキストがキャンセルされるまでサイクルを繰り返す。
// 起動直後に1回実行し、その後はサイクル開始間隔がほぼIntervalになるよう待機する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("ポーリングスケジューラを開始しました",
		slog.Duration("interval", s.opts.Interval),
		slog.Int("max_concurrency", s.opts.MaxConcurrency),
	)

	for {
		started := s.now()
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("ポーリングサイクルの実行に失敗しました。次のサイクルで再試行します",
				slog.String("error", err.Error()),
			)
		}

		if ctx.Err() != nil {
			s.logger.Info("ポーリングスケジューラを停止しました")
			return
		}

		delay := NextDelay(s.opts.Interval, s.now().Sub(started))
		select {
		case <-ctx.Done():
			s.logger.Info("ポーリングスケジューラを停止しました")
			return
		case <-s.after(delay):
		}
	}
}

// checkTask は1回のフェッチで処理する(商品, リージョン)の単位。
type checkTask struct {
	product     model.Product
	region      model.Region
	reference   string
	subscribers []int64
}

// RunOnce は1サイクル分のチェックを実行する。
// 監視の列挙に失敗した場合はエラーを返し、個別のチェック失敗は記録して継続する。
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, error) {
	start := s.now()

	active, err := s.monitors.ListActive(ctx)
	if err != nil {
		return CycleReport{}, err
	}

	tasks := s.buildTasks(active)
	if len(tasks) == 0 {
		s.logger.Info("チェック対象の監視はありません")
		s.recorder.RecordCycle(s.now().Sub(start), 0)
		return CycleReport{}, nil
	}

	s.logger.Info("ポーリングサイクルを開始します",
		slog.Int("monitor_count", len(active)),
		slog.Int("check_count", len(tasks)),
	)

	// 開始済みのチェックは停止要求を受けても状態更新まで完了させる。
	// 個々の待ち時間はフェッチのタイムアウトで上限が付く。
	taskCtx := context.WithoutCancel(ctx)

	type outcome struct {
		failed   bool
		notified bool
	}
	outcomes := make([]outcome, len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(s.opts.MaxConcurrency)

	dispatched := 0
	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			notified, err := s.check(taskCtx, task)
			outcomes[i] = outcome{failed: err != nil, notified: notified}
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{Checks: dispatched}
	for _, o := range outcomes[:dispatched] {
		if o.failed {
			report.Failures++
		}
		if o.notified {
			report.Notified++
		}
	}

	duration := s.now().Sub(start)
	s.recorder.RecordCycle(duration, report.Checks)
	s.logger.Info("ポーリングサイクルが完了しました",
		slog.Int("check_count", report.Checks),
		slog.Int("failure_count", report.Failures),
		slog.Int("notified_count", report.Notified),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if dispatched < len(tasks) {
		return report, ctx.Err()
	}
	return report, nil
}

// buildTasks は監視を(商品, リージョン)単位にまとめる。
// 同じ商品を複数ユーザーが監視していてもフェッチは1回になる。
func (s *Scheduler) buildTasks(active []*model.ActiveMonitor) []*checkTask {
	type key struct {
		productID string
		region    model.Region
	}
	index := make(map[key]*checkTask)
	seen := make(map[key]map[int64]struct{})
	var tasks []*checkTask

	for _, m := range active {
		if m == nil {
			continue
		}
		for _, ref := range m.Product.SourceRefs() {
			if _, ok := s.fetchers[ref.Region]; !ok {
				continue
			}
			k := key{productID: m.Product.ID, region: ref.Region}
			task, ok := index[k]
			if !ok {
				task = &checkTask{product: m.Product, region: ref.Region, reference: ref.Reference}
				index[k] = task
				seen[k] = make(map[int64]struct{})
				tasks = append(tasks, task)
			}
			if _, dup := seen[k][m.UserID]; dup {
				continue
			}
			seen[k][m.UserID] = struct{}{}
			task.subscribers = append(task.subscribers, m.UserID)
		}
	}

	for _, task := range tasks {
		sort.Slice(task.subscribers, func(i, j int) bool { return task.subscribers[i] < task.subscribers[j] })
	}
	return tasks
}

// check は1件のフェッチ、状態判定、必要なら通知までを順に行う。
// 戻り値は通知を行ったかどうか。
func (s *Scheduler) check(ctx context.Context, task *checkTask) (bool, error) {
	region := string(task.region)
	fetcher := s.fetchers[task.region]

	fetchStart := s.now()
	result, err := fetcher.Check(ctx, task.reference)
	s.recorder.RecordFetchLatency(region, s.now().Sub(fetchStart))
	if err != nil {
		kind := stock.KindOf(err)
		if kind == "" {
			kind = stock.KindNetwork
		}
		s.recorder.RecordCheck(region, metrics.OutcomeError)
		s.recorder.RecordFetchFailure(region, string(kind))
		s.logger.Warn("在庫チェックに失敗しました",
			slog.String("product_id", task.product.ID),
			slog.String("region", region),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	if result.InStock {
		s.recorder.RecordCheck(region, metrics.OutcomeInStock)
	} else {
		s.recorder.RecordCheck(region, metrics.OutcomeOutOfStock)
	}

	notifyNow, err := s.tracker.ShouldNotify(ctx, task.product.ID, task.region, result.InStock)
	if err != nil {
		s.logger.Error("在庫状態の更新に失敗しました",
			slog.String("product_id", task.product.ID),
			slog.String("region", region),
			slog.String("error", err.Error()),
		)
		return false, err
	}
	if !notifyNow {
		return false, nil
	}

	name := task.product.Name
	if name == "" {
		name = result.Title
	}
	res := s.notifier.Notify(ctx, notify.Alert{
		ProductID:   task.product.ID,
		ProductName: name,
		Region:      task.region,
		URL:         task.reference,
	}, task.subscribers)
	s.recorder.RecordNotification(res.Sent, res.Total)

	s.writeLog(ctx, task, res)
	return true, nil
}

func (s *Scheduler) writeLog(ctx context.Context, task *checkTask, res notify.Result) {
	if s.logs == nil {
		return
	}
	entry := &model.NotificationLog{
		ProductID: task.product.ID,
		Region:    task.region,
		Total:     res.Total,
		Sent:      res.Sent,
		CreatedAt: s.now(),
	}
	if err := s.logs.Create(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("通知ログの記録に失敗しました",
			slog.String("product_id", task.product.ID),
			slog.String("region", string(task.region)),
			slog.String("error", err.Error()),
		)
	}
}
