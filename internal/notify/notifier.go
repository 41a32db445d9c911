// Package notify は在庫通知の購読者への一斉送信を提供する。
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/stockwatch/internal/model"
)

// DefaultSendInterval は送信間の待機時間。
const DefaultSendInterval = 100 * time.Millisecond

// Sender はチャット宛先へのメッセージ送信を行う。
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TextSanitizer はメッセージに埋め込む外部由来テキストを無害化する。
type TextSanitizer interface {
	Sanitize(text string) string
}

// Alert は1件の入荷イベント。
type Alert struct {
	ProductID   string
	ProductName string
	Region      model.Region
	URL         string
}

// MessageFormatter は入荷イベントから送信するメッセージ本文を作る。
type MessageFormatter interface {
	Format(alert Alert) string
}

// StockAlertFormatter は在庫アラートのHTMLメッセージを作る。
type StockAlertFormatter struct {
	sanitizer TextSanitizer
}

// NewStockAlertFormatter はStockAlertFormatterを生成する。
func NewStockAlertFormatter(sanitizer TextSanitizer) *StockAlertFormatter {
	return &StockAlertFormatter{sanitizer: sanitizer}
}

// Format はMessageFormatterを実装する。
func (f *StockAlertFormatter) Format(alert Alert) string {
	name := f.sanitizer.Sanitize(alert.ProductName)
	if name == "" {
		name = "Product"
	}

	var b strings.Builder
	b.WriteString("🔔 <b>STOCK ALERT!</b> 🔔\n\n")
	fmt.Fprintf(&b, "<b>%s</b> is now in stock at %s store!", name, alert.Region.DisplayName())
	if alert.URL != "" {
		fmt.Fprintf(&b, "\n\n<a href='%s'>Click here to view</a>", html.EscapeString(alert.URL))
	}
	return b.String()
}

// Result は1回の一斉送信の結果。
type Result struct {
	Sent   int
	Total  int
	Failed []int64
}

// Notifier は入荷通知を購読者ごとに個別送信する。
// 送信間隔はレートリミッタで制御し、複数商品の通知が並行しても全体で間隔を守る。
type Notifier struct {
	sender    Sender
	formatter MessageFormatter
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewNotifier はNotifierを生成する。sendIntervalが0以下の場合は間隔を空けない。
func NewNotifier(sender Sender, formatter MessageFormatter, sendInterval time.Duration, logger *slog.Logger) *Notifier {
	limit := rate.Inf
	if sendInterval > 0 {
		limit = rate.Every(sendInterval)
	}
	return &Notifier{
		sender:    sender,
		formatter: formatter,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Notify は同じ本文を各購読者へ送信し、成功数を返す。
// 個別の送信失敗はログに残して次の宛先へ進む。重複した宛先には1回だけ送る。
// コンテキストがキャンセルされた場合、未送信の宛先は失敗として数える。
func (n *Notifier) Notify(ctx context.Context, alert Alert, subscribers []int64) Result {
	recipients := uniqueChatIDs(subscribers)
	result := Result{Total: len(recipients)}
	if len(recipients) == 0 {
		return result
	}

	text := n.formatter.Format(alert)

	for i, chatID := range recipients {
		if err := n.limiter.Wait(ctx); err != nil {
			n.logger.Warn("通知送信を中断しました",
				slog.String("product_id", alert.ProductID),
				slog.Int("remaining", len(recipients)-i),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, recipients[i:]...)
			break
		}

		if err := n.sender.Send(ctx, chatID, text); err != nil {
			n.logger.Error("通知の送信に失敗しました",
				slog.String("product_id", alert.ProductID),
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, chatID)
			continue
		}
		result.Sent++
	}

	n.logger.Info("在庫通知を送信しました",
		slog.String("product_id", alert.ProductID),
		slog.String("product_name", alert.ProductName),
		slog.String("region", string(alert.Region)),
		slog.Int("sent", result.Sent),
		slog.Int("total", result.Total),
	)

	return result
}

func uniqueChatIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
