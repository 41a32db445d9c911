package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender はTelegram Bot APIでメッセージを送るSender。
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSender はBot APIクライアントを初期化する。
// 初期化時にgetMeでトークンを検証するため、無効なトークンはここでエラーになる。
// endpointが空の場合は公式エンドポイントを使う。
func NewTelegramSender(token, endpoint string, timeout time.Duration) (*TelegramSender, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return &TelegramSender{api: api}, nil
}

// BotUsername は認証済みボットのユーザー名を返す。
func (s *TelegramSender) BotUsername() string {
	return s.api.Self.UserName
}

// Send はHTML形式のメッセージを1件送信する。
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	return nil
}
