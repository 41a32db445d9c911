// Command stockwatch はPOP MART商品の在庫を監視し、入荷をTelegramで通知する。
//
// 使い方:
//
//	stockwatch serve        管理APIサーバー
//	stockwatch worker       在庫監視ワーカー（--interval, --token）
//	stockwatch migrate      データベースマイグレーション
//	stockwatch healthcheck  /health の疎通確認（"healthcheck worker" でワーカー側）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/stockwatch/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "stockwatch: %v\n", err)
		stop()
		os.Exit(1)
	}
}
