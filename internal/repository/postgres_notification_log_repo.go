package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stockwatch/internal/model"
)

// PostgresNotificationLogRepo はPostgreSQLを使用した通知ログリポジトリ。
type PostgresNotificationLogRepo struct {
	db *sql.DB
}

// NewPostgresNotificationLogRepo はPostgresNotificationLogRepoを生成する。
func NewPostgresNotificationLogRepo(db *sql.DB) *PostgresNotificationLogRepo {
	return &PostgresNotificationLogRepo{db: db}
}

// Create は通知結果を記録する。
func (r *PostgresNotificationLogRepo) Create(ctx context.Context, entry *model.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_logs (id, product_id, region, total, sent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ProductID, string(entry.Region), entry.Total, entry.Sent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知ログの記録に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は新しい順に最大limit件を返す。
func (r *PostgresNotificationLogRepo) ListRecent(ctx context.Context, limit int) ([]*model.NotificationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, region, total, sent, created_at
		 FROM notification_logs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("通知ログの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.NotificationLog
	for rows.Next() {
		l := &model.NotificationLog{}
		var reg string
		if err := rows.Scan(&l.ID, &l.ProductID, &reg, &l.Total, &l.Sent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("通知ログ行の読み取りに失敗しました: %w", err)
		}
		l.Region = model.Region(reg)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知ログの走査に失敗しました: %w", err)
	}
	return logs, nil
}
