package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stockwatch/internal/model"
)

// PostgresMonitorRepo はPostgreSQLを使用した監視リポジトリ。
type PostgresMonitorRepo struct {
	db *sql.DB
}

// NewPostgresMonitorRepo はPostgresMonitorRepoを生成する。
func NewPostgresMonitorRepo(db *sql.DB) *PostgresMonitorRepo {
	return &PostgresMonitorRepo{db: db}
}

// ListActive は有効かつ期限内の監視を商品情報と結合して返す。
func (r *PostgresMonitorRepo) ListActive(ctx context.Context) ([]*model.ActiveMonitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, m.expires_at,
		        p.id, p.name, p.global_link, p.au_link, p.price, p.created_at, p.updated_at
		 FROM monitors m
		 JOIN products p ON p.id = m.product_id
		 WHERE m.active = true AND m.expires_at > now()
		 ORDER BY p.id, m.user_id`)
	if err != nil {
		return nil, fmt.Errorf("有効な監視の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var monitors []*model.ActiveMonitor
	for rows.Next() {
		m := &model.ActiveMonitor{}
		p := &m.Product
		if err := rows.Scan(
			&m.MonitorID, &m.UserID, &m.ExpiresAt,
			&p.ID, &p.Name, &p.GlobalLink, &p.AULink, &p.Price, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("監視行の読み取りに失敗しました: %w", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監視一覧の走査に失敗しました: %w", err)
	}
	return monitors, nil
}

// ListSubscribers は指定商品を監視中のユーザーIDを重複なしで返す。
func (r *PostgresMonitorRepo) ListSubscribers(ctx context.Context, productID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM monitors
		 WHERE product_id = $1 AND active = true AND expires_at > now()
		 ORDER BY user_id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("購読者行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読者一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// ListByProduct は指定商品の監視を新しい順に返す。
func (r *PostgresMonitorRepo) ListByProduct(ctx context.Context, productID string) ([]*model.Monitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, product_id, active, expires_at, created_at
		 FROM monitors WHERE product_id = $1 ORDER BY created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("監視一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var monitors []*model.Monitor
	for rows.Next() {
		m := &model.Monitor{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.ProductID, &m.Active, &m.ExpiresAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("監視行の読み取りに失敗しました: %w", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監視一覧の走査に失敗しました: %w", err)
	}
	return monitors, nil
}

// Create は監視を作成する。ユーザーは同一トランザクションでUPSERTする。
func (r *PostgresMonitorRepo) Create(ctx context.Context, user *model.User, m *model.Monitor) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.UserID = user.UserID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (user_id, username) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET username = CASE WHEN EXCLUDED.username = '' THEN users.username ELSE EXCLUDED.username END`,
		user.UserID, user.Username,
	); err != nil {
		return fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO monitors (id, user_id, product_id, active, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.ProductID, m.Active, m.ExpiresAt, m.CreatedAt,
	); err != nil {
		return fmt.Errorf("監視の作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Cancel は監視を無効化する。
func (r *PostgresMonitorRepo) Cancel(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE monitors SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("監視の無効化に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("監視 %s: %w", id, ErrNotFound)
	}
	return nil
}
