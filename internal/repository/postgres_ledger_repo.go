package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/forumwatch/internal/model"
)

// PostgresLedgerRepo はPostgreSQLのprocessed_postsテーブルによる処理済み台帳。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// Load は台帳の全PostKeyを読み込む。
func (r *PostgresLedgerRepo) Load(ctx context.Context) (model.ProcessedSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT post_key FROM processed_posts`)
	if err != nil {
		return nil, fmt.Errorf("処理済み台帳の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	set := model.ProcessedSet{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("処理済み台帳のスキャンに失敗しました: %w", err)
		}
		set.Add(model.PostKey(key))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("処理済み台帳のイテレーションに失敗しました: %w", err)
	}
	return set, nil
}

// Append はPostKeyを追記する。既存のキーはON CONFLICTで無視する。
func (r *PostgresLedgerRepo) Append(ctx context.Context, key model.PostKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_posts (post_key, processed_at)
		 VALUES ($1, now())
		 ON CONFLICT (post_key) DO NOTHING`,
		key.String(),
	)
	if err != nil {
		return fmt.Errorf("処理済み台帳への追記に失敗しました: %w", err)
	}
	return nil
}
