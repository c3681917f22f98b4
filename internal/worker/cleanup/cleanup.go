// Package cleanup は処理済み台帳の保持期間による削除ジョブを提供する。
// 既定では台帳を削除せず、保持日数が正の場合だけ古い行を削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LedgerCleanupJob は保持期間を超過した台帳の行を削除するジョブ。
// 削除したキーの記事は次回以降の実行で再び評価される。
type LedgerCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 0以下の場合は削除しない
}

// NewLedgerCleanupJob は新しいLedgerCleanupJobを生成する。
func NewLedgerCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *LedgerCleanupJob {
	return &LedgerCleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Enabled は削除が有効かを返す。
func (j *LedgerCleanupJob) Enabled() bool {
	return j.RetentionDays > 0
}

// RunOnce はprocessed_atがRetentionDays日前より古い行を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *LedgerCleanupJob) RunOnce(ctx context.Context) error {
	if !j.Enabled() {
		j.logger.Debug("台帳の保持日数が未設定のため削除をスキップします")
		return nil
	}
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM processed_posts WHERE processed_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("台帳クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("台帳クリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("台帳クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
