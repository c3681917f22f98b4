// Package repository は処理済み台帳と一致レコードの永続化を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/forumwatch/internal/model"
)

// LedgerRepository は処理済み台帳の永続化インターフェース。
// 台帳は追記のみで、既定では削除しない。
type LedgerRepository interface {
	// Load は台帳の全PostKeyを読み込む。台帳が存在しない場合は空集合を返す。
	Load(ctx context.Context) (model.ProcessedSet, error)

	// Append はPostKeyを台帳に追記する。
	Append(ctx context.Context, key model.PostKey) error
}

// MatchStore は一致レコードと実行サマリーの永続化インターフェース。
type MatchStore interface {
	// Append は一致レコードを発見日のパーティションに追記する。
	// 同じPostKeyのレコードがパーティションに既に存在する場合は追記せずfalseを返す。
	Append(ctx context.Context, rec model.MatchRecord) (bool, error)

	// WriteSummary は最新の実行サマリーを上書き保存する。
	WriteSummary(ctx context.Context, summary *model.RunSummary) error
}
