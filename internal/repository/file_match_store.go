package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
)

// 出力ファイル名。
const (
	MatchLogFileName    = "latest_matches.txt"
	SummaryFileName     = "latest_summary.json"
	RootSummaryFileName = "monitoring_summary.json"

	partitionPrefix = "matches_"
	partitionLayout = "2006-01-02"
	separatorWidth  = 60
)

// FileMatchStore はJSONファイルによる一致レコードの保存先。
// レコードは発見日（ローカル日付）ごとのパーティションファイルに追記し、
// 人が読むためのテキストログにも同じ内容を追記する。
type FileMatchStore struct {
	resultsDir string
	baseDir    string
	logger     *slog.Logger
	now        func() time.Time
	mu         sync.Mutex
}

// NewFileMatchStore はFileMatchStoreを生成する。
// パーティションとサマリーはresultsDirに、テキストログとサマリーの写しはbaseDirに書き込む。
func NewFileMatchStore(resultsDir, baseDir string, logger *slog.Logger) *FileMatchStore {
	return &FileMatchStore{
		resultsDir: resultsDir,
		baseDir:    baseDir,
		logger:     logger,
		now:        time.Now,
	}
}

// PartitionPath は指定日のパーティションファイルのパスを返す。
func (s *FileMatchStore) PartitionPath(day time.Time) string {
	return filepath.Join(s.resultsDir, partitionPrefix+day.Local().Format(partitionLayout)+".json")
}

// Append は一致レコードを発見日のパーティションに追記する。
// パーティションを読み込めない場合は空として扱い、一時ファイルに書いてから置き換える。
func (s *FileMatchStore) Append(ctx context.Context, rec model.MatchRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.resultsDir, 0o755); err != nil {
		return false, fmt.Errorf("結果ディレクトリの作成に失敗: %w", err)
	}

	path := s.partitionFor(rec)
	records := s.loadPartition(path)
	for _, existing := range records {
		if existing.Key == rec.Key {
			s.logger.Info("一致レコードは保存済みのためスキップします",
				slog.String("post_key", rec.Key.String()),
				slog.String("partition", path),
			)
			return false, nil
		}
	}
	records = append(records, rec)

	data, err := encodeJSON(records)
	if err != nil {
		return false, fmt.Errorf("一致レコードのエンコードに失敗: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return false, fmt.Errorf("パーティションの書き込みに失敗: %w", err)
	}

	if err := s.appendMatchLog(rec); err != nil {
		// テキストログは表示用のため失敗しても一致レコードは保存済みとする
		s.logger.Warn("一致ログへの追記に失敗しました",
			slog.String("post_key", rec.Key.String()),
			slog.String("error", err.Error()),
		)
	}
	return true, nil
}

// WriteSummary は実行サマリーをresultsDirとbaseDirの両方に上書き保存する。
func (s *FileMatchStore) WriteSummary(ctx context.Context, summary *model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeJSON(summary)
	if err != nil {
		return fmt.Errorf("サマリーのエンコードに失敗: %w", err)
	}
	for _, path := range []string{
		filepath.Join(s.resultsDir, SummaryFileName),
		filepath.Join(s.baseDir, RootSummaryFileName),
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("サマリーディレクトリの作成に失敗: %w", err)
		}
		if err := writeFileAtomic(path, data); err != nil {
			return fmt.Errorf("サマリーの書き込みに失敗 (%s): %w", path, err)
		}
	}
	return nil
}

// partitionFor はレコードの発見日からパーティションを決める。
// 発見日時を解釈できない場合は現在の日付を使う。
func (s *FileMatchStore) partitionFor(rec model.MatchRecord) string {
	if len(rec.FoundAt) >= len(partitionLayout) {
		if day, err := time.ParseInLocation(partitionLayout, rec.FoundAt[:len(partitionLayout)], time.Local); err == nil {
			return s.PartitionPath(day)
		}
	}
	return s.PartitionPath(s.now())
}

// loadPartition はパーティションを読み込む。存在しない・壊れている場合は空として扱う。
func (s *FileMatchStore) loadPartition(path string) []model.MatchRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("パーティションを読み込めないため空として扱います",
				slog.String("partition", path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	var records []model.MatchRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("パーティションを解析できないため空として扱います",
			slog.String("partition", path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return records
}

func (s *FileMatchStore) appendMatchLog(rec model.MatchRecord) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.baseDir, MatchLogFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(FormatMatchLogEntry(rec)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FormatMatchLogEntry はテキストログの1件分を組み立てる。
func FormatMatchLogEntry(rec model.MatchRecord) string {
	var b strings.Builder
	b.WriteString("\n" + strings.Repeat("=", separatorWidth) + "\n")
	fmt.Fprintf(&b, "發現時間: %s\n", rec.FoundAt)
	fmt.Fprintf(&b, "平台: Dcard %s\n", rec.ForumName)
	fmt.Fprintf(&b, "標題: %s\n", rec.Title)
	fmt.Fprintf(&b, "作者: %s\n", rec.Author)
	fmt.Fprintf(&b, "網址: %s\n", rec.URL)
	fmt.Fprintf(&b, "匹配關鍵字: %s\n", strings.Join(rec.MatchedKeywords, ", "))
	fmt.Fprintf(&b, "愛心/留言: %d/%d\n", rec.LikeCount, rec.CommentCount)
	fmt.Fprintf(&b, "摘要: %s\n", rec.Excerpt)
	return b.String()
}

// encodeJSON はHTMLエスケープなしのインデント付きJSONを返す。
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic は同じディレクトリの一時ファイルに書いてから置き換える。
// 書き込み途中で停止しても既存のファイルは壊れない。
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
