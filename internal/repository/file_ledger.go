package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hitoshi/forumwatch/internal/model"
)

// LedgerFileName は処理済み台帳のファイル名。
const LedgerFileName = "processed_posts.txt"

// FileLedger は1行1キーのテキストファイルによる処理済み台帳。
type FileLedger struct {
	path string
	mu   sync.Mutex
}

// NewFileLedger はdir配下の台帳ファイルを使うFileLedgerを生成する。
func NewFileLedger(dir string) *FileLedger {
	return &FileLedger{path: filepath.Join(dir, LedgerFileName)}
}

// Path は台帳ファイルのパスを返す。
func (l *FileLedger) Path() string {
	return l.path
}

// Load は台帳ファイルを読み込む。空行と前後の空白は無視する。
func (l *FileLedger) Load(ctx context.Context) (model.ProcessedSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := model.ProcessedSet{}
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("処理済み台帳を開けません: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			set.Add(model.PostKey(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("処理済み台帳の読み込みに失敗: %w", err)
	}
	return set, nil
}

// Append はキーを1行追記する。ディレクトリが存在しない場合は作成する。
func (l *FileLedger) Append(ctx context.Context, key model.PostKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("台帳ディレクトリの作成に失敗: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("処理済み台帳を開けません: %w", err)
	}
	if _, err := fmt.Fprintln(f, key.String()); err != nil {
		f.Close()
		return fmt.Errorf("処理済み台帳への追記に失敗: %w", err)
	}
	return f.Close()
}
