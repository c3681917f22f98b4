package model

import (
	"errors"
	"fmt"
)

// ErrorKind は取得失敗の分類。
type ErrorKind int

const (
	// KindTransport はネットワーク・タイムアウト等の通信失敗（リトライ可能）。
	KindTransport ErrorKind = iota + 1
	// KindBlocked はサーバーによる明示的な拒否（長めのクールダウン後にリトライ）。
	KindBlocked
	// KindDecode はペイロード不正（API形状の変化の可能性がある）。
	KindDecode
	// KindEmpty は正常形式だが記事が0件（次の戦略へのフォールバック契機）。
	KindEmpty
)

// String はErrorKindの名前を返す。メトリクスのラベルにも使用する。
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBlocked:
		return "blocked"
	case KindDecode:
		return "decode"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// AcquisitionError は取得戦略の1回の試行が失敗したことを表す。
type AcquisitionError struct {
	Kind       ErrorKind
	Strategy   string
	Forum      string
	StatusCode int // HTTPステータス（該当する場合のみ）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *AcquisitionError) Error() string {
	msg := fmt.Sprintf("[%s] strategy=%s forum=%s", e.Kind, e.Strategy, e.Forum)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は原因エラーを返す。
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// NewTransportError は通信失敗エラーを生成する。
func NewTransportError(strategy, forum string, err error) *AcquisitionError {
	return &AcquisitionError{Kind: KindTransport, Strategy: strategy, Forum: forum, Err: err}
}

// NewStatusError はブロック以外の非2xxステータスを通信失敗として生成する。
func NewStatusError(strategy, forum string, statusCode int) *AcquisitionError {
	return &AcquisitionError{
		Kind:       KindTransport,
		Strategy:   strategy,
		Forum:      forum,
		StatusCode: statusCode,
		Err:        fmt.Errorf("予期しないHTTPステータス: %d", statusCode),
	}
}

// NewBlockedError はアクセス拒否エラーを生成する。
func NewBlockedError(strategy, forum string, statusCode int) *AcquisitionError {
	return &AcquisitionError{
		Kind:       KindBlocked,
		Strategy:   strategy,
		Forum:      forum,
		StatusCode: statusCode,
		Err:        fmt.Errorf("アクセスが拒否されました: HTTPステータス %d", statusCode),
	}
}

// NewDecodeError はペイロードのデコード失敗エラーを生成する。
func NewDecodeError(strategy, forum string, err error) *AcquisitionError {
	return &AcquisitionError{Kind: KindDecode, Strategy: strategy, Forum: forum, Err: err}
}

// NewEmptyResultError は0件結果のエラーを生成する。
func NewEmptyResultError(strategy, forum string) *AcquisitionError {
	return &AcquisitionError{
		Kind:     KindEmpty,
		Strategy: strategy,
		Forum:    forum,
		Err:      errors.New("記事が0件でした"),
	}
}

// KindOf はエラーの分類を返す。AcquisitionErrorでない場合はKindTransportとみなす。
func KindOf(err error) ErrorKind {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransport
}

// IsBlocked はエラーがアクセス拒否かを返す。
func IsBlocked(err error) bool {
	return err != nil && KindOf(err) == KindBlocked
}

// FatalInitError は取得機構などの必須コンポーネントを構築できないことを表す。
// リトライ不可で、プロセス境界まで伝播する唯一のエラー。
type FatalInitError struct {
	Component string
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *FatalInitError) Error() string {
	return fmt.Sprintf("初期化に失敗しました (%s): %v", e.Component, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FatalInitError) Unwrap() error {
	return e.Err
}

// NewFatalInitError はFatalInitErrorを生成する。
func NewFatalInitError(component string, err error) *FatalInitError {
	return &FatalInitError{Component: component, Err: err}
}
