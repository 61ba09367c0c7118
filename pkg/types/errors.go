package types

import (
	"fmt"
)

// FetchError は、ネットワークまたはHTTPステータスによる取得失敗を示します。
type FetchError struct {
	URL        string
	StatusCode int // レスポンスを受け取れなかった場合は 0
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ページの取得に失敗しました (URL: %s, ステータスコード: %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ページの取得に失敗しました (URL: %s): %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError は、ファイルシステムへの書き込み失敗を示します。
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ファイルの書き込みに失敗しました (パス: %s): %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
