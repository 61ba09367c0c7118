package pagesave

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/shouni/go-book-spider/pkg/types"
)

// DefaultFileName は、ページ保存先のデフォルトのファイル名です (作業ディレクトリ直下)。
const DefaultFileName = "books.html"

const filePerm = 0o644

// Saver は、ページのボディを加工せずにファイルへ書き出します。
type Saver struct {
	fs afero.Fs
}

// NewSaver は新しい Saver を生成します。fs が nil の場合は OS のファイルシステムを使用します。
func NewSaver(fs afero.Fs) *Saver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Saver{fs: fs}
}

// Save は body を path に書き込みます。既存の内容は切り詰められ、上書きされます。
// 戻り値は書き込んだバイト数です。失敗はすべて *types.WriteError として返されます。
func (s *Saver) Save(path string, body []byte) (n int, err error) {
	if path == "" {
		return 0, &types.WriteError{Path: path, Err: fmt.Errorf("保存先のパスが空です")}
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return 0, &types.WriteError{Path: path, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &types.WriteError{Path: path, Err: closeErr}
		}
	}()

	n, err = f.Write(body)
	if err != nil {
		return n, &types.WriteError{Path: path, Err: err}
	}
	return n, nil
}
