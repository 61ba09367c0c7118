package pagesave

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-book-spider/pkg/types"
)

func TestSave(t *testing.T) {
	t.Run("Kバイトのボディをそのまま書き込む", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		body := []byte("<html><body>\x00\xffbinary-safe</body></html>")

		n, err := NewSaver(fs).Save(DefaultFileName, body)
		require.NoError(t, err)
		assert.Equal(t, len(body), n)

		got, err := afero.ReadFile(fs, DefaultFileName)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("再実行で上書きされる", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		saver := NewSaver(fs)

		_, err := saver.Save(DefaultFileName, []byte(strings.Repeat("long body ", 100)))
		require.NoError(t, err)
		_, err = saver.Save(DefaultFileName, []byte("short"))
		require.NoError(t, err)

		got, err := afero.ReadFile(fs, DefaultFileName)
		require.NoError(t, err)
		assert.Equal(t, "short", string(got))
	})

	t.Run("OSファイルシステム", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultFileName)
		body := []byte("<html>os</html>")

		n, err := NewSaver(nil).Save(path, body)
		require.NoError(t, err)
		assert.Equal(t, len(body), n)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("読み取り専用ファイルシステムはWriteError", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

		_, err := NewSaver(fs).Save(DefaultFileName, []byte("x"))
		var writeErr *types.WriteError
		require.True(t, errors.As(err, &writeErr))
		assert.Equal(t, DefaultFileName, writeErr.Path)
	})

	t.Run("空のパスはWriteError", func(t *testing.T) {
		_, err := NewSaver(afero.NewMemMapFs()).Save("", []byte("x"))
		var writeErr *types.WriteError
		assert.True(t, errors.As(err, &writeErr))
	})
}
