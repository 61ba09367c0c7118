package spider

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shouni/go-book-spider/pkg/pagesave"
)

// Mode はスパイダーがページに対して行う処理です。
type Mode string

const (
	ModeTitles Mode = "titles" // 商品エントリごとに {title}
	ModeImages Mode = "images" // ページ全体で1件の {image_urls}
	ModeSave   Mode = "save"   // ページの生バイトをファイルへ保存 (レコードなし)
)

// Config は1つのスパイダーの設定です。
type Config struct {
	Name       string
	StartURL   string
	Mode       Mode
	OutputFile string // ModeSave のみ
}

// Validate は設定の整合性を検証します。
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("スパイダー名が空です")
	}

	u, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("開始URLのパースエラー (スパイダー: %s): %w", c.Name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("開始URLはhttpまたはhttpsである必要があります (スパイダー: %s): %s", c.Name, c.StartURL)
	}
	if u.Host == "" {
		return fmt.Errorf("開始URLにホストがありません (スパイダー: %s): %s", c.Name, c.StartURL)
	}

	switch c.Mode {
	case ModeTitles, ModeImages:
	case ModeSave:
		if c.OutputFile == "" {
			return fmt.Errorf("保存先ファイルが指定されていません (スパイダー: %s)", c.Name)
		}
	default:
		return fmt.Errorf("未対応のモードです (スパイダー: %s): %q", c.Name, c.Mode)
	}
	return nil
}

// 組み込みスパイダー。"text" はタイトル抽出、ページ全体の保存は "save" として分けている。
var builtins = map[string]Config{
	"text": {
		Name:     "text",
		StartURL: "http://books.toscrape.com",
		Mode:     ModeTitles,
	},
	"images": {
		Name:     "images",
		StartURL: "https://books.toscrape.com",
		Mode:     ModeImages,
	},
	"save": {
		Name:       "save",
		StartURL:   "http://books.toscrape.com",
		Mode:       ModeSave,
		OutputFile: pagesave.DefaultFileName,
	},
}

// Lookup は名前から組み込みスパイダーの設定を返します。
func Lookup(name string) (Config, error) {
	cfg, ok := builtins[strings.TrimSpace(name)]
	if !ok {
		return Config{}, fmt.Errorf("スパイダー %q は存在しません (利用可能: %s)", name, strings.Join(Names(), ", "))
	}
	return cfg, nil
}

// Names は組み込みスパイダー名をソートして返します。
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
