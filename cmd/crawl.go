package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-book-spider/internal/pipeline"
	"github.com/shouni/go-book-spider/pkg/spider"
)

var (
	crawlURL    string // --url 開始URLの上書き
	crawlOutput string // --output 保存先ファイルの上書き (save のみ)
)

// resolveSpiderConfig は組み込みスパイダーの設定を取得し、フラグによる上書きを適用します。
func resolveSpiderConfig(name, rawURL, output string) (spider.Config, error) {
	cfg, err := spider.Lookup(name)
	if err != nil {
		return spider.Config{}, err
	}

	if rawURL != "" {
		startURL, err := ensureScheme(rawURL)
		if err != nil {
			return spider.Config{}, fmt.Errorf("URLスキームの処理エラー: %w", err)
		}
		cfg.StartURL = startURL
	}

	if output != "" {
		if cfg.Mode != spider.ModeSave {
			return spider.Config{}, fmt.Errorf("--output は save モードのスパイダーでのみ指定できます (スパイダー: %s)", cfg.Name)
		}
		cfg.OutputFile = output
	}

	return cfg, cfg.Validate()
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [spider]",
	Short: "スパイダーを実行し、抽出したレコードを標準出力に書き出します",
	Long: `指定したスパイダーで開始URLを1回だけ取得し、抽出結果を標準出力に書き出します。

  text    各商品エントリのタイトルを1件ずつ出力
  images  全サムネイル画像の絶対URLを1件のレコードにまとめて出力
  save    ページの生のHTMLを books.html に保存 (レコードは出力しない)`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveSpiderConfig(args[0], crawlURL, crawlOutput)
		if err != nil {
			return err
		}

		settings := GetSettings()
		if settings == nil {
			return fmt.Errorf("設定が初期化されていません。rootコマンドのPreRunを確認してください")
		}
		logger := GetLogger()
		defer func() { _ = logger.Sync() }()

		summary, err := pipeline.Run(context.Background(), pipeline.Options{
			Spider:   cfg,
			Settings: settings,
			Logger:   logger,
			Out:      cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		logger.Info("クロールが完了しました",
			zap.String("spider", summary.Spider),
			zap.String("url", summary.URL),
			zap.Int("records", summary.Records),
			zap.Int("misses", summary.Misses),
			zap.Int("bytes_written", summary.BytesWritten),
		)
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlURL, "url", "u", "", "開始URLを上書き (スキームがない場合は https:// を補完)")
	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "保存先ファイルを上書き (save のみ)")
}
