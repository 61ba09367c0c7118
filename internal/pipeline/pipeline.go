package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/shouni/go-book-spider/internal/config"
	"github.com/shouni/go-book-spider/internal/metrics"
	"github.com/shouni/go-book-spider/pkg/emit"
	"github.com/shouni/go-book-spider/pkg/httpclient"
	"github.com/shouni/go-book-spider/pkg/pagesave"
	"github.com/shouni/go-book-spider/pkg/spider"
)

const (
	// 全体処理のタイムアウトはクライアントタイムアウトの2倍
	overallTimeoutFactor = 2

	// DefaultOverallTimeout はクライアントタイムアウトが 0 の場合の全体タイムアウトです。
	DefaultOverallTimeout = 20 * time.Second
)

// Options は1回のスパイダー実行に必要な依存関係です。
type Options struct {
	Spider   spider.Config
	Settings *config.Config
	Logger   *zap.Logger
	Out      io.Writer

	// 以下は省略可能 (nil の場合は Settings から生成)
	Fetcher spider.Fetcher
	Saver   *pagesave.Saver
}

// OverallTimeout は取得・抽出・保存の全体をカバーするタイムアウトを返します。
func OverallTimeout(timeoutSec int) time.Duration {
	if timeoutSec <= 0 {
		return DefaultOverallTimeout
	}
	return time.Duration(timeoutSec*overallTimeoutFactor) * time.Second
}

// Run は依存関係を組み立て、スパイダーを1回実行するメインの処理パイプラインです。
// レコードは Out に書き出され、Settings.MetricsFile が指定されていればメトリクスも書き出します。
func Run(ctx context.Context, opts Options) (spider.Summary, error) {
	if opts.Settings == nil {
		return spider.Summary{}, fmt.Errorf("pipeline.Run: Settings cannot be nil")
	}
	if opts.Out == nil {
		return spider.Summary{}, fmt.Errorf("pipeline.Run: Out cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := opts.Settings

	// 1. 依存性の初期化
	format, err := emit.ParseFormat(settings.Format)
	if err != nil {
		return spider.Summary{}, err
	}
	writer, err := emit.NewWriter(opts.Out, format)
	if err != nil {
		return spider.Summary{}, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = httpclient.New(
			time.Duration(settings.TimeoutSec)*time.Second,
			httpclient.WithMaxRetries(uint64(settings.MaxRetries)),
			httpclient.WithUserAgent(settings.UserAgent),
		)
	}

	recorder := metrics.NewRecorder()
	runner, err := spider.NewRunner(fetcher, writer,
		spider.WithSaver(opts.Saver),
		spider.WithMetrics(recorder),
		spider.WithLogger(logger),
	)
	if err != nil {
		return spider.Summary{}, fmt.Errorf("Runnerの初期化エラー: %w", err)
	}

	// 2. 全体処理のコンテキストを設定
	overallTimeout := OverallTimeout(settings.TimeoutSec)
	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	// 3. 実行 (失敗時も出力済みのレコードは書き出す)
	summary, runErr := runner.Run(ctx, opts.Spider)
	closeErr := writer.Close()

	if settings.MetricsFile != "" {
		if err := recorder.WriteTextfile(settings.MetricsFile); err != nil {
			logger.Warn("メトリクスを書き出せませんでした", zap.Error(err))
		}
	}

	if runErr != nil {
		return summary, fmt.Errorf("スパイダー %s の実行エラー: %w", opts.Spider.Name, runErr)
	}
	if closeErr != nil {
		return summary, closeErr
	}
	return summary, nil
}
