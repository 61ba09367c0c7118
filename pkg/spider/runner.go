package spider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shouni/go-book-spider/internal/metrics"
	"github.com/shouni/go-book-spider/pkg/extract"
	"github.com/shouni/go-book-spider/pkg/pagesave"
	"github.com/shouni/go-book-spider/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DI)
// ----------------------------------------------------------------------

// Fetcher は、URLから1ページを取得する機能のインターフェースです。
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (*types.Page, error)
}

// Emitter は、抽出したレコードを出力する機能のインターフェースです。
type Emitter interface {
	Emit(record types.Record) error
}

// Summary はスパイダー実行1回分の結果です。
type Summary struct {
	Spider       string
	URL          string // 取得後の最終URL
	Records      int
	Misses       int
	BytesWritten int // ModeSave のみ
}

// Runner は start → fetch → extract/save → done を1回だけ順に実行します。
type Runner struct {
	fetcher Fetcher
	emitter Emitter
	saver   *pagesave.Saver
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// Option は Runner の設定を行うための関数型です。
type Option func(*Runner)

func WithSaver(saver *pagesave.Saver) Option {
	return func(r *Runner) {
		if saver != nil {
			r.saver = saver
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner は新しい Runner を生成します。
func NewRunner(fetcher Fetcher, emitter Emitter, opts ...Option) (*Runner, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("spider.NewRunner: Fetcher cannot be nil")
	}
	if emitter == nil {
		return nil, fmt.Errorf("spider.NewRunner: Emitter cannot be nil")
	}

	r := &Runner{
		fetcher: fetcher,
		emitter: emitter,
		saver:   pagesave.NewSaver(nil),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run はスパイダーを1回実行します。
// 取得エラーと書き込みエラーは致命的で、そのまま返されます。抽出ミスはスキップされ、件数のみ Summary に残ります。
func (r *Runner) Run(ctx context.Context, cfg Config) (Summary, error) {
	summary := Summary{Spider: cfg.Name, URL: cfg.StartURL}
	if err := cfg.Validate(); err != nil {
		return summary, err
	}

	log := r.logger.With(zap.String("spider", cfg.Name))
	log.Info("スパイダーを開始します", zap.String("url", cfg.StartURL), zap.String("mode", string(cfg.Mode)))

	page, err := r.fetcher.FetchPage(ctx, cfg.StartURL)
	if err != nil {
		r.incErrors(metrics.ErrorTypeFetch)
		return summary, err
	}
	summary.URL = page.URL
	if r.metrics != nil {
		r.metrics.IncPagesFetched()
	}
	log.Debug("ページを取得しました", zap.String("url", page.URL), zap.Int("bytes", len(page.Body)), zap.Int("status", page.StatusCode))

	if cfg.Mode == ModeSave {
		n, err := r.saver.Save(cfg.OutputFile, page.Body)
		if err != nil {
			r.incErrors(metrics.ErrorTypeWrite)
			return summary, err
		}
		summary.BytesWritten = n
		if r.metrics != nil {
			r.metrics.AddBytesSaved(n)
		}
		log.Info("saved file", zap.String("path", cfg.OutputFile), zap.Int("bytes", n))
		return summary, nil
	}

	res, err := extractPage(cfg.Mode, page)
	if err != nil {
		r.incErrors(metrics.ErrorTypeExtract)
		return summary, err
	}

	for _, miss := range res.Misses {
		log.Debug("商品エントリをスキップしました", zap.Int("index", miss.Index), zap.String("reason", miss.Reason))
	}
	summary.Misses = len(res.Misses)

	for _, rec := range res.Records {
		if err := r.emitter.Emit(rec); err != nil {
			r.incErrors(metrics.ErrorTypeEmit)
			r.recordCounts(cfg.Name, summary)
			return summary, fmt.Errorf("レコードの出力に失敗しました: %w", err)
		}
		summary.Records++
	}
	r.recordCounts(cfg.Name, summary)

	log.Info("スパイダーが完了しました", zap.Int("records", summary.Records), zap.Int("misses", summary.Misses))
	return summary, nil
}

func extractPage(mode Mode, page *types.Page) (extract.Result, error) {
	switch mode {
	case ModeTitles:
		return extract.Titles(page)
	case ModeImages:
		return extract.ImageURLs(page)
	default:
		return extract.Result{}, fmt.Errorf("抽出できないモードです: %q", mode)
	}
}

func (r *Runner) recordCounts(spider string, s Summary) {
	if r.metrics == nil {
		return
	}
	r.metrics.AddRecords(spider, s.Records)
	r.metrics.AddMisses(spider, s.Misses)
}

func (r *Runner) incErrors(errorType string) {
	if r.metrics != nil {
		r.metrics.IncErrors(errorType)
	}
}
