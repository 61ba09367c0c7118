package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// エラー種別ラベル
const (
	ErrorTypeFetch   = "fetch"
	ErrorTypeExtract = "extract"
	ErrorTypeWrite   = "write"
	ErrorTypeEmit    = "emit"
)

// Recorder はスパイダー実行1回分のPrometheusメトリクスを保持します。
// グローバルレジストリは使わず、実行ごとのレジストリに登録します。
type Recorder struct {
	registry *prometheus.Registry

	PagesFetched prometheus.Counter
	Records      *prometheus.CounterVec
	Misses       *prometheus.CounterVec
	BytesSaved   prometheus.Counter
	Errors       *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookspider_pages_fetched_total",
			Help: "The total number of pages fetched",
		}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookspider_records_emitted_total",
			Help: "The total number of records emitted",
		}, []string{"spider"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookspider_extraction_misses_total",
			Help: "The total number of product entries skipped because a selector matched nothing",
		}, []string{"spider"}),
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookspider_bytes_saved_total",
			Help: "The total number of page bytes written to disk",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookspider_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // fetch, extract, write, emit
	}

	r.registry = prometheus.NewRegistry()
	r.registry.MustRegister(r.PagesFetched, r.Records, r.Misses, r.BytesSaved, r.Errors)
	return r
}

func (r *Recorder) IncPagesFetched() {
	r.PagesFetched.Inc()
}

func (r *Recorder) AddRecords(spider string, n int) {
	r.Records.WithLabelValues(spider).Add(float64(n))
}

func (r *Recorder) AddMisses(spider string, n int) {
	r.Misses.WithLabelValues(spider).Add(float64(n))
}

func (r *Recorder) AddBytesSaved(n int) {
	r.BytesSaved.Add(float64(n))
}

func (r *Recorder) IncErrors(errorType string) {
	r.Errors.WithLabelValues(errorType).Inc()
}

// Registry はテストや外部エクスポート用にレジストリを返します。
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile は node_exporter の textfile collector 形式でメトリクスを書き出します。
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("メトリクスファイルの書き込みに失敗しました (パス: %s): %w", path, err)
	}
	return nil
}
