package cmd

import (
	"fmt"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-book-spider/internal/config"
	"github.com/shouni/go-book-spider/pkg/emit"
)

// --- グローバル定数 ---

const (
	appName = "book-spider"
)

// --- グローバル変数 ---

var (
	globalSettings *config.Config
	globalLogger   *zap.Logger
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
// 値は internal/config で viper にバインドされ、環境変数 (BOOKSPIDER_*) と bookspider.yaml でも上書きできます。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.Int(config.KeyTimeout, config.DefaultTimeoutSec, "HTTPリクエストのタイムアウト時間（秒）")
	flags.Int(config.KeyMaxRetries, config.DefaultMaxRetries, "HTTPリクエストのリトライ最大回数 (0 は1回のみ試行)")
	flags.String(config.KeyUserAgent, "", "User-Agent ヘッダー (空の場合はデフォルト)")
	flags.String(config.KeyFormat, string(emit.DefaultFormat), "レコードの出力形式 (jsonl, json, yaml)")
	flags.String(config.KeyMetricsFile, "", "Prometheus textfile 形式のメトリクス出力先 (空の場合は出力しない)")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Root().PersistentFlags())
	if err != nil {
		return fmt.Errorf("設定の読み込みエラー: %w", err)
	}

	logger, err := newLogger(clibase.Flags.Verbose)
	if err != nil {
		return fmt.Errorf("ロガーの初期化エラー: %w", err)
	}

	logger.Debug("設定を読み込みました",
		zap.Int("timeout_sec", settings.TimeoutSec),
		zap.Int("max_retries", settings.MaxRetries),
		zap.String("format", settings.Format),
	)

	globalSettings = settings
	globalLogger = logger
	return nil
}

// newLogger は verbose の場合は開発用 (Debugレベル、コンソール形式)、それ以外は本番用 (JSON) のロガーを返します。
// どちらも stderr に出力するため、stdout のレコード出力とは混ざりません。
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// GetSettings は、PreRunで読み込まれた設定を返します。
func GetSettings() *config.Config {
	return globalSettings
}

// GetLogger は、PreRunで初期化されたロガーを返します。未初期化の場合は何も出力しないロガーです。
func GetLogger() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// --- エントリポイント ---

// Execute は、clibaseを使用してルートコマンドを組み立て、実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		crawlCmd,
		listCmd,
	)
	// clibase.Execute() の中で os.Exit(1) が処理されるため、ここでは不要
}
