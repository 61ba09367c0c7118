package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shouni/go-book-spider/pkg/emit"
)

const (
	// EnvPrefix は環境変数のプレフィックスです (例: BOOKSPIDER_MAX_RETRIES)。
	EnvPrefix  = "BOOKSPIDER"
	configName = "bookspider" // ./bookspider.yaml

	KeyTimeout     = "timeout"
	KeyMaxRetries  = "max-retries"
	KeyUserAgent   = "user-agent"
	KeyFormat      = "format"
	KeyMetricsFile = "metrics-file"

	DefaultTimeoutSec = 10
	DefaultMaxRetries = 0
)

// Config はアプリケーション全体の設定です。
// 優先順位: 明示したフラグ > 環境変数 > 設定ファイル > デフォルト値
type Config struct {
	TimeoutSec  int    `mapstructure:"timeout"`
	MaxRetries  int    `mapstructure:"max-retries"`
	UserAgent   string `mapstructure:"user-agent"`
	Format      string `mapstructure:"format"`
	MetricsFile string `mapstructure:"metrics-file"`
}

// Load はフラグ、環境変数、設定ファイルから設定を読み込みます。
// configDirs を省略した場合はカレントディレクトリの bookspider.yaml を探します。ファイルがなくてもエラーにはなりません。
func Load(flags *pflag.FlagSet, configDirs ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault(KeyTimeout, DefaultTimeoutSec)
	v.SetDefault(KeyMaxRetries, DefaultMaxRetries)
	v.SetDefault(KeyUserAgent, "")
	v.SetDefault(KeyFormat, string(emit.DefaultFormat))
	v.SetDefault(KeyMetricsFile, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if len(configDirs) == 0 {
		configDirs = []string{"."}
	}
	for _, dir := range configDirs {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("フラグのバインドに失敗しました: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の変換に失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の範囲を検証します。
func (c *Config) Validate() error {
	if c.TimeoutSec < 0 {
		return fmt.Errorf("timeout は0以上である必要があります: %d", c.TimeoutSec)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries は0以上である必要があります: %d", c.MaxRetries)
	}
	if _, err := emit.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}
