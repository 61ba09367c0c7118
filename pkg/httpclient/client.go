package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-book-spider/pkg/retry"
	"github.com/shouni/go-book-spider/pkg/types"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB

	DefaultUserAgent = "Mozilla/5.0 (compatible; go-book-spider/1.0)"

	maxErrorBodyLength = 1024
)

var (
	// ErrBodyTooLarge は、レスポンスボディが MaxBodySize を超えた場合のエラーです。リトライ対象外です。
	ErrBodyTooLarge = fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", MaxBodySize)

	errInvalidRequest = errors.New("GETリクエスト作成に失敗しました")
)

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースです。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NonRetryableHTTPError はHTTP 4xx系のステータスコードエラーを示すカスタムエラー型です。
type NonRetryableHTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *NonRetryableHTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("HTTPクライアントエラー (非リトライ対象): ステータスコード %d, ボディ: %s", e.StatusCode, truncateBody(e.Body))
	}
	return fmt.Sprintf("HTTPクライアントエラー (非リトライ対象): ステータスコード %d, ボディなし", e.StatusCode)
}

// ServerHTTPError はHTTP 5xx系 (およびその他の非2xx) のステータスコードエラーです。リトライ対象です。
type ServerHTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *ServerHTTPError) Error() string {
	return fmt.Sprintf("HTTPステータスコードエラー (リトライ対象): %d, 詳細: %s", e.StatusCode, truncateBody(e.Body))
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyLength {
		return s[:maxErrorBodyLength] + "..."
	}
	return s
}

// Client は1回のGETと、設定された回数までの指数バックオフ付きリトライを管理します。
type Client struct {
	httpClient  Doer
	retryConfig retry.Config
	userAgent   string
}

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithMaxRetries は最大リトライ回数を設定します。
func WithMaxRetries(max uint64) ClientOption {
	return func(c *Client) {
		c.retryConfig.MaxRetries = max
	}
}

// WithRetryConfig はリトライ設定全体を置き換えます。
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithUserAgent は User-Agent ヘッダーを設定します。空文字列の場合はデフォルトのままです。
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New は、新しいClientを生成します。timeout が 0 以下の場合は DefaultHTTPTimeout を使用します。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.DefaultConfig(),
		userAgent:   DefaultUserAgent,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// FetchPage はURLに対してGETを発行し、ボディを読み込んだ Page を返します。
// 失敗はすべて *types.FetchError として返されます。
func (c *Client) FetchPage(ctx context.Context, url string) (*types.Page, error) {
	var page *types.Page

	op := func() error {
		p, err := c.doFetch(ctx, url)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	shouldRetry := func(err error) bool {
		// 呼び出し元のコンテキストが終了していれば打ち切る。クライアント側の試行タイムアウトは再試行する。
		if ctx.Err() != nil {
			return false
		}
		return isRetryableError(err)
	}

	err := retry.Do(ctx, c.retryConfig, fmt.Sprintf("URL(%s)のフェッチ", url), op, shouldRetry)
	if err != nil {
		return nil, &types.FetchError{
			URL:        url,
			StatusCode: statusCodeOf(err),
			Err:        err,
		}
	}
	return page, nil
}

// doFetch は実際の一度のHTTP GETリクエストを実行します。
func (c *Client) doFetch(ctx context.Context, url string) (*types.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(body)) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &types.Page{
		URL:         finalURL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// checkResponse は2xx以外のステータスコードをエラーに変換します。
// ボディを読み込みますが、閉じる責務は呼び出し元にあります。
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength+1))

	if resp.StatusCode >= 400 && resp.StatusCode <= 499 {
		return &NonRetryableHTTPError{StatusCode: resp.StatusCode, Body: bodyBytes}
	}
	return &ServerHTTPError{StatusCode: resp.StatusCode, Body: bodyBytes}
}

// IsNonRetryableError は与えられたエラーが非リトライ対象のHTTPエラーであるかを判断します。
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var nonRetryable *NonRetryableHTTPError
	return errors.As(err, &nonRetryable)
}

// isRetryableError は retry.ShouldRetryFunc のシグネチャを満たします。
// http.Client.Timeout による試行単位のタイムアウトはネットワークエラーとして扱います。
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrBodyTooLarge) || errors.Is(err, errInvalidRequest) {
		return false
	}
	return !IsNonRetryableError(err)
}

func statusCodeOf(err error) int {
	var nonRetryable *NonRetryableHTTPError
	if errors.As(err, &nonRetryable) {
		return nonRetryable.StatusCode
	}
	var serverErr *ServerHTTPError
	if errors.As(err, &serverErr) {
		return serverErr.StatusCode
	}
	return 0
}
