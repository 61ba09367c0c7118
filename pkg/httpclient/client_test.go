package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-book-spider/pkg/retry"
	"github.com/shouni/go-book-spider/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) != nil {
		return args.Get(0).(*http.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

var fastRetry = retry.Config{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func TestNew(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		client := New(0)
		assert.Equal(t, DefaultHTTPTimeout, client.httpClient.(*http.Client).Timeout)
		assert.Equal(t, DefaultUserAgent, client.userAgent)
		assert.Equal(t, uint64(0), client.retryConfig.MaxRetries)
	})
	t.Run("custom timeout", func(t *testing.T) {
		client := New(30 * time.Second)
		assert.Equal(t, 30*time.Second, client.httpClient.(*http.Client).Timeout)
	})
	t.Run("options", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		client := New(time.Second, WithHTTPClient(mockClient), WithMaxRetries(5), WithUserAgent("test-agent"))
		assert.Equal(t, mockClient, client.httpClient)
		assert.Equal(t, uint64(5), client.retryConfig.MaxRetries)
		assert.Equal(t, "test-agent", client.userAgent)
	})
	t.Run("empty user agent keeps default", func(t *testing.T) {
		client := New(time.Second, WithUserAgent(""))
		assert.Equal(t, DefaultUserAgent, client.userAgent)
	})
}

func TestNonRetryableHTTPError_Error(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		expected string
	}{
		{"non-empty body", []byte("error body"), "HTTPクライアントエラー (非リトライ対象): ステータスコード 400, ボディ: error body"},
		{"empty body", nil, "HTTPクライアントエラー (非リトライ対象): ステータスコード 400, ボディなし"},
		{"truncated body", []byte(strings.Repeat("a", 1025)), "HTTPクライアントエラー (非リトライ対象): ステータスコード 400, ボディ: " + strings.Repeat("a", 1024) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &NonRetryableHTTPError{StatusCode: 400, Body: tt.body}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestFetchPage(t *testing.T) {
	t.Run("成功_ボディとContent-Type", func(t *testing.T) {
		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, "<html><body>ok</body></html>")
		}))
		defer srv.Close()

		client := New(time.Second, WithUserAgent("spider-test"))
		page, err := client.FetchPage(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, srv.URL, page.URL)
		assert.Equal(t, "<html><body>ok</body></html>", string(page.Body))
		assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
		assert.Equal(t, http.StatusOK, page.StatusCode)
		assert.Equal(t, "spider-test", gotUA)
	})

	t.Run("リダイレクト後のURLをベースURLとする", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				http.Redirect(w, r, "/index.html", http.StatusFound)
				return
			}
			_, _ = io.WriteString(w, "moved")
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		page, err := New(time.Second).FetchPage(context.Background(), srv.URL+"/")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/index.html", page.URL)
	})

	t.Run("404はリトライしない", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "not here", http.StatusNotFound)
		}))
		defer srv.Close()

		client := New(time.Second, WithRetryConfig(fastRetry))
		page, err := client.FetchPage(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Nil(t, page)

		var fetchErr *types.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.Equal(t, srv.URL, fetchErr.URL)
		assert.True(t, IsNonRetryableError(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("5xxはリトライ後に成功", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, "recovered")
		}))
		defer srv.Close()

		client := New(time.Second, WithRetryConfig(fastRetry))
		page, err := client.FetchPage(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "recovered", string(page.Body))
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("5xx_リトライなし", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := New(time.Second).FetchPage(context.Background(), srv.URL)
		var fetchErr *types.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ネットワークエラー", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

		client := New(time.Second, WithHTTPClient(mockClient))
		_, err := client.FetchPage(context.Background(), "http://books.toscrape.com")

		var fetchErr *types.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, 0, fetchErr.StatusCode)
		assert.Contains(t, err.Error(), "connection refused")
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})

	t.Run("Requestのないレスポンスは入力URLを使う", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(&http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("body")),
		}, nil)

		page, err := New(time.Second, WithHTTPClient(mockClient)).FetchPage(context.Background(), "http://books.toscrape.com")
		require.NoError(t, err)
		assert.Equal(t, "http://books.toscrape.com", page.URL)
		assert.Equal(t, []byte("body"), page.Body)
	})

	t.Run("試行タイムアウト後のリトライで成功", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				time.Sleep(300 * time.Millisecond)
			}
			_, _ = io.WriteString(w, "late but ok")
		}))
		defer srv.Close()

		client := New(100*time.Millisecond, WithRetryConfig(fastRetry))
		page, err := client.FetchPage(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "late but ok", string(page.Body))
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("呼び出し元のタイムアウトはリトライしない", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		client := New(time.Second, WithRetryConfig(fastRetry))
		_, err := client.FetchPage(ctx, srv.URL)
		var fetchErr *types.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("不正なURL", func(t *testing.T) {
		client := New(time.Second, WithRetryConfig(fastRetry))
		_, err := client.FetchPage(context.Background(), "http://[::1")
		var fetchErr *types.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.ErrorIs(t, err, errInvalidRequest)
	})
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(&NonRetryableHTTPError{StatusCode: 404}))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(ErrBodyTooLarge))
	assert.True(t, isRetryableError(&ServerHTTPError{StatusCode: 502}))
	assert.True(t, isRetryableError(errors.New("connection reset")))
	assert.True(t, isRetryableError(fmt.Errorf("Client.Timeout exceeded: %w", context.DeadlineExceeded)))
}
