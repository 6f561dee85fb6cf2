package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/any-hub/offline-shell/internal/exchange"
)

// ErrNetwork 是连接、DNS、超时等网络故障的哨兵。
var ErrNetwork = errors.New("network unreachable")

// Error 记录失败请求的方法与 URL。
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrNetwork) 对所有 *Error 成立。
func (e *Error) Is(target error) bool {
	return target == ErrNetwork
}

// Fetcher 向真实网络发起一次请求。任何 HTTP 状态码（包括 404/500）都是成功的抓取，
// 只有拿不到完整响应时才返回错误。
type Fetcher interface {
	Fetch(ctx context.Context, req *exchange.Request) (*exchange.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *exchange.Request) (*exchange.Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *exchange.Request) (*exchange.Response, error) {
	return f(ctx, req)
}

// HTTPFetcher 通过共享 http.Client 抓取，只尝试一次，不做重试。
type HTTPFetcher struct {
	client *http.Client
}

// NewFetcher 以共享 client 构造 Fetcher，client 为空时使用默认配置的上游 client。
func NewFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = NewUpstreamClient(nil)
	}
	return &HTTPFetcher{client: client}
}

// Fetch 发起请求并读完正文；hop-by-hop 头部在两个方向上都会被剔除。
func (f *HTTPFetcher) Fetch(ctx context.Context, req *exchange.Request) (*exchange.Response, error) {
	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	outbound := make(http.Header, len(httpReq.Header))
	CopyHeaders(outbound, httpReq.Header)
	httpReq.Header = outbound

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Method: req.Method(), URL: req.URL().String(), Err: err}
	}

	snapshot, err := exchange.ReadResponse(resp)
	if err != nil {
		return nil, &Error{Method: req.Method(), URL: req.URL().String(), Err: err}
	}

	header := make(http.Header, len(snapshot.Header))
	CopyHeaders(header, snapshot.Header)
	snapshot.Header = header
	return snapshot, nil
}
