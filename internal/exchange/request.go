package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrMalformed 表示适配层传入的请求无法构造成合法描述符，调用方应原样向上传递。
var ErrMalformed = errors.New("malformed request descriptor")

// Request 是一次被拦截请求的不可变描述：构造后所有访问器都返回副本，
// 既作为本地路由的分发键，也作为缓存条目的身份键。
type Request struct {
	method string
	url    *url.URL
	header http.Header
	body   []byte
}

// NewRequest 校验方法与绝对 URL 后构造描述符，header/body 会被深拷贝。
func NewRequest(method, rawURL string, header http.Header, body []byte) (*Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return nil, fmt.Errorf("%w: method required", ErrMalformed)
	}
	if strings.ContainsAny(method, " \t\r\n") {
		return nil, fmt.Errorf("%w: invalid method %q", ErrMalformed, method)
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: url must be absolute: %q", ErrMalformed, rawURL)
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return &Request{
		method: method,
		url:    parsed,
		header: cloneHeader(header),
		body:   cloneBytes(body),
	}, nil
}

// MustRequest 供测试与常量请求使用，构造失败直接 panic。
func MustRequest(method, rawURL string) *Request {
	req, err := NewRequest(method, rawURL, nil, nil)
	if err != nil {
		panic(err)
	}
	return req
}

// Method 返回大写的 HTTP 方法。
func (r *Request) Method() string {
	return r.method
}

// URL 返回绝对 URL 的副本。
func (r *Request) URL() *url.URL {
	u := *r.url
	if r.url.User != nil {
		user := *r.url.User
		u.User = &user
	}
	return &u
}

// Path 返回 URL 路径，空路径视为 "/"。
func (r *Request) Path() string {
	if r.url.Path == "" {
		return "/"
	}
	return r.url.Path
}

// Header 返回头部副本，修改不会影响描述符本身。
func (r *Request) Header() http.Header {
	return cloneHeader(r.header)
}

// HeaderValue 按 HTTP 语义把同名头部以 ", " 拼接后返回，名称大小写不敏感。
func (r *Request) HeaderValue(name string) string {
	return strings.Join(r.header.Values(name), ", ")
}

// Body 返回请求正文副本。
func (r *Request) Body() []byte {
	return cloneBytes(r.body)
}

// Identity 是缓存身份键：METHOD + 空格 + 含查询串的绝对 URL。
func (r *Request) Identity() string {
	return r.method + " " + r.url.String()
}

// HTTPRequest 将描述符还原为可直接交给 http.Client 的请求。
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	req.Header = cloneHeader(r.header)
	return req, nil
}

func (r *Request) String() string {
	return r.Identity()
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	out := make(http.Header, len(h))
	for key, values := range h {
		canonical := http.CanonicalHeaderKey(key)
		out[canonical] = append(out[canonical], values...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
