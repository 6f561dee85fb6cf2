package exchange

import (
	"bytes"
	"io"
	"net/http"
)

// Response 是一次完整的响应快照：状态码、头部与已读完的正文。
// 调用方拿到的要么是完整描述符，要么是错误，不存在半成品。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse 构造响应描述符，header/body 会被深拷贝。
func NewResponse(status int, header http.Header, body []byte) *Response {
	return &Response{
		Status: status,
		Header: cloneHeader(header),
		Body:   cloneBytes(body),
	}
}

// ReadResponse 读完 resp.Body 并生成快照，读取失败时不返回半成品。
func ReadResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: resp.StatusCode,
		Header: cloneHeader(resp.Header),
		Body:   body,
	}, nil
}

// Clone 深拷贝响应，缓存写入与读出时各复制一次，避免正文被重复消费。
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return NewResponse(r.Status, r.Header, r.Body)
}

// BodyReader 返回正文的只读视图。
func (r *Response) BodyReader() io.Reader {
	return bytes.NewReader(r.Body)
}

// OK 表示 2xx 状态。
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}
