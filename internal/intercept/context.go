package intercept

import "context"

type requestIDKey struct{}

// WithRequestID 把前端分配的请求 ID 放入 ctx，供拦截日志关联。
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom 读取 ctx 中的请求 ID，不存在时返回空串。
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
