package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/any-hub/offline-shell/internal/exchange"
)

var (
	// ErrHandlerFault 表示处理器 panic 或共享状态异常，只让当前请求失败。
	ErrHandlerFault = errors.New("handler fault")
	// ErrSealed 表示首次分发后不再允许注册新路由。
	ErrSealed = errors.New("router sealed")
)

// Handler 是本地路由处理器。共享状态只能通过第二个参数访问。
type Handler func(c fiber.Ctx, state *State) error

// Route 描述一条已注册的路由，Pattern 保留注册时的写法。
type Route struct {
	Method  string
	Pattern string
}

// Router 是 (method, pattern) → handler 的路由表，底层复用 Fiber 的路由栈：
// 按注册顺序匹配，第一条命中的路由胜出；所有路由之后追加一个兜底中间件，
// 用来区分“没有路由命中”与“处理器自己返回 404”。
type Router struct {
	app    *fiber.App
	logger *logrus.Logger
	state  *State

	mu      sync.Mutex
	routes  []Route
	methods map[string]struct{}
	sealed  bool
	handler fasthttp.RequestHandler
}

const dispatchKey = "_offline_shell_dispatch"

// dispatchState 随每次分发放入 fasthttp 的 user value，由兜底中间件与错误处理器回写。
type dispatchState struct {
	noMatch bool
	fault   error
}

// New 构造路由器及其拥有的共享状态，进程启动时创建一次。
func New(logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Router{
		logger:  logger,
		state:   &State{},
		methods: make(map[string]struct{}),
	}
	r.app = fiber.New(fiber.Config{
		CaseSensitive: true,
		StrictRouting: true,
		ErrorHandler:  r.handleError,
	})
	return r
}

// State 返回路由器拥有的共享状态，供诊断读取。
func (r *Router) State() *State {
	return r.state
}

// Handle 注册一条路由。pattern 支持静态段与 {name} 形式的单段参数。
func (r *Router) Handle(method, pattern string, handler Handler) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return errors.New("method required")
	}
	if handler == nil {
		return errors.New("handler required")
	}
	path, err := fiberPattern(pattern)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: %s %s", ErrSealed, method, pattern)
	}

	r.app.Add([]string{method}, path, r.wrap(handler))
	r.routes = append(r.routes, Route{Method: method, Pattern: pattern})
	r.methods[method] = struct{}{}
	r.logger.WithFields(logrus.Fields{
		"action":  "route_register",
		"method":  method,
		"pattern": pattern,
	}).Debug("route registered")
	return nil
}

// Get/Post 是 Handle 的便捷写法。
func (r *Router) Get(pattern string, handler Handler) error {
	return r.Handle(http.MethodGet, pattern, handler)
}

func (r *Router) Post(pattern string, handler Handler) error {
	return r.Handle(http.MethodPost, pattern, handler)
}

// Routes 按注册顺序返回路由表副本。
func (r *Router) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.routes...)
}

// Dispatch 把请求交给第一条匹配的路由：
//   - 命中：返回 (resp, true, nil)，即便状态码是 404；
//   - 未命中：返回 (nil, false, nil)，调用方继续走缓存/网络；
//   - 处理器故障：返回 (nil, true, ErrHandlerFault)。
func (r *Router) Dispatch(ctx context.Context, req *exchange.Request) (*exchange.Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	handler := r.seal()
	// Fiber 对路由表之外的方法直接回 501，不经过兜底中间件。
	if !r.hasMethod(req.Method()) {
		return nil, false, nil
	}

	state := &dispatchState{}
	fctx := &fasthttp.RequestCtx{}
	fctx.Init(buildRequest(req), nil, nil)
	fctx.SetUserValue(dispatchKey, state)

	handler(fctx)

	if state.fault != nil {
		r.logger.WithFields(logrus.Fields{
			"action": "route_dispatch",
			"method": req.Method(),
			"url":    req.URL().String(),
		}).WithError(state.fault).Error("handler_fault")
		return nil, true, state.fault
	}
	if state.noMatch {
		return nil, false, nil
	}
	return snapshotResponse(&fctx.Response), true, nil
}

// seal 在首次分发时追加兜底中间件并冻结路由表。
func (r *Router) seal() fasthttp.RequestHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.app.Use(func(c fiber.Ctx) error {
			if state := dispatchFrom(c); state != nil {
				state.noMatch = true
			}
			return nil
		})
		r.handler = r.app.Handler()
		r.sealed = true
	}
	return r.handler
}

func (r *Router) hasMethod(method string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.methods[method]
	return ok
}

// wrap 把处理器 panic 转换为 ErrHandlerFault，不影响后续请求。
func (r *Router) wrap(handler Handler) fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%w: panic: %v", ErrHandlerFault, recovered)
			}
		}()
		return handler(c, r.state)
	}
}

// handleError 记录故障；其他错误按 Fiber 默认方式写成响应（视为处理器产出的响应）。
func (r *Router) handleError(c fiber.Ctx, err error) error {
	if errors.Is(err, ErrHandlerFault) {
		if state := dispatchFrom(c); state != nil {
			state.fault = err
			return nil
		}
	}
	return fiber.DefaultErrorHandler(c, err)
}

func dispatchFrom(c fiber.Ctx) *dispatchState {
	if value := c.RequestCtx().UserValue(dispatchKey); value != nil {
		if state, ok := value.(*dispatchState); ok {
			return state
		}
	}
	return nil
}

func buildRequest(req *exchange.Request) *fasthttp.Request {
	target := req.URL()
	fr := &fasthttp.Request{}
	fr.Header.SetMethod(req.Method())
	fr.SetRequestURI(target.RequestURI())
	fr.Header.SetHost(target.Host)
	for key, values := range req.Header() {
		for _, value := range values {
			fr.Header.Add(key, value)
		}
	}
	if body := req.Body(); len(body) > 0 {
		fr.SetBody(body)
	}
	return fr
}

func snapshotResponse(resp *fasthttp.Response) *exchange.Response {
	header := make(http.Header)
	resp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return exchange.NewResponse(resp.StatusCode(), header, resp.Body())
}
