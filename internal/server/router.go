package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/exchange"
	"github.com/any-hub/offline-shell/internal/intercept"
	"github.com/any-hub/offline-shell/internal/lifecycle"
	"github.com/any-hub/offline-shell/internal/logging"
	"github.com/any-hub/offline-shell/internal/network"
	"github.com/any-hub/offline-shell/internal/router"
)

// Worker describes the offline shell entry points the HTTP front drives.
// It allows injecting fake workers during tests.
type Worker interface {
	Install(ctx context.Context) (lifecycle.InstallReport, error)
	Activate(ctx context.Context) (lifecycle.ActivateReport, error)
	Fetch(ctx context.Context, req *exchange.Request) (*exchange.Response, intercept.Outcome, error)
	Message(ctx context.Context, payload []byte)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Worker     Worker
	Origin     *url.URL
	ListenPort int
}

const (
	contextKeyRequestID = "_offline_shell_request_id"

	// HeaderSource 标记响应来自本地路由、缓存、网络还是离线页。
	HeaderSource = "X-Offline-Shell-Source"
)

// NewApp builds a Fiber application that hands every non-diagnostics request
// to the worker and writes the resulting descriptor back.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Worker == nil {
		return nil, errors.New("worker is required")
	}
	if opts.Origin == nil || opts.Origin.Scheme == "" || opts.Origin.Host == "" {
		return nil, errors.New("origin is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return handleIntercept(c, opts)
	})

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// handleIntercept 把 Fiber 请求转换为 exchange.Request，交给 Worker.Fetch 并回写结果。
func handleIntercept(c fiber.Ctx, opts AppOptions) error {
	requestID := RequestID(c)
	req, err := toExchangeRequest(c, opts.Origin)
	if err != nil {
		opts.Logger.WithFields(logging.RequestFields(requestID, c.Method(), c.OriginalURL())).
			WithError(err).Warn("request_malformed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed_request",
		})
	}

	resp, outcome, err := opts.Worker.Fetch(RequestContext(c), req)
	if err != nil {
		return renderFetchFailure(c, err)
	}
	return writeResponse(c, resp, outcome)
}

func renderFetchFailure(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, router.ErrHandlerFault):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "handler_fault",
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "request_cancelled",
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "offline_unavailable",
		})
	}
}

// toExchangeRequest 以配置的源站 scheme/host 加上原始 request URI 组装绝对 URL。
func toExchangeRequest(c fiber.Ctx, origin *url.URL) (*exchange.Request, error) {
	target := origin.Scheme + "://" + origin.Host + string(c.Request().RequestURI())

	header := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if strings.EqualFold(name, fiber.HeaderHost) || network.IsHopByHopHeader(name) {
			return
		}
		header.Add(name, string(value))
	})

	// 原样转发请求体；Content-Encoding 头随之保留，不能用已解码的 c.Body()。
	return exchange.NewRequest(c.Method(), target, header, c.Request().Body())
}

func writeResponse(c fiber.Ctx, resp *exchange.Response, outcome intercept.Outcome) error {
	for key, values := range resp.Header {
		if network.IsHopByHopHeader(key) ||
			strings.EqualFold(key, fiber.HeaderContentLength) ||
			strings.EqualFold(key, "X-Request-ID") {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
	c.Set(HeaderSource, string(outcome))
	c.Status(resp.Status)
	return c.Send(resp.Body)
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// RequestContext 返回携带请求 ID 的 context，供 worker 日志关联。
func RequestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return intercept.WithRequestID(ctx, RequestID(c))
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
