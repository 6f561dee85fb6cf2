package routes

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/router"
	"github.com/any-hub/offline-shell/internal/server"
)

// CacheAdmin 是诊断接口需要的缓存操作子集。
type CacheAdmin interface {
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// RouteTable 暴露本地路由表与共享计数器。
type RouteTable interface {
	Routes() []router.Route
	State() *router.State
}

// DiagnosticsOptions 汇总 /-/ 诊断接口的依赖。
type DiagnosticsOptions struct {
	Logger    *logrus.Logger
	Worker    server.Worker
	Caches    CacheAdmin
	Routes    RouteTable
	CacheName string
}

// RegisterDiagnostics 暴露 /-/ 下的诊断与运维接口：缓存列表与注销、消息投递、
// 生命周期重放以及本地路由表。
func RegisterDiagnostics(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil || opts.Worker == nil || opts.Caches == nil {
		return
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/caches", func(c fiber.Ctx) error {
		names, err := opts.Caches.Names(server.RequestContext(c))
		if err != nil {
			logger.WithField("action", "diagnostics").WithError(err).Error("cache_list_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_list_failed"})
		}
		sort.Strings(names)
		return c.JSON(fiber.Map{
			"current": opts.CacheName,
			"caches":  names,
		})
	})

	app.Delete("/-/caches", func(c fiber.Ctx) error {
		ctx := server.RequestContext(c)
		names, err := opts.Caches.Names(ctx)
		if err != nil {
			logger.WithField("action", "diagnostics").WithError(err).Error("cache_list_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_list_failed"})
		}
		deleted := make([]string, 0, len(names))
		for _, name := range names {
			existed, err := opts.Caches.Delete(ctx, name)
			if err != nil {
				logger.WithFields(logrus.Fields{"action": "diagnostics", "cache": name}).
					WithError(err).Error("cache_delete_failed")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   "cache_delete_failed",
					"deleted": deleted,
				})
			}
			if existed {
				deleted = append(deleted, name)
			}
		}
		logger.WithFields(logrus.Fields{"action": "diagnostics", "deleted": len(deleted)}).Info("caches_unregistered")
		return c.JSON(fiber.Map{"deleted": deleted})
	})

	app.Post("/-/message", func(c fiber.Ctx) error {
		opts.Worker.Message(server.RequestContext(c), c.Body())
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	})

	app.Post("/-/lifecycle/install", func(c fiber.Ctx) error {
		report, err := opts.Worker.Install(server.RequestContext(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "install_failed",
				"report": report,
			})
		}
		return c.JSON(report)
	})

	app.Post("/-/lifecycle/activate", func(c fiber.Ctx) error {
		report, err := opts.Worker.Activate(server.RequestContext(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "activate_failed",
				"report": report,
			})
		}
		return c.JSON(report)
	})

	if opts.Routes != nil {
		app.Get("/-/routes", func(c fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"routes":  encodeRoutes(opts.Routes.Routes()),
				"counter": opts.Routes.State().Value(),
			})
		})
	}
}

type routePayload struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

func encodeRoutes(routes []router.Route) []routePayload {
	result := make([]routePayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, routePayload{Method: route.Method, Pattern: route.Pattern})
	}
	return result
}
