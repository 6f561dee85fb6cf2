package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/cache"
	"github.com/any-hub/offline-shell/internal/config"
	"github.com/any-hub/offline-shell/internal/intercept"
	"github.com/any-hub/offline-shell/internal/lifecycle"
	"github.com/any-hub/offline-shell/internal/logging"
	"github.com/any-hub/offline-shell/internal/network"
	"github.com/any-hub/offline-shell/internal/pages"
	"github.com/any-hub/offline-shell/internal/router"
	"github.com/any-hub/offline-shell/internal/server"
	"github.com/any-hub/offline-shell/internal/server/routes"
	"github.com/any-hub/offline-shell/internal/version"
	"github.com/any-hub/offline-shell/internal/worker"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.Global.Origin
		fields["cache_backend"] = cfg.Global.CacheBackend
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	sh, err := newShell(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化离线外壳失败: %v\n", err)
		return 1
	}
	defer sh.close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["origin"] = cfg.Global.Origin
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_backend"] = cfg.Global.CacheBackend
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	// 启动遵循 “install → activate → 对外服务” 顺序：先预缓存当前版本，
	// 再清理旧版本，最后开始拦截请求。
	ctx := context.Background()
	if _, err := sh.worker.Install(ctx); err != nil {
		fmt.Fprintf(stdErr, "预缓存失败: %v\n", err)
		return 1
	}
	if _, err := sh.worker.Activate(ctx); err != nil {
		logger.WithFields(logging.LifecycleFields("activate", config.CacheName())).
			WithError(err).Warn("旧缓存清理未完成，继续启动")
	}

	if err := startHTTPServer(cfg, sh.app, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// shell 持有进程级共享实例：缓存、路由器、worker 与 Fiber 应用。
type shell struct {
	store  cache.Store
	router *router.Router
	worker *worker.Worker
	app    *fiber.App
}

// newShell 按 “缓存 → 上游 client → 本地路由 → 编排器 → worker → Fiber” 顺序装配，
// 所有请求共享同一份缓存与路由器实例。
func newShell(cfg *config.Config, logger *logrus.Logger) (*shell, error) {
	store, err := cache.New(cfg.Global.CacheBackend, cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	fetcher := network.NewFetcher(network.NewUpstreamClient(cfg))
	plan := lifecycle.DefaultPlan(cfg)

	localRouter := router.New(logger)
	if err := pages.Register(localRouter, logger); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("注册本地页面失败: %w", err)
	}

	w, err := worker.New(worker.Options{
		Installer:    lifecycle.NewInstaller(store, fetcher, plan, logger),
		Activator:    lifecycle.NewActivator(store, plan, logger),
		Orchestrator: intercept.New(localRouter, store, fetcher, plan, logger),
		Logger:       logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Worker:     w,
		Origin:     cfg.OriginURL(),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	routes.RegisterDiagnostics(app, routes.DiagnosticsOptions{
		Logger:    logger,
		Worker:    w,
		Caches:    store,
		Routes:    localRouter,
		CacheName: plan.CacheName,
	})

	return &shell{store: store, router: localRouter, worker: w, app: app}, nil
}

func (s *shell) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("offline-shell", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 OFFLINE_SHELL_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("OFFLINE_SHELL_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, app *fiber.App, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
		"origin": cfg.Global.Origin,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
