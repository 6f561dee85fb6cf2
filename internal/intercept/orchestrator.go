package intercept

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/cache"
	"github.com/any-hub/offline-shell/internal/exchange"
	"github.com/any-hub/offline-shell/internal/lifecycle"
	"github.com/any-hub/offline-shell/internal/logging"
	"github.com/any-hub/offline-shell/internal/network"
)

// ErrOffline 表示网络失败且缓存中没有离线页，错误链中同时保留原始网络错误。
var ErrOffline = errors.New("offline fallback unavailable")

// Outcome 标记最终响应来自哪一步。
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeLocal   Outcome = "local"
	OutcomeCache   Outcome = "cache"
	OutcomeNetwork Outcome = "network"
	OutcomeOffline Outcome = "offline"
)

// Dispatcher 是本地路由器的最小接口。
type Dispatcher interface {
	Dispatch(ctx context.Context, req *exchange.Request) (*exchange.Response, bool, error)
}

// Orchestrator 对每个被拦截的请求依次执行：本地路由 → 缓存 → 网络 → 离线页。
// 普通流量只读缓存，不回写网络响应；缓存只在 install 阶段写入。
type Orchestrator struct {
	router  Dispatcher
	store   cache.Store
	fetcher network.Fetcher
	plan    lifecycle.Plan
	logger  *logrus.Logger
}

// New 构造 Orchestrator，协作者在进程生命周期内共享。
func New(router Dispatcher, store cache.Store, fetcher network.Fetcher, plan lifecycle.Plan, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		router:  router,
		store:   store,
		fetcher: fetcher,
		plan:    plan,
		logger:  logger,
	}
}

// Intercept 为单个请求产出响应。本地路由一旦命中（任意状态码）即返回，
// 后续步骤不再执行；处理器故障直接失败，不会落到网络。
func (o *Orchestrator) Intercept(ctx context.Context, req *exchange.Request) (*exchange.Response, Outcome, error) {
	started := time.Now()
	fields := logging.RequestFields(RequestIDFrom(ctx), req.Method(), req.URL().String())

	resp, outcome, err := o.intercept(ctx, req, fields)

	entry := o.logger.WithFields(fields).WithFields(logrus.Fields{
		"source":     string(outcome),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("intercept_failed")
		return nil, outcome, err
	}
	entry.WithField("status", resp.Status).Info("intercept_completed")
	return resp, outcome, nil
}

func (o *Orchestrator) intercept(ctx context.Context, req *exchange.Request, fields logrus.Fields) (*exchange.Response, Outcome, error) {
	resp, matched, err := o.router.Dispatch(ctx, req)
	if err != nil {
		return nil, OutcomeLocal, fmt.Errorf("local dispatch: %w", err)
	}
	if matched {
		return resp, OutcomeLocal, nil
	}
	o.logger.WithFields(fields).Debug("router_no_match")

	if cached, ok := o.lookup(ctx, req, fields); ok {
		return cached, OutcomeCache, nil
	}

	resp, netErr := o.fetcher.Fetch(ctx, req)
	if netErr == nil {
		return resp, OutcomeNetwork, nil
	}
	o.logger.WithFields(fields).WithError(netErr).Warn("network_fetch_failed")

	offlineReq, err := o.plan.OfflineRequest()
	if err != nil {
		return nil, OutcomeNone, fmt.Errorf("%w: %w", ErrOffline, netErr)
	}
	if page, ok := o.lookup(ctx, offlineReq, fields); ok {
		return page, OutcomeOffline, nil
	}
	return nil, OutcomeNone, fmt.Errorf("%w: %w", ErrOffline, netErr)
}

// lookup 在当前版本缓存中精确匹配；缓存故障记录日志后按未命中处理。
func (o *Orchestrator) lookup(ctx context.Context, req *exchange.Request, fields logrus.Fields) (*exchange.Response, bool) {
	handle, err := o.store.Open(ctx, o.plan.CacheName)
	if err != nil {
		o.logger.WithFields(fields).WithError(err).Warn("cache_open_failed")
		return nil, false
	}
	resp, ok, err := o.store.Get(ctx, handle, req)
	if err != nil {
		o.logger.WithFields(fields).WithField("identity", req.Identity()).WithError(err).Warn("cache_lookup_failed")
		return nil, false
	}
	return resp, ok
}
