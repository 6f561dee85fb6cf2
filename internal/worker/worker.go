package worker

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/exchange"
	"github.com/any-hub/offline-shell/internal/intercept"
	"github.com/any-hub/offline-shell/internal/lifecycle"
)

const messagePreviewLimit = 256

// Worker 汇集四个入口：install、activate、fetch、message。
// 它们共享同一套缓存、路由与编排器，由外部驱动（main 或诊断接口）调用。
type Worker struct {
	installer    *lifecycle.Installer
	activator    *lifecycle.Activator
	orchestrator *intercept.Orchestrator
	logger       *logrus.Logger
}

// Options 列出构造 Worker 所需的协作者。
type Options struct {
	Installer    *lifecycle.Installer
	Activator    *lifecycle.Activator
	Orchestrator *intercept.Orchestrator
	Logger       *logrus.Logger
}

// New 校验协作者并构造 Worker。
func New(opts Options) (*Worker, error) {
	if opts.Installer == nil || opts.Activator == nil || opts.Orchestrator == nil {
		return nil, errors.New("worker: installer, activator and orchestrator are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{
		installer:    opts.Installer,
		activator:    opts.Activator,
		orchestrator: opts.Orchestrator,
		logger:       logger,
	}, nil
}

// Install 预缓存静态清单。
func (w *Worker) Install(ctx context.Context) (lifecycle.InstallReport, error) {
	return w.installer.Install(ctx)
}

// Activate 清理旧版本缓存。
func (w *Worker) Activate(ctx context.Context) (lifecycle.ActivateReport, error) {
	return w.activator.Activate(ctx)
}

// Fetch 处理一个被拦截的请求。
func (w *Worker) Fetch(ctx context.Context, req *exchange.Request) (*exchange.Response, intercept.Outcome, error) {
	return w.orchestrator.Intercept(ctx, req)
}

// Message 记录来自页面的消息，只做日志，不影响缓存或路由。
func (w *Worker) Message(ctx context.Context, payload []byte) {
	w.logger.WithFields(logrus.Fields{
		"action":     "message",
		"request_id": intercept.RequestIDFrom(ctx),
		"size":       len(payload),
		"preview":    preview(payload),
	}).Info("message_received")
}

// preview 截取前若干字节作为日志预览，不会截断多字节字符。
func preview(payload []byte) string {
	if !utf8.Valid(payload) {
		return "<binary>"
	}
	if len(payload) <= messagePreviewLimit {
		return string(payload)
	}
	cut := messagePreviewLimit
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	return string(payload[:cut]) + "…"
}
