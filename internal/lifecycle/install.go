package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/cache"
	"github.com/any-hub/offline-shell/internal/logging"
	"github.com/any-hub/offline-shell/internal/network"
)

// SkippedAsset 记录 install 阶段未能写入的资源及原因。
type SkippedAsset struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// InstallReport 汇总一次 install 的结果。
type InstallReport struct {
	Cache     string         `json:"cache"`
	Stored    []string       `json:"stored"`
	Skipped   []SkippedAsset `json:"skipped"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// Installer 把静态清单预缓存到当前版本缓存中。
type Installer struct {
	store   cache.Store
	fetcher network.Fetcher
	plan    Plan
	logger  *logrus.Logger
}

// NewInstaller 构造 Installer，logger 为空时使用 logrus 默认实例。
func NewInstaller(store cache.Store, fetcher network.Fetcher, plan Plan, logger *logrus.Logger) *Installer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Installer{store: store, fetcher: fetcher, plan: plan, logger: logger}
}

// Install 打开当前版本缓存，逐个 GET 清单资源并写入。
// 单个资源的抓取失败、非 2xx 响应或写入失败只会被记录并跳过；
// 只有缓存本身无法打开或 ctx 被取消时才返回错误。
func (i *Installer) Install(ctx context.Context) (InstallReport, error) {
	started := time.Now()
	report := InstallReport{
		Cache:   i.plan.CacheName,
		Stored:  []string{},
		Skipped: []SkippedAsset{},
	}
	if err := i.plan.validate(); err != nil {
		return report, fmt.Errorf("install: %w", err)
	}

	fields := logging.LifecycleFields("install", i.plan.CacheName)
	handle, err := i.store.Open(ctx, i.plan.CacheName)
	if err != nil {
		i.logger.WithFields(fields).WithError(err).Error("install_open_failed")
		return report, fmt.Errorf("install: open cache %s: %w", i.plan.CacheName, err)
	}

	for _, path := range i.plan.Manifest {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if reason := i.installAsset(ctx, handle, path); reason != "" {
			report.Skipped = append(report.Skipped, SkippedAsset{Path: path, Reason: reason})
			i.logger.WithFields(fields).WithFields(logrus.Fields{
				"path":   path,
				"reason": reason,
			}).Warn("install_asset_skipped")
			continue
		}
		report.Stored = append(report.Stored, path)
	}

	report.ElapsedMS = time.Since(started).Milliseconds()
	i.logger.WithFields(fields).WithFields(logrus.Fields{
		"stored":     len(report.Stored),
		"skipped":    len(report.Skipped),
		"elapsed_ms": report.ElapsedMS,
	}).Info("install_completed")
	return report, nil
}

// installAsset 返回跳过原因；空字符串表示写入成功。
func (i *Installer) installAsset(ctx context.Context, handle cache.Handle, path string) string {
	req, err := i.plan.AssetRequest(path)
	if err != nil {
		return err.Error()
	}
	resp, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return err.Error()
	}
	if !resp.OK() {
		return "status " + strconv.Itoa(resp.Status)
	}
	if err := i.store.Put(ctx, handle, req, resp); err != nil {
		return err.Error()
	}
	return ""
}
