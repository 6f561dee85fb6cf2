package lifecycle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/cache"
	"github.com/any-hub/offline-shell/internal/logging"
)

// ActivateReport 汇总一次 activate 的结果。
type ActivateReport struct {
	Current string   `json:"current"`
	Deleted []string `json:"deleted"`
}

// Activator 删除所有非当前版本的缓存。
type Activator struct {
	store     cache.Store
	cacheName string
	logger    *logrus.Logger
}

// NewActivator 构造 Activator。
func NewActivator(store cache.Store, plan Plan, logger *logrus.Logger) *Activator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Activator{store: store, cacheName: plan.CacheName, logger: logger}
}

// Activate 列出全部缓存并删除名称不等于当前版本的那些。重复调用是幂等的；
// 任一删除失败即返回错误，表示激活未完成。
func (a *Activator) Activate(ctx context.Context) (ActivateReport, error) {
	report := ActivateReport{Current: a.cacheName, Deleted: []string{}}
	fields := logging.LifecycleFields("activate", a.cacheName)

	names, err := a.store.Names(ctx)
	if err != nil {
		a.logger.WithFields(fields).WithError(err).Error("activate_list_failed")
		return report, fmt.Errorf("activate: list caches: %w", err)
	}

	for _, name := range names {
		if name == a.cacheName {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		existed, err := a.store.Delete(ctx, name)
		if err != nil {
			a.logger.WithFields(fields).WithField("stale", name).WithError(err).Error("activate_delete_failed")
			return report, fmt.Errorf("activate: delete cache %s: %w", name, err)
		}
		if existed {
			report.Deleted = append(report.Deleted, name)
			a.logger.WithFields(fields).WithField("stale", name).Info("activate_cache_deleted")
		}
	}

	a.logger.WithFields(fields).WithField("deleted", len(report.Deleted)).Info("activate_completed")
	return report, nil
}
