package lifecycle

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/any-hub/offline-shell/internal/config"
	"github.com/any-hub/offline-shell/internal/exchange"
)

// Plan 描述当前版本的缓存计划：缓存名称、预缓存清单以及解析清单路径用的源站。
type Plan struct {
	CacheName   string
	Manifest    []string
	OfflinePage string
	Origin      *url.URL
}

// DefaultPlan 使用构建期常量与配置中的源站地址。
func DefaultPlan(cfg *config.Config) Plan {
	return Plan{
		CacheName:   config.CacheName(),
		Manifest:    config.StaticManifest(),
		OfflinePage: config.OfflinePage,
		Origin:      cfg.OriginURL(),
	}
}

func (p Plan) validate() error {
	if p.CacheName == "" {
		return errors.New("cache name required")
	}
	if p.Origin == nil || p.Origin.Scheme == "" || p.Origin.Host == "" {
		return errors.New("origin required")
	}
	return nil
}

// AssetRequest 把清单路径解析为源站上的 GET 请求。
func (p Plan) AssetRequest(path string) (*exchange.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest path %q: %v", exchange.ErrMalformed, path, err)
	}
	if p.Origin == nil {
		return nil, fmt.Errorf("%w: origin required", exchange.ErrMalformed)
	}
	return exchange.NewRequest(http.MethodGet, p.Origin.ResolveReference(ref).String(), nil, nil)
}

// OfflineRequest 返回离线页对应的缓存查询请求。
func (p Plan) OfflineRequest() (*exchange.Request, error) {
	return p.AssetRequest(p.OfflinePage)
}
