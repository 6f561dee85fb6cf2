package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var supportedCacheBackends = map[string]struct{}{
	"fs":     {},
	"sqlite": {},
}

const supportedCacheBackendList = "fs|sqlite"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := &c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	backend := strings.ToLower(strings.TrimSpace(g.CacheBackend))
	if _, ok := supportedCacheBackends[backend]; !ok {
		return newFieldError("Global.CacheBackend", "仅支持 "+supportedCacheBackendList)
	}
	g.CacheBackend = backend

	if err := validateOrigin(g.Origin); err != nil {
		return wrapFieldError("Global.Origin", "源站地址无效", err)
	}

	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少源站地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("源站缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("源站不支持路径前缀: %s", raw)
	}
	if parsed.RawQuery != "" {
		return fmt.Errorf("源站不允许包含查询串: %s", raw)
	}
	return nil
}
