package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Duration 是配置里的时长字段：接受 Go Duration 字符串（"30s"）或秒数（10、1.5）。
type Duration time.Duration

// UnmarshalText 同时被 TOML 字符串与环境变量覆盖使用。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = secondsDuration(seconds)
		return nil
	}
	return fmt.Errorf("无法解析 Duration 字段: %s", raw)
}

// DurationValue 返回真实的 time.Duration。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

func secondsDuration(seconds float64) Duration {
	return Duration(time.Duration(seconds * float64(time.Second)))
}

// GlobalConfig 描述运行时行为：监听端口、日志、缓存后端与真实网络的源站。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	CacheBackend    string   `mapstructure:"CacheBackend"`
	Origin          string   `mapstructure:"Origin"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// OriginURL 返回解析后的源站地址（假定 Validate 已经通过）。
func (c *Config) OriginURL() *url.URL {
	parsed, err := url.Parse(c.Global.Origin)
	if err != nil {
		return &url.URL{}
	}
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed
}
