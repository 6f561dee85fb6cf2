package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是运行时配置的环境变量前缀，例如 OFFLINE_SHELL_ORIGIN。
const EnvPrefix = "OFFLINE_SHELL"

// globalKeys 列出所有可由配置文件或环境变量提供的键及其默认值（nil 表示无默认值）。
var globalKeys = []struct {
	key string
	env string
	def any
}{
	{"ListenPort", "LISTEN_PORT", 5000},
	{"LogLevel", "LOG_LEVEL", "info"},
	{"LogFilePath", "LOG_FILE_PATH", ""},
	{"LogMaxSize", "LOG_MAX_SIZE", 100},
	{"LogMaxBackups", "LOG_MAX_BACKUPS", 10},
	{"LogCompress", "LOG_COMPRESS", true},
	{"StoragePath", "STORAGE_PATH", "./storage"},
	{"CacheBackend", "CACHE_BACKEND", "fs"},
	{"Origin", "ORIGIN", nil},
	{"UpstreamTimeout", "UPSTREAM_TIMEOUT", "30s"},
}

// buildTimeKeys 只能在构建时确定，出现在配置文件中视为错误。
var buildTimeKeys = []string{"CacheVersion", "OfflinePage", "Manifest", "StaticManifest"}

// Load 读取 TOML 配置，叠加 OFFLINE_SHELL_* 环境变量后完成解码、标准化与校验。
// 优先级：环境变量 > 配置文件 > 默认值。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	normalize(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	for _, k := range globalKeys {
		if k.def != nil {
			v.SetDefault(k.key, k.def)
		}
		if err := v.BindEnv(k.key, EnvPrefix+"_"+k.env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	for _, key := range buildTimeKeys {
		if v.InConfig(key) {
			return nil, newFieldError("Global."+key, "构建时常量，不支持在配置文件中覆盖")
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

func normalize(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	g.CacheBackend = strings.ToLower(strings.TrimSpace(g.CacheBackend))
	if g.CacheBackend == "" {
		g.CacheBackend = "fs"
	}
	g.Origin = strings.TrimRight(strings.TrimSpace(g.Origin), "/")
	if g.UpstreamTimeout <= 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

// durationDecodeHook 把 TOML 数值（按秒）与字符串统一转成 Duration；字符串解析交给 UnmarshalText。
func durationDecodeHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(value)); err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return secondsDuration(float64(value)), nil
		case int64:
			return secondsDuration(float64(value)), nil
		case float64:
			return secondsDuration(value), nil
		case time.Duration:
			return Duration(value), nil
		case Duration:
			return value, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", value)
		}
	}
}
