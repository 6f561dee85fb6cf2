package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StoragePath = "./data"
Origin = "https://app.example.com"
UpstreamTimeout = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadRejectsBuildTimeKeys(t *testing.T) {
	cfg := `
StoragePath = "./data"
Origin = "https://app.example.com"
CacheVersion = "v9"
`
	path := writeTempConfig(t, cfg)
	_, err := Load(path)
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Global.CacheVersion" {
		t.Fatalf("配置文件覆盖构建时常量应报错，得到 %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("OFFLINE_SHELL_ORIGIN", "https://env.example.com/")
	t.Setenv("OFFLINE_SHELL_LISTEN_PORT", "6100")
	t.Setenv("OFFLINE_SHELL_UPSTREAM_TIMEOUT", "2.5")

	cfg, err := Load(testConfigPath(t, "missing.toml"))
	if err != nil {
		t.Fatalf("环境变量补齐 Origin 后应通过校验: %v", err)
	}
	if cfg.Global.Origin != "https://env.example.com" {
		t.Fatalf("Origin 应来自环境变量，得到 %s", cfg.Global.Origin)
	}
	if cfg.Global.ListenPort != 6100 {
		t.Fatalf("环境变量应覆盖配置文件中的端口，得到 %d", cfg.Global.ListenPort)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 2500*time.Millisecond {
		t.Fatalf("小数秒应被识别，得到 %s", cfg.Global.UpstreamTimeout.DurationValue())
	}
}

func TestValidationErrorsMatchSentinel(t *testing.T) {
	cfg := validConfig()
	cfg.Global.Origin = "ftp://app.example.com"
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("字段错误应匹配 ErrInvalidConfig，得到 %v", err)
	}
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Global.Origin" {
		t.Fatalf("应返回 Global.Origin 字段错误，得到 %v", err)
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	cases := map[string]time.Duration{
		"":     0,
		"45s":  45 * time.Second,
		"3":    3 * time.Second,
		"0.25": 250 * time.Millisecond,
	}
	for raw, want := range cases {
		var d Duration
		if err := d.UnmarshalText([]byte(raw)); err != nil {
			t.Fatalf("%q: %v", raw, err)
		}
		if d.DurationValue() != want {
			t.Fatalf("%q: expected %s, got %s", raw, want, d.DurationValue())
		}
	}
	var d Duration
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("expected error for non-duration text")
	}
}
