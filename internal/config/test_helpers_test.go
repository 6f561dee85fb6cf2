package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "offline-shell.toml")
	if err := os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// validConfig 返回一份可通过 Validate 的最小配置，供各用例在此基础上修改单个字段。
func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			StoragePath:     "./data",
			CacheBackend:    "fs",
			Origin:          "https://app.example.com",
			UpstreamTimeout: Duration(time.Second),
		},
	}
}
