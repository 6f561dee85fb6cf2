package version

import (
	"fmt"
	"runtime/debug"

	"github.com/any-hub/offline-shell/internal/config"
)

// Version/Commit 可在构建时通过 -ldflags 注入。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 返回 "offline-shell <版本> (<提交>) cache=<缓存名>"。
// 未注入 Commit 时尝试读取 go build 记录的 vcs.revision。
func Full() string {
	return fmt.Sprintf("offline-shell %s (%s) cache=%s", Version, commit(), config.CacheName())
}

func commit() string {
	if Commit != "dev" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return Commit
}
