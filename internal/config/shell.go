package config

// 以下常量在构建时固定，不从配置文件读取。
// CacheVersion 与 version.Version 一样可通过 -ldflags 注入；
// 资源清单或缓存格式变化时递增它，旧版本缓存会在 activate 阶段被清理。
var CacheVersion = "v1"

const (
	cacheNamePrefix = "offline-shell-"

	// OfflinePage 是网络不可达时兜底返回的预缓存页面路径。
	OfflinePage = "/offline.html"
)

var staticManifest = []string{
	"/",
	"/index.html",
	"/offline.html",
	"/manifest.webmanifest",
}

// CacheName 返回当前版本的缓存名称。
func CacheName() string {
	return cacheNamePrefix + CacheVersion
}

// StaticManifest 返回 install 阶段需要预缓存的资源路径（有序副本）。
func StaticManifest() []string {
	return append([]string(nil), staticManifest...)
}
