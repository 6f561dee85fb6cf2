// Package lifecycle 实现缓存生命周期的两个阶段：install 预缓存静态清单，
// activate 清理旧版本缓存。
package lifecycle
