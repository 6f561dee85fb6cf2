// Package intercept 实现每个被拦截请求的决策流程。
//
// 顺序固定为：本地路由 → 当前版本缓存 → 网络 → 离线页。本地路由命中后不再
// 查询缓存或网络；缓存故障按未命中处理；网络响应不会写回缓存。
package intercept
