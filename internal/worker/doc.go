// Package worker 暴露离线外壳的四个入口，HTTP 前端与 main 只通过它驱动核心。
package worker
