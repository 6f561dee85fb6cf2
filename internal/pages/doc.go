// Package pages 提供注册在本地路由器上的内置页面：表单、问候页与点击计数。
// 模板通过 embed 打包进二进制，渲染失败视为处理器故障。
package pages
