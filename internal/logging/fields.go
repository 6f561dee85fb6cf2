package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供被拦截请求的标识字段，供 intercept/server 日志复用。
func RequestFields(requestID, method, url string) logrus.Fields {
	fields := logrus.Fields{
		"action": "intercept",
		"method": method,
		"url":    url,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// LifecycleFields 提供 install/activate 日志的公共字段。
func LifecycleFields(action, cacheName string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"cache":  cacheName,
	}
}
