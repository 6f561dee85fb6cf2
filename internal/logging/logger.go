package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/any-hub/offline-shell/internal/config"
)

// ServiceName 写入每条日志的 service 字段。
const ServiceName = "offline-shell"

// InitLogger 按全局配置创建 JSON 日志器，并同步到 logrus 全局实例。
// 每条日志都带 service 与当前缓存版本（cache），升级期间可以区分新旧版本的输出。
// 日志文件不可用时降级到 stdout，只记录一条 logger_fallback 警告，不返回错误。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.AddHook(stampHook{fields: logrus.Fields{
		"service": ServiceName,
		"cache":   config.CacheName(),
	}})

	out, outErr := openOutput(cfg)
	logger.SetOutput(out)

	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(out)
	logrus.SetLevel(level)

	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(outErr.Error())
	}
	return logger, nil
}

// Discard 返回丢弃全部输出的 logger。
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// openOutput 返回日志 Writer；LogFilePath 为空时直接用 stdout。
// 目录创建失败或文件无法追加写入时返回 stdout 与原因。
func openOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout, fmt.Errorf("日志文件不可写: %w", err)
	}
	_ = file.Close()

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

// stampHook 为缺失的字段补上固定值；调用方显式设置的同名字段优先。
type stampHook struct {
	fields logrus.Fields
}

func (h stampHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h stampHook) Fire(entry *logrus.Entry) error {
	for key, value := range h.fields {
		if _, exists := entry.Data[key]; !exists {
			entry.Data[key] = value
		}
	}
	return nil
}
