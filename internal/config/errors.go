package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig 是所有字段级配置错误的公共哨兵，调用方可用 errors.Is 统一识别。
var ErrInvalidConfig = errors.New("invalid config")

// FieldError 记录出错字段的路径（如 Global.Origin）与原因，CLI 原样打印给运维。
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e FieldError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func (e FieldError) Unwrap() error {
	return e.Err
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

func wrapFieldError(field, reason string, err error) error {
	return FieldError{Field: field, Reason: reason, Err: err}
}
