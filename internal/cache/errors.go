package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrIO 是所有底层存储失败的哨兵，配合 errors.Is 判断。
	ErrIO = errors.New("cache io failure")
	// ErrInvalidHandle 表示句柄为零值，或对应的缓存已被删除。
	ErrInvalidHandle = errors.New("invalid cache handle")
	// ErrInvalidName 表示缓存名称为空或包含路径成分。
	ErrInvalidName = errors.New("invalid cache name")
)

// IOError 记录失败的操作与缓存名称，便于日志区分 miss 与真实故障。
type IOError struct {
	Op    string
	Cache string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Cache, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrIO) 对所有 IOError 成立。
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func ioError(op, cache string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Cache: cache, Err: err}
}
