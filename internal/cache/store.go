package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/any-hub/offline-shell/internal/exchange"
)

// Store 管理按版本命名的缓存集合，每个缓存把请求身份（方法 + 含查询串的 URL）
// 映射到一份响应快照。磁盘布局（fs 后端）遵循：
//
//	<StoragePath>/caches/<CacheName>/<sha256(identity)>.entry
//
// 实现必须并发安全：不同 key 的读写互不阻塞，同一 key 的写入串行化。
type Store interface {
	// Open 打开指定名称的缓存，不存在时创建；重复调用是幂等的。
	Open(ctx context.Context, name string) (Handle, error)

	// Get 精确匹配请求身份。未命中返回 (nil, false, nil)，不是错误；
	// 底层 I/O 失败返回 *IOError，调用方不可与未命中混为一谈。
	Get(ctx context.Context, handle Handle, req *exchange.Request) (*exchange.Response, bool, error)

	// Put 写入或替换条目。写入的是响应的深拷贝，单条目粒度原子可见。
	Put(ctx context.Context, handle Handle, req *exchange.Request, resp *exchange.Response) error

	// Names 返回当前持久化的全部缓存名称（按字典序）。
	Names(ctx context.Context) ([]string, error)

	// Delete 删除整个缓存，返回该缓存此前是否存在。
	Delete(ctx context.Context, name string) (bool, error)

	// Close 释放后端资源。
	Close() error
}

// Handle 是 Open 返回的缓存句柄，零值无效。
type Handle struct {
	name string
}

// Name 返回句柄对应的缓存名称。
func (h Handle) Name() string {
	return h.name
}

// Valid 表示句柄是否由 Open 产生。
func (h Handle) Valid() bool {
	return h.name != ""
}

const (
	// BackendFS 将每个条目写成独立文件。
	BackendFS = "fs"
	// BackendSQLite 将全部缓存写入同一个 SQLite 数据库。
	BackendSQLite = "sqlite"

	sqliteFileName = "offline-shell.db"
)

// New 按后端名称构建 Store，basePath 为 StoragePath。
func New(backend, basePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFS:
		return NewStore(basePath)
	case BackendSQLite:
		if basePath == "" {
			return nil, errors.New("storage path required")
		}
		return NewSQLiteStore(filepath.Join(basePath, sqliteFileName))
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}

// validateName 拒绝空名称以及可能逃逸存储目录的名称。
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
