package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/any-hub/offline-shell/internal/exchange"
)

const (
	entrySuffix = ".entry"
	// cachesDir 是 StoragePath 下专属的缓存根目录，Names/Delete 只作用于其中，
	// 与 StoragePath 里的日志等其他文件隔离。
	cachesDir = "caches"
)

// NewStore 在 basePath/caches 下构建磁盘缓存，整个进程复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	root := filepath.Join(abs, cachesDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: root,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一条目并发写入；namespace 读写锁保证
// Delete 整个缓存时不会与正在进行的读写交错。
type fileStore struct {
	basePath string

	namespace sync.RWMutex

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Open(ctx context.Context, name string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if err := validateName(name); err != nil {
		return Handle{}, err
	}

	// 已存在的缓存只需共享锁，不阻塞并发的 Get/Put。
	s.namespace.RLock()
	err := s.checkHandle(Handle{name: name})
	s.namespace.RUnlock()
	if err == nil {
		return Handle{name: name}, nil
	}

	s.namespace.Lock()
	defer s.namespace.Unlock()

	if err := os.MkdirAll(s.cacheDir(name), 0o755); err != nil {
		return Handle{}, ioError("open", name, err)
	}
	return Handle{name: name}, nil
}

func (s *fileStore) Get(ctx context.Context, handle Handle, req *exchange.Request) (*exchange.Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.namespace.RLock()
	defer s.namespace.RUnlock()

	if err := s.checkHandle(handle); err != nil {
		return nil, false, err
	}

	identity := req.Identity()
	data, err := os.ReadFile(s.entryPath(handle.name, identity))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, ioError("get", handle.name, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return nil, false, ioError("get", handle.name, err)
	}
	if entry.Identity != identity {
		return nil, false, nil
	}
	return entry.response(), true, nil
}

func (s *fileStore) Put(ctx context.Context, handle Handle, req *exchange.Request, resp *exchange.Response) error {
	if resp == nil {
		return errors.New("response required")
	}

	s.namespace.RLock()
	defer s.namespace.RUnlock()

	if err := s.checkHandle(handle); err != nil {
		return err
	}

	identity := req.Identity()
	unlock := s.lockEntry(handle.name, identity)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeEntry(newStoredEntry(req, resp))
	if err != nil {
		return ioError("put", handle.name, err)
	}

	filePath := s.entryPath(handle.name, identity)
	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return ioError("put", handle.name, err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return ioError("put", handle.name, err)
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return ioError("put", handle.name, err)
	}
	return nil
}

func (s *fileStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.namespace.RLock()
	defer s.namespace.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, ioError("list", "", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || validateName(entry.Name()) != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *fileStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateName(name); err != nil {
		return false, err
	}

	s.namespace.Lock()
	defer s.namespace.Unlock()

	dir := s.cacheDir(name)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("delete", name, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, ioError("delete", name, err)
	}
	return true, nil
}

func (s *fileStore) Close() error {
	return nil
}

// checkHandle 需在持有 namespace 锁时调用。
func (s *fileStore) checkHandle(handle Handle) error {
	if !handle.Valid() {
		return ErrInvalidHandle
	}
	info, err := os.Stat(s.cacheDir(handle.name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInvalidHandle, handle.name)
		}
		return ioError("stat", handle.name, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, handle.name)
	}
	return nil
}

func (s *fileStore) lockEntry(cacheName, identity string) func() {
	key := cacheName + "::" + identity
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) cacheDir(name string) string {
	return filepath.Join(s.basePath, name)
}

func (s *fileStore) entryPath(cacheName, identity string) string {
	return filepath.Join(s.cacheDir(cacheName), identityKey(identity)+entrySuffix)
}
