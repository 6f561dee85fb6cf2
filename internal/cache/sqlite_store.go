package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/any-hub/offline-shell/internal/exchange"
)

// sqliteStore 把所有缓存放进同一个数据库：caches 表记录命名空间，
// entries 表以 (cache, identity) 为主键，INSERT OR REPLACE 保证单条目原子替换。
// 写操作通过 writeMu 串行，读操作走连接池并发执行。
type sqliteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteStore 打开（或创建）filename 指向的数据库并初始化表结构。
func NewSQLiteStore(filename string) (Store, error) {
	if filename == "" {
		return nil, errors.New("sqlite filename required")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS caches (
			name TEXT PRIMARY KEY,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			cache TEXT NOT NULL,
			identity TEXT NOT NULL,
			status INTEGER NOT NULL,
			header BLOB,
			body BLOB,
			stored_at INTEGER,
			PRIMARY KEY (cache, identity)
		)`,
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Open(ctx context.Context, name string) (Handle, error) {
	if err := validateName(name); err != nil {
		return Handle{}, err
	}

	exists, err := s.exists(ctx, name)
	if err != nil {
		return Handle{}, err
	}
	if exists {
		return Handle{name: name}, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO caches (name, created_at) VALUES (?, ?)",
		name, time.Now().Unix())
	if err != nil {
		return Handle{}, ioError("open", name, err)
	}
	return Handle{name: name}, nil
}

func (s *sqliteStore) Get(ctx context.Context, handle Handle, req *exchange.Request) (*exchange.Response, bool, error) {
	if !handle.Valid() {
		return nil, false, ErrInvalidHandle
	}

	var (
		status int
		header []byte
		body   []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT status, header, body FROM entries WHERE cache = ? AND identity = ?",
		handle.name, req.Identity()).Scan(&status, &header, &body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists, existsErr := s.exists(ctx, handle.name)
		if existsErr != nil {
			return nil, false, existsErr
		}
		if !exists {
			return nil, false, fmt.Errorf("%w: %s", ErrInvalidHandle, handle.name)
		}
		return nil, false, nil
	case err != nil:
		return nil, false, ioError("get", handle.name, err)
	}

	entry := storedEntry{Status: status, Body: body}
	if len(header) > 0 {
		if err := json.Unmarshal(header, &entry.Header); err != nil {
			return nil, false, ioError("get", handle.name, err)
		}
	}
	return entry.response(), true, nil
}

func (s *sqliteStore) Put(ctx context.Context, handle Handle, req *exchange.Request, resp *exchange.Response) error {
	if !handle.Valid() {
		return ErrInvalidHandle
	}
	if resp == nil {
		return errors.New("response required")
	}

	entry := newStoredEntry(req, resp)
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return ioError("put", handle.name, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.exists(ctx, handle.name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, handle.name)
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO entries
		(cache, identity, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?, ?)`,
		handle.name, entry.Identity, entry.Status, header, entry.Body, entry.StoredAt.Unix())
	return ioError("put", handle.name, err)
}

func (s *sqliteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM caches ORDER BY name ASC")
	if err != nil {
		return nil, ioError("list", "", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, ioError("list", "", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("list", "", err)
	}
	return names, nil
}

func (s *sqliteStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, ioError("delete", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE cache = ?", name); err != nil {
		return false, ioError("delete", name, err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM caches WHERE name = ?", name)
	if err != nil {
		return false, ioError("delete", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, ioError("delete", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, ioError("delete", name, err)
	}
	return affected > 0, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM caches WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioError("stat", name, err)
	}
	return true, nil
}
