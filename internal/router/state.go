package router

import (
	"fmt"
	"sync"
)

// State 是路由器拥有的共享计数器，初始值为 0，生命周期与进程相同。
// 所有修改都经由 Update 在互斥锁内完成；临界区只包含读-改-写本身。
type State struct {
	mu    sync.Mutex
	value int64
}

// Update 在锁内执行 fn 并提交其返回值。fn 返回错误或 panic 时不提交，
// 已提交的值保持不变，panic 会以 ErrHandlerFault 返回给当前请求。
func (s *State) Update(fn func(current int64) (int64, error)) (next int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if recovered := recover(); recovered != nil {
			next = s.value
			err = fmt.Errorf("%w: state update panic: %v", ErrHandlerFault, recovered)
		}
	}()

	updated, err := fn(s.value)
	if err != nil {
		return s.value, err
	}
	if updated < 0 {
		return s.value, fmt.Errorf("%w: counter would become negative (%d)", ErrHandlerFault, updated)
	}
	s.value = updated
	return updated, nil
}

// Increment 把计数器加一并返回新值。
func (s *State) Increment() (int64, error) {
	return s.Update(func(current int64) (int64, error) {
		return current + 1, nil
	})
}

// Value 返回当前已提交的值。
func (s *State) Value() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
