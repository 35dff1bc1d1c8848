package service

import (
	"sync"
	"time"
)

// sessionLock 包装互斥锁和最后活跃时间，用于定期清理
type sessionLock struct {
	sync.Mutex
	lastSeen time.Time
}

// sessionLocks 按会话ID串行化交互处理
// 同一会话的并发调用必须排队，不同会话互不影响；跨进程的保护由存储层CAS兜底
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func newSessionLocks() *sessionLocks {
	s := &sessionLocks{locks: make(map[string]*sessionLock)}
	go s.janitor()
	return s
}

func (s *sessionLocks) acquire(sessionID string) *sessionLock {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.lastSeen = time.Now()
	s.mu.Unlock()

	l.Lock()
	return l
}

func (s *sessionLocks) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		for id, l := range s.locks {
			if time.Since(l.lastSeen) > 10*time.Minute {
				delete(s.locks, id)
			}
		}
		s.mu.Unlock()
	}
}
