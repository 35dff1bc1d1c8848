package service

import (
	"context"
	"sync"

	"kbot_backend/internal/model"
	"kbot_backend/internal/util"
)

// SessionStore 会话持久化端口
// CommitInteraction 必须以存储中的 last_sequence 作为 CAS 条件，
// 把会话变更和交互流水放进同一个原子提交
type SessionStore interface {
	Create(ctx context.Context, sess *model.TeachingSession) error
	FindByID(ctx context.Context, id string) (*model.TeachingSession, error)
	FindActive(ctx context.Context, userID, kbID string) (*model.TeachingSession, error)
	CommitInteraction(ctx context.Context, sess *model.TeachingSession, expectedLastSeq int64, rec *model.TeachingInteraction) error
	SaveState(ctx context.Context, sess *model.TeachingSession) error
}

// MemorySessionStore 内存实现，测试和单机联调用
type MemorySessionStore struct {
	mu           sync.Mutex
	sessions     map[string]*model.TeachingSession
	interactions map[string][]*model.TeachingInteraction
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions:     make(map[string]*model.TeachingSession),
		interactions: make(map[string][]*model.TeachingInteraction),
	}
}

func (s *MemorySessionStore) Create(ctx context.Context, sess *model.TeachingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = model.GenerateUUID()
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *MemorySessionStore) FindByID(ctx context.Context, id string) (*model.TeachingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, util.ErrUnknownSession
	}
	return sess.Clone(), nil
}

func (s *MemorySessionStore) FindActive(ctx context.Context, userID, kbID string) (*model.TeachingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.KnowledgeBaseID == kbID && !sess.Terminal() {
			return sess.Clone(), nil
		}
	}
	return nil, util.ErrUnknownSession
}

func (s *MemorySessionStore) CommitInteraction(ctx context.Context, sess *model.TeachingSession, expectedLastSeq int64, rec *model.TeachingInteraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sess.ID]
	if !ok {
		return util.ErrUnknownSession
	}
	if stored.LastSequence != expectedLastSeq {
		return util.ErrSequenceConflict
	}
	s.sessions[sess.ID] = sess.Clone()
	if rec != nil {
		if rec.ID == "" {
			rec.ID = model.GenerateUUID()
		}
		s.interactions[sess.ID] = append(s.interactions[sess.ID], rec)
	}
	return nil
}

func (s *MemorySessionStore) SaveState(ctx context.Context, sess *model.TeachingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return util.ErrUnknownSession
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Interactions 按写入顺序返回流水，测试断言用
func (s *MemorySessionStore) Interactions(sessionID string) []*model.TeachingInteraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.TeachingInteraction, len(s.interactions[sessionID]))
	copy(out, s.interactions[sessionID])
	return out
}

// ListBySession 实现 InteractionLister
func (s *MemorySessionStore) ListBySession(ctx context.Context, sessionID string, page, limit int) ([]model.TeachingInteraction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.interactions[sessionID]
	total := int64(len(all))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.TeachingInteraction{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]model.TeachingInteraction, 0, end-start)
	for _, rec := range all[start:end] {
		out = append(out, *rec)
	}
	return out, total, nil
}
