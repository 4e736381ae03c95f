package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"selllink/internal/model"
)

// ==================== 能力标识 ====================
// 代际令牌按异步能力区分，互不干扰

const (
	CapDetect  = "detect"
	CapEnhance = "enhance"
	CapCopy    = "copy"
	CapPrice   = "price"
)

// ==================== 草稿容器 ====================

// DraftSession 单会话的草稿容器
// 纯容器：不做字段校验；唯一写入口是 Update，保证所有变更点可审计
type DraftSession struct {
	mu     sync.Mutex
	draft  model.ListingDraft
	tokens map[string]uint64
}

// NewDraftSession 创建空草稿会话
func NewDraftSession() *DraftSession {
	return &DraftSession{
		tokens: make(map[string]uint64),
	}
}

// Read 返回当前草稿的值拷贝
// 更新方约定使用替换语义（不要原地改切片/指针内容），读取方即可安全使用
func (s *DraftSession) Read() model.ListingDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Update 对当前草稿应用更新函数并整体替换
func (s *DraftSession) Update(fn func(model.ListingDraft) model.ListingDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = fn(s.draft)
}

// Reset 清空草稿，重新上架时调用
// 令牌计数不归零，保证重置前发出的在途调用结果全部作废
func (s *DraftSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = model.ListingDraft{}
	for capability := range s.tokens {
		s.tokens[capability]++
	}
}

// ==================== 代际令牌 ====================
// 每个异步能力维护一个代际计数：输入变化时发起方取新令牌，
// 旧令牌的异步结果在提交时被丢弃，避免慢响应覆盖新数据

// Begin 领取指定能力的新令牌
func (s *DraftSession) Begin(capability string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[capability]++
	return s.tokens[capability]
}

// Invalidate 作废指定能力的所有在途令牌
func (s *DraftSession) Invalidate(capability string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[capability]++
}

// CommitIfCurrent 仅当令牌仍是该能力最新时应用更新
// 返回是否实际提交
func (s *DraftSession) CommitIfCurrent(capability string, token uint64, fn func(model.ListingDraft) model.ListingDraft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[capability] != token {
		return false
	}
	s.draft = fn(s.draft)
	return true
}

// ==================== 会话管理 ====================

// Manager 会话管理器
// 会话仅在内存中存在，超过容量或 TTL 后被驱逐，符合单浏览器会话的生命周期
type Manager struct {
	sessions *expirable.LRU[string, *DraftSession]
}

// NewManager 创建会话管理器
func NewManager(maxSessions int, ttl time.Duration) *Manager {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{
		sessions: expirable.NewLRU[string, *DraftSession](maxSessions, nil, ttl),
	}
}

// Get 获取或创建会话
func (m *Manager) Get(id string) *DraftSession {
	if sess, ok := m.sessions.Get(id); ok {
		return sess
	}
	sess := NewDraftSession()
	m.sessions.Add(id, sess)
	return sess
}

// Delete 删除会话
func (m *Manager) Delete(id string) {
	m.sessions.Remove(id)
}

// Len 当前活跃会话数
func (m *Manager) Len() int {
	return m.sessions.Len()
}
