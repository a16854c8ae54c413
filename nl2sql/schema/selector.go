package schema

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Malowking/sqlgo/core/cache"
	"github.com/Malowking/sqlgo/core/errors"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/redis/go-redis/v9"
)

// SessionStore 保存会话当前绑定的领域，仅记录领域ID
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (domainID string, ok bool, err error)
	Set(ctx context.Context, sessionID, domainID string) error
}

// Selector 领域选择器，请求据此绑定唯一的 DomainContext
type Selector struct {
	registry *Registry
	sessions SessionStore
}

// NewSelector 创建选择器，sessions 为 nil 时使用进程内存储
func NewSelector(registry *Registry, sessions SessionStore) *Selector {
	if sessions == nil {
		sessions = NewMemorySessionStore(24 * time.Hour)
	}
	return &Selector{registry: registry, sessions: sessions}
}

// Registry 返回底层注册表
func (s *Selector) Registry() *Registry {
	return s.registry
}

// Select 按ID查找领域，未注册时返回 ErrUnknownDomain
func (s *Selector) Select(domainID string) (*DomainContext, error) {
	id := strings.TrimSpace(domainID)
	d, ok := s.registry.Get(id)
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownDomain, "unknown domain %q, available domains: %s",
			id, strings.Join(s.registry.IDs(), ", "))
	}
	return d, nil
}

// Bind 将会话切换到指定领域，覆盖之前的绑定
func (s *Selector) Bind(ctx context.Context, sessionID, domainID string) (*DomainContext, error) {
	d, err := s.Select(domainID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Set(ctx, sessionID, d.ID); err != nil {
		return nil, errors.Wrap(errors.ErrSessionFailed, err, "failed to bind session domain")
	}
	g.Log().Debugf(ctx, "Session %s bound to domain %s", sessionID, d.ID)
	return d, nil
}

// Resolve 显式领域优先，否则使用会话绑定的领域
func (s *Selector) Resolve(ctx context.Context, sessionID, domainID string) (*DomainContext, error) {
	if strings.TrimSpace(domainID) != "" || sessionID == "" {
		return s.Select(domainID)
	}
	bound, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSessionFailed, err, "failed to read session domain")
	}
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownDomain, "session %s has no domain selected", sessionID)
	}
	return s.Select(bound)
}

// MemorySessionStore 进程内会话存储
type MemorySessionStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]memoryBinding
	lastSweep time.Time
}

type memoryBinding struct {
	domainID  string
	expiresAt time.Time
}

// NewMemorySessionStore 创建进程内会话存储，ttl<=0 表示不过期
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, entries: make(map[string]memoryBinding)}
}

func (m *MemorySessionStore) Get(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[sessionID]
	if !ok {
		return "", false, nil
	}
	if !b.expiresAt.IsZero() && time.Now().After(b.expiresAt) {
		delete(m.entries, sessionID)
		return "", false, nil
	}
	return b.domainID, true, nil
}

func (m *MemorySessionStore) Set(_ context.Context, sessionID, domainID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.sweepLocked(now)
	b := memoryBinding{domainID: domainID}
	if m.ttl > 0 {
		b.expiresAt = now.Add(m.ttl)
	}
	m.entries[sessionID] = b
	return nil
}

// sweepLocked 删除已过期的绑定，每个 ttl 周期最多扫描一次
func (m *MemorySessionStore) sweepLocked(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now
	for id, b := range m.entries {
		if now.After(b.expiresAt) {
			delete(m.entries, id)
		}
	}
}

// RedisSessionStore 基于 Redis 的会话存储，多实例部署时共享绑定
type RedisSessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

type sessionBinding struct {
	DomainID string    `json:"domain_id"`
	BoundAt  time.Time `json:"bound_at"`
}

// NewRedisSessionStore 创建 Redis 会话存储
func NewRedisSessionStore(client redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl, prefix: "sqlgo:session:"}
}

func (r *RedisSessionStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	var b sessionBinding
	err := cache.GetJSON(ctx, r.client, r.prefix+sessionID, &b)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return b.DomainID, true, nil
}

func (r *RedisSessionStore) Set(ctx context.Context, sessionID, domainID string) error {
	return cache.SetJSON(ctx, r.client, r.prefix+sessionID, sessionBinding{DomainID: domainID, BoundAt: time.Now()}, r.ttl)
}
