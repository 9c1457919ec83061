package repository

import (
	"context"
	"encoding/json"
	"errors"
	"knowledge_graph_backend/internal/model"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// BatchStore 保存待审核的建议批次
type BatchStore interface {
	Save(ctx context.Context, batch *model.SuggestionBatch) error
	Get(ctx context.Context, id string) (*model.SuggestionBatch, error)
	Delete(ctx context.Context, id string) error
}

const batchKeyPrefix = "kg:suggestion_batch:"

type RedisBatchStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisBatchStore(rdb *redis.Client, ttl time.Duration) *RedisBatchStore {
	return &RedisBatchStore{Client: rdb, TTL: ttl}
}

func (s *RedisBatchStore) Save(ctx context.Context, batch *model.SuggestionBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, batchKeyPrefix+batch.ID, data, s.TTL).Err()
}

// Get 不存在或已过期时返回 nil
func (s *RedisBatchStore) Get(ctx context.Context, id string) (*model.SuggestionBatch, error) {
	data, err := s.Client.Get(ctx, batchKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var batch model.SuggestionBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *RedisBatchStore) Delete(ctx context.Context, id string) error {
	return s.Client.Del(ctx, batchKeyPrefix+id).Err()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBatchStore 未启用 Redis 时使用的进程内实现
type MemoryBatchStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryBatchStore(ttl time.Duration) *MemoryBatchStore {
	return &MemoryBatchStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryBatchStore) Save(ctx context.Context, batch *model.SuggestionBatch) error {
	// 序列化保存，调用方拿到的是副本
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[batch.ID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryBatchStore) Get(ctx context.Context, id string) (*model.SuggestionBatch, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok && s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	var batch model.SuggestionBatch
	if err := json.Unmarshal(entry.data, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *MemoryBatchStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
