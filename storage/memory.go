package storage

import (
	"context"
	"sync"
	"time"

	"genix/models"
)

// MemoryQuotaStore keeps quota records in process memory
type MemoryQuotaStore struct {
	mu      sync.RWMutex
	records map[string]models.UserQuota
}

var _ QuotaStore = (*MemoryQuotaStore)(nil)

// NewMemoryQuotaStore returns an empty store
func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{records: make(map[string]models.UserQuota)}
}

// GetQuota returns a copy of the stored record
func (m *MemoryQuotaStore) GetQuota(_ context.Context, uid string) (*models.UserQuota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.records[uid]
	if !ok {
		return nil, ErrQuotaNotFound
	}
	return &q, nil
}

func (m *MemoryQuotaStore) SetQuota(_ context.Context, quota *models.UserQuota) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[quota.UID] = *quota
	return nil
}

func (m *MemoryQuotaStore) ConsumeGeneration(_ context.Context, uid string, now time.Time) (*models.UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.records[uid]
	if !ok {
		return nil, ErrQuotaNotFound
	}
	q.Consume(now)
	m.records[uid] = q
	return &q, nil
}

func (m *MemoryQuotaStore) Close(context.Context) error {
	return nil
}
