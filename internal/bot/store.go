package bot

import (
	"context"
	"sync"

	"github.com/nao1215/sentinel/internal/database"
)

// LastScanStore remembers each user's last /scan. *database.ScanDB implements it.
type LastScanStore interface {
	SaveLastScan(ctx context.Context, userID int64, scan database.LastScan) error
	GetLastScan(ctx context.Context, userID int64) (*database.LastScan, error)
}

// MemoryStore is a LastScanStore that forgets everything on restart.
// It is used when the database is disabled.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[int64]database.LastScan
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scans: make(map[int64]database.LastScan)}
}

// SaveLastScan implements LastScanStore.
func (m *MemoryStore) SaveLastScan(_ context.Context, userID int64, scan database.LastScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[userID] = scan
	return nil
}

// GetLastScan implements LastScanStore.
func (m *MemoryStore) GetLastScan(_ context.Context, userID int64) (*database.LastScan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scan, ok := m.scans[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &scan, nil
}
