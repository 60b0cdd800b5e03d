package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/save"
)

// MockStorage is an in-memory Storage used by tests and the memory backend.
type MockStorage struct {
	mu        sync.RWMutex
	records   map[uuid.UUID][]byte
	pingError error
	saveError error
	saves     int
	hold      *saveHold
}

type saveHold struct {
	started chan struct{}
	release chan struct{}
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{records: make(map[uuid.UUID][]byte)}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every SaveRecord fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// HoldNextSave makes the next SaveRecord wait, after encoding its record,
// until release is called. started is closed once that save is waiting.
func (m *MockStorage) HoldNextSave() (started <-chan struct{}, release func()) {
	h := &saveHold{started: make(chan struct{}), release: make(chan struct{})}
	m.mu.Lock()
	m.hold = h
	m.mu.Unlock()
	var once sync.Once
	return h.started, func() { once.Do(func() { close(h.release) }) }
}

// Saves returns how many records have been written.
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

// PutRaw stores raw bytes for id, bypassing encoding.
func (m *MockStorage) PutRaw(id uuid.UUID, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = data
}

func (m *MockStorage) SaveRecord(ctx context.Context, id uuid.UUID, r *save.Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	data, err := save.Encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	h := m.hold
	m.hold = nil
	m.mu.Unlock()
	if h != nil {
		close(h.started)
		<-h.release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.records[id] = data
	m.saves++
	return nil
}

func (m *MockStorage) LoadRecord(ctx context.Context, id uuid.UUID) (*save.Record, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return save.Decode(data)
}

func (m *MockStorage) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
