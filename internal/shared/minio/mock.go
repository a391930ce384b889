package objstore

import (
	"context"
	"io"
	"sync"
)

// MemStorage 内存实现，测试用
type MemStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FailUpload 置为非 nil 时 Upload 返回该错误
	FailUpload error
}

var _ Storage = (*MemStorage)(nil)

// NewMemStorage 创建内存对象存储
func NewMemStorage() *MemStorage {
	return &MemStorage{objects: make(map[string][]byte)}
}

func (m *MemStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.FailUpload != nil {
		return m.FailUpload
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemStorage) PublicURL(key string) string {
	return "http://localhost:9000/course-admin/" + key
}

// Has 对象是否存在
func (m *MemStorage) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len 对象数量
func (m *MemStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
