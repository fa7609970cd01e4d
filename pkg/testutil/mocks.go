// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
)

// PNGPixel is a valid 1x1 transparent PNG.
var PNGPixel = mustDecode("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// MockPublisher records every notification it is handed.
type MockPublisher struct {
	mu   sync.Mutex
	sent []notification.Notification
}

// Publish records n.
func (m *MockPublisher) Publish(_ context.Context, n notification.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

// Sent returns a copy of the recorded notifications in publish order.
func (m *MockPublisher) Sent() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification.Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockImageStore keeps uploaded objects in memory and serves them from a
// fake CDN host.
type MockImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	keys    []string

	// PutErr, when set, is returned by every Put.
	PutErr error
}

// NewMockImageStore creates an empty image store.
func NewMockImageStore() *MockImageStore {
	return &MockImageStore{objects: make(map[string][]byte)}
}

// Put stores data under key and returns its public URL.
func (m *MockImageStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return "", m.PutErr
	}
	m.objects[key] = append([]byte(nil), data...)
	m.keys = append(m.keys, key)
	return m.URL(key), nil
}

// Delete removes key. Missing keys are not an error.
func (m *MockImageStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// URL is the public address Put returns for key.
func (m *MockImageStore) URL(key string) string {
	return fmt.Sprintf("https://cdn.example.com/%s", key)
}

// Keys lists every key ever uploaded, in order.
func (m *MockImageStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// Has reports whether key is currently stored.
func (m *MockImageStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
