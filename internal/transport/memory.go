package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"tt-go/internal/tt"
)

type memoryMessage struct {
	ref  tt.RemoteRef
	data []byte
}

// MemoryTransport is an in-memory implementation of the Transport interface.
// It keeps every message in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryTransport struct {
	name     string
	nextID   int64
	messages map[int64]map[int64]*memoryMessage // destination -> message ID -> message
	mu       sync.RWMutex
}

// NewMemoryTransport creates a new in-memory transport with the given name.
func NewMemoryTransport(name string) *MemoryTransport {
	return &MemoryTransport{
		name:     name,
		messages: make(map[int64]map[int64]*memoryMessage),
	}
}

func (m *MemoryTransport) Name() string {
	return m.name
}

// store must be called with the lock held.
func (m *MemoryTransport) store(destination int64, ref tt.RemoteRef, data []byte) *tt.RemoteRef {
	m.nextID++
	ref.MessageID = m.nextID
	ref.DestinationID = destination
	ref.SenderID = 1
	ref.SenderName = m.name
	ref.Link = fmt.Sprintf("memory://%s/%d/%d", m.name, destination, ref.MessageID)

	msgs, ok := m.messages[destination]
	if !ok {
		msgs = make(map[int64]*memoryMessage)
		m.messages[destination] = msgs
	}
	msgs[ref.MessageID] = &memoryMessage{ref: ref, data: data}

	out := ref
	return &out
}

// SendDocument stores the document as a new message.
func (m *MemoryTransport) SendDocument(ctx context.Context, destination int64, r io.Reader, size int64, name, caption string) (*tt.RemoteRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store(destination, tt.RemoteRef{
		FileName: name,
		FileSize: size,
		Caption:  caption,
	}, data), nil
}

// ForwardMessages copies messages from one destination to another.
func (m *MemoryTransport) ForwardMessages(ctx context.Context, destination, from int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.messages[from]
	for _, id := range messageIDs {
		if _, ok := src[id]; !ok {
			return nil, fmt.Errorf("message %d not found in %d", id, from)
		}
	}

	refs := make([]*tt.RemoteRef, 0, len(messageIDs))
	for _, id := range messageIDs {
		msg := src[id]
		refs = append(refs, m.store(destination, msg.ref, msg.data))
	}
	return refs, nil
}

// GetMessages returns the requested messages, nil for the missing ones.
func (m *MemoryTransport) GetMessages(ctx context.Context, destination int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]*tt.RemoteRef, len(messageIDs))
	for i, id := range messageIDs {
		if msg, ok := m.messages[destination][id]; ok {
			ref := msg.ref
			refs[i] = &ref
		}
	}
	return refs, nil
}

// DeleteMessages removes messages from a destination.
func (m *MemoryTransport) DeleteMessages(ctx context.Context, destination int64, messageIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range messageIDs {
		delete(m.messages[destination], id)
	}
	return nil
}

// Data returns a copy of a message's bytes, or nil if it does not exist.
func (m *MemoryTransport) Data(destination, messageID int64) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[destination][messageID]
	if !ok {
		return nil
	}
	return bytes.Clone(msg.data)
}

// Count returns the number of messages held by a destination.
func (m *MemoryTransport) Count(destination int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[destination])
}

// Messages returns the messages held by a destination, ordered by ID.
func (m *MemoryTransport) Messages(destination int64) []*tt.RemoteRef {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]*tt.RemoteRef, 0, len(m.messages[destination]))
	for _, msg := range m.messages[destination] {
		ref := msg.ref
		refs = append(refs, &ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].MessageID < refs[j].MessageID })
	return refs
}

// Compile-time check that MemoryTransport implements tt.Transport interface
var _ tt.Transport = (*MemoryTransport)(nil)
