package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"tt-go/internal/tt"
)

// ErrInjected is returned by FlakyTransport for injected failures.
var ErrInjected = errors.New("injected transport failure")

// FlakyTransport wraps a Transport and fails selected calls. Counters are
// 1-based and count every call of that kind, failed or not.
type FlakyTransport struct {
	tt.Transport

	mu       sync.Mutex
	sends    int
	forwards int
	gets     int

	// FailSend fails the Nth SendDocument call after reading half its body.
	FailSend int
	// FailForward fails the Nth ForwardMessages call.
	FailForward int
	// FailGets fails every GetMessages call.
	FailGets bool
}

// NewFlakyTransport wraps inner.
func NewFlakyTransport(inner tt.Transport) *FlakyTransport {
	return &FlakyTransport{Transport: inner}
}

// Sends returns the number of SendDocument calls so far.
func (f *FlakyTransport) Sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

// Forwards returns the number of ForwardMessages calls so far.
func (f *FlakyTransport) Forwards() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forwards
}

// Gets returns the number of GetMessages calls so far.
func (f *FlakyTransport) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *FlakyTransport) SendDocument(ctx context.Context, destination int64, r io.Reader, size int64, name, caption string) (*tt.RemoteRef, error) {
	f.mu.Lock()
	f.sends++
	n := f.sends
	f.mu.Unlock()

	if n == f.FailSend {
		io.CopyN(io.Discard, r, size/2)
		return nil, ErrInjected
	}
	return f.Transport.SendDocument(ctx, destination, r, size, name, caption)
}

func (f *FlakyTransport) ForwardMessages(ctx context.Context, destination, from int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	f.mu.Lock()
	f.forwards++
	n := f.forwards
	f.mu.Unlock()

	if n == f.FailForward {
		return nil, ErrInjected
	}
	return f.Transport.ForwardMessages(ctx, destination, from, messageIDs)
}

func (f *FlakyTransport) GetMessages(ctx context.Context, destination int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	f.mu.Lock()
	f.gets++
	fail := f.FailGets
	f.mu.Unlock()

	if fail {
		return nil, ErrInjected
	}
	return f.Transport.GetMessages(ctx, destination, messageIDs)
}
