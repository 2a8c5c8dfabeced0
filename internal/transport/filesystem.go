package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"tt-go/internal/tt"
)

// FileSystemTransport is a filesystem-based implementation of the Transport
// interface. Every destination is a directory of messages:
//
//	<root>/
//	  counter          (last issued message ID)
//	  <destination>/
//	    <id>.bin       (message body)
//	    <id>.json      (message reference)
type FileSystemTransport struct {
	name string
	root string
	mu   sync.Mutex
}

// NewFileSystemTransport creates a new filesystem transport rooted at the given path.
func NewFileSystemTransport(name, root string) (*FileSystemTransport, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transport root: %w", err)
	}
	return &FileSystemTransport{name: name, root: root}, nil
}

func (v *FileSystemTransport) Name() string {
	return v.name
}

func (v *FileSystemTransport) destDir(destination int64) string {
	return filepath.Join(v.root, strconv.FormatInt(destination, 10))
}

func (v *FileSystemTransport) bodyPath(destination, id int64) string {
	return filepath.Join(v.destDir(destination), strconv.FormatInt(id, 10)+".bin")
}

func (v *FileSystemTransport) refPath(destination, id int64) string {
	return filepath.Join(v.destDir(destination), strconv.FormatInt(id, 10)+".json")
}

// nextID must be called with the lock held.
func (v *FileSystemTransport) nextID() (int64, error) {
	counterPath := filepath.Join(v.root, "counter")
	var last int64
	data, err := os.ReadFile(counterPath)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("reading counter: %w", err)
	}
	if err == nil {
		last, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing counter: %w", err)
		}
	}
	id := last + 1
	if err := os.WriteFile(counterPath, []byte(strconv.FormatInt(id, 10)), 0644); err != nil {
		return 0, fmt.Errorf("writing counter: %w", err)
	}
	return id, nil
}

// commit writes the reference for a stored body. Must be called with the lock held.
func (v *FileSystemTransport) commit(destination, id int64, ref tt.RemoteRef) (*tt.RemoteRef, error) {
	ref.MessageID = id
	ref.DestinationID = destination
	ref.SenderID = 1
	ref.SenderName = v.name
	ref.Link = "file://" + v.bodyPath(destination, id)

	data, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("encoding reference: %w", err)
	}
	if err := os.WriteFile(v.refPath(destination, id), data, 0644); err != nil {
		return nil, fmt.Errorf("writing reference: %w", err)
	}
	return &ref, nil
}

// SendDocument stores the document as a new message.
func (v *FileSystemTransport) SendDocument(ctx context.Context, destination int64, r io.Reader, size int64, name, caption string) (*tt.RemoteRef, error) {
	if err := os.MkdirAll(v.destDir(destination), 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	id, err := v.nextID()
	if err != nil {
		return nil, err
	}
	if err := v.writeFile(v.bodyPath(destination, id), r, size); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(v.bodyPath(destination, id))
		return nil, err
	}
	return v.commit(destination, id, tt.RemoteRef{
		FileName: name,
		FileSize: size,
		Caption:  caption,
	})
}

// ForwardMessages copies messages from one destination to another.
func (v *FileSystemTransport) ForwardMessages(ctx context.Context, destination, from int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	srcRefs, err := v.GetMessages(ctx, from, messageIDs)
	if err != nil {
		return nil, err
	}
	for i, ref := range srcRefs {
		if ref == nil {
			return nil, fmt.Errorf("message %d not found in %d", messageIDs[i], from)
		}
	}
	if err := os.MkdirAll(v.destDir(destination), 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	refs := make([]*tt.RemoteRef, 0, len(srcRefs))
	for i, src := range srcRefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := v.nextID()
		if err != nil {
			return nil, err
		}
		f, err := os.Open(v.bodyPath(from, messageIDs[i]))
		if err != nil {
			return nil, fmt.Errorf("failed to open message body: %w", err)
		}
		err = v.writeFile(v.bodyPath(destination, id), f, src.FileSize)
		f.Close()
		if err != nil {
			return nil, err
		}
		ref, err := v.commit(destination, id, tt.RemoteRef{
			FileName: src.FileName,
			FileSize: src.FileSize,
			Caption:  src.Caption,
		})
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetMessages returns the requested messages, nil for the missing ones.
func (v *FileSystemTransport) GetMessages(ctx context.Context, destination int64, messageIDs []int64) ([]*tt.RemoteRef, error) {
	refs := make([]*tt.RemoteRef, len(messageIDs))
	for i, id := range messageIDs {
		data, err := os.ReadFile(v.refPath(destination, id))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading reference: %w", err)
		}
		var ref tt.RemoteRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, fmt.Errorf("decoding reference %d: %w", id, err)
		}
		refs[i] = &ref
	}
	return refs, nil
}

// DeleteMessages removes messages from a destination.
func (v *FileSystemTransport) DeleteMessages(ctx context.Context, destination int64, messageIDs []int64) error {
	for _, id := range messageIDs {
		for _, p := range []string{v.refPath(destination, id), v.bodyPath(destination, id)} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete message %d: %w", id, err)
			}
		}
	}
	return nil
}

// ReadMessage writes the body of a message to w.
func (v *FileSystemTransport) ReadMessage(destination, messageID int64, w io.Writer) error {
	f, err := os.Open(v.bodyPath(destination, messageID))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("message %d not found in %d", messageID, destination)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the transport root is accessible.
func (v *FileSystemTransport) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("transport root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("transport root is not a directory: %s", v.root)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemTransport) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemTransport implements tt.Transport interface
var _ tt.Transport = (*FileSystemTransport)(nil)
