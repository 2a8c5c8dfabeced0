package tt

import (
	"context"
	"encoding/json"
	"io"
)

// RemoteRef describes one message held by a destination.
type RemoteRef struct {
	MessageID        int64           `json:"message_id"`
	DestinationID    int64           `json:"destination_id"`
	DestinationTitle string          `json:"destination_title,omitempty"`
	SenderID         int64           `json:"sender_id,omitempty"`
	SenderName       string          `json:"sender_name,omitempty"`
	FileName         string          `json:"file_name"`
	FileSize         int64           `json:"file_size"`
	Caption          string          `json:"caption,omitempty"`
	Link             string          `json:"link"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// Transport is the messaging capability the engine moves bytes through.
// Implementations never retry on their own; the orchestrator is re-run instead.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string

	// SendDocument delivers size bytes read from r as one message named name.
	SendDocument(ctx context.Context, destination int64, r io.Reader, size int64, name, caption string) (*RemoteRef, error)

	// ForwardMessages duplicates messages held by from into destination without
	// re-sending their bytes. The result is in the order of messageIDs.
	ForwardMessages(ctx context.Context, destination, from int64, messageIDs []int64) ([]*RemoteRef, error)

	// GetMessages looks messages up. The result has one entry per requested ID,
	// nil where the message no longer exists.
	GetMessages(ctx context.Context, destination int64, messageIDs []int64) ([]*RemoteRef, error)

	// DeleteMessages removes messages. Missing messages are not an error.
	DeleteMessages(ctx context.Context, destination int64, messageIDs []int64) error
}
