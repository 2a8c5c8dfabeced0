package tt

import (
	"tt-go/internal/database/sqlc"
)

// Database provides an interface for the identity store.
// Lookups return (nil, nil) when nothing matches. Multi-row writes are atomic.
type Database interface {
	// Source content operations

	// FindSourceContentByPath returns the most recently refreshed content last seen at path.
	FindSourceContentByPath(path string) (*sqlc.SourceContent, error)

	// FindSourceContentByChecksum returns the content with the given hash.
	FindSourceContentByChecksum(checksum string) (*sqlc.SourceContent, error)

	FindSourceContentByID(id string) (*sqlc.SourceContent, error)

	// CreateSourceContent inserts a new content record. The checksum must be new.
	CreateSourceContent(content *sqlc.SourceContent) (*sqlc.SourceContent, error)

	// UpdateSourceContent rewrites kind, path, size, mtime and media type of a
	// content record when the same bytes reappear elsewhere. Checksum and ID
	// never change.
	UpdateSourceContent(content *sqlc.SourceContent) error

	// Destination operations

	FindDestination(id int64) (*sqlc.Destination, error)
	ListDestinations() ([]*sqlc.Destination, error)

	// Contract operations

	// FindContract returns the contract for a (content, destination) pair.
	FindContract(sourceID string, destinationID int64) (*sqlc.Contract, error)
	FindContractByID(id string) (*sqlc.Contract, error)
	FindContractsBySource(sourceID string) ([]*sqlc.Contract, error)

	// ListContracts returns the most recently created contracts.
	ListContracts(limit int) ([]*sqlc.Contract, error)

	// FindOrCreateContract returns the existing contract for the pair, or
	// inserts contract. The destination cache row is refreshed in the same
	// transaction. The bool reports whether a new contract was created.
	FindOrCreateContract(contract *sqlc.Contract, destinationTitle string) (*sqlc.Contract, bool, error)

	UpdateContractStatus(id string, status string) error

	// Transport unit operations

	// FindPayloads returns a contract's units ordered by sequence.
	FindPayloads(contractID string) ([]*sqlc.Payload, error)

	// CreatePayloads registers the complete unit set of a contract and moves the
	// contract to status in one transaction. It fails if units already exist.
	CreatePayloads(contractID string, payloads []*sqlc.Payload, status string) ([]*sqlc.Payload, error)

	UpdatePayloadTempPath(id string, tempPath string) error

	// Placement operations

	// FindPlacements returns a contract's placements ordered by sequence.
	FindPlacements(contractID string) ([]*sqlc.Placement, error)

	// FindPlacementsBySource returns every placement of a content across all
	// destinations, ordered by destination then sequence.
	FindPlacementsBySource(sourceID string) ([]*sqlc.Placement, error)

	// CreatePlacement records a delivered unit, refreshing the destination and
	// actor caches in the same transaction. actor may be nil.
	CreatePlacement(placement *sqlc.RemotePayload, destination *sqlc.Destination, actor *sqlc.Actor) error

	// DeletePlacements removes placement records that no longer exist remotely.
	DeletePlacements(ids []string) error

	// Operation tracking

	CreateOperation(operation string, parameters string) (*sqlc.Operation, error)
	FinishOperation(id int64, status string) error
	ListOperations(limit int) ([]*sqlc.Operation, error)
	MaxOperationID() (int64, error)

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Migrate applies pending schema migrations.
	Migrate() error

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
