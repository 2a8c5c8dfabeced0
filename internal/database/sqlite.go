package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"tt-go/internal/database/migrations"
	"tt-go/internal/database/sqlc"
	"tt-go/internal/tt"
)

// SQLiteDatabase implements the identity store using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
	clock   tt.Clock
	idgen   tt.IDGenerator
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock or idgen falls back to the real clock and random UUIDs.
func NewSQLiteDatabase(path string, clock tt.Clock, idgen tt.IDGenerator) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db, clock, idgen)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock tt.Clock, idgen tt.IDGenerator) *SQLiteDatabase {
	if clock == nil {
		clock = tt.RealClock{}
	}
	if idgen == nil {
		idgen = tt.UUIDGenerator{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		clock:   clock,
		idgen:   idgen,
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every ":memory:" connection is its own database, and
	// writers are serialized anyway.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// isConstraintError reports whether err is a SQLite constraint failure.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func (s *SQLiteDatabase) newID(id string) string {
	if id != "" {
		return id
	}
	return s.idgen.New()
}

// Source content operations

func (s *SQLiteDatabase) FindSourceContentByPath(path string) (*sqlc.SourceContent, error) {
	content, err := s.queries.GetSourceContentByPath(context.Background(), path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding source content by path: %w", err)
	}
	return &content, nil
}

func (s *SQLiteDatabase) FindSourceContentByChecksum(checksum string) (*sqlc.SourceContent, error) {
	content, err := s.queries.GetSourceContentByChecksum(context.Background(), checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding source content by checksum: %w", err)
	}
	return &content, nil
}

func (s *SQLiteDatabase) FindSourceContentByID(id string) (*sqlc.SourceContent, error) {
	content, err := s.queries.GetSourceContentByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding source content by id: %w", err)
	}
	return &content, nil
}

func (s *SQLiteDatabase) CreateSourceContent(content *sqlc.SourceContent) (*sqlc.SourceContent, error) {
	now := s.clock.Now()
	created, err := s.queries.InsertSourceContent(context.Background(), sqlc.InsertSourceContentParams{
		ID:         s.newID(content.ID),
		Kind:       content.Kind,
		Path:       content.Path,
		Checksum:   content.Checksum,
		Size:       content.Size,
		ModifiedAt: content.ModifiedAt,
		MediaType:  content.MediaType,
		CreatedAt:  orNow(content.CreatedAt, now),
		UpdatedAt:  orNow(content.UpdatedAt, now),
	})
	if err != nil {
		return nil, fmt.Errorf("creating source content: %w", err)
	}
	return &created, nil
}

func (s *SQLiteDatabase) UpdateSourceContent(content *sqlc.SourceContent) error {
	err := s.queries.UpdateSourceContent(context.Background(), sqlc.UpdateSourceContentParams{
		Kind:       content.Kind,
		Path:       content.Path,
		Size:       content.Size,
		ModifiedAt: content.ModifiedAt,
		MediaType:  content.MediaType,
		UpdatedAt:  s.clock.Now(),
		ID:         content.ID,
	})
	if err != nil {
		return fmt.Errorf("updating source content: %w", err)
	}
	return nil
}

// Destination operations

func (s *SQLiteDatabase) FindDestination(id int64) (*sqlc.Destination, error) {
	dest, err := s.queries.GetDestinationByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding destination: %w", err)
	}
	return &dest, nil
}

func (s *SQLiteDatabase) ListDestinations() ([]*sqlc.Destination, error) {
	dests, err := s.queries.ListDestinations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}

	result := make([]*sqlc.Destination, len(dests))
	for i := range dests {
		result[i] = &dests[i]
	}
	return result, nil
}

// Contract operations

func (s *SQLiteDatabase) FindContract(sourceID string, destinationID int64) (*sqlc.Contract, error) {
	contract, err := s.queries.GetContractBySourceAndDestination(context.Background(), sqlc.GetContractBySourceAndDestinationParams{
		SourceID:      sourceID,
		DestinationID: destinationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding contract: %w", err)
	}
	return &contract, nil
}

func (s *SQLiteDatabase) FindContractByID(id string) (*sqlc.Contract, error) {
	contract, err := s.queries.GetContractByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding contract by id: %w", err)
	}
	return &contract, nil
}

func (s *SQLiteDatabase) FindContractsBySource(sourceID string) ([]*sqlc.Contract, error) {
	contracts, err := s.queries.GetContractsBySourceID(context.Background(), sourceID)
	if err != nil {
		return nil, fmt.Errorf("finding contracts by source: %w", err)
	}
	return contractPointers(contracts), nil
}

func (s *SQLiteDatabase) ListContracts(limit int) ([]*sqlc.Contract, error) {
	contracts, err := s.queries.ListContracts(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	return contractPointers(contracts), nil
}

func contractPointers(contracts []sqlc.Contract) []*sqlc.Contract {
	result := make([]*sqlc.Contract, len(contracts))
	for i := range contracts {
		result[i] = &contracts[i]
	}
	return result
}

// FindOrCreateContract returns the contract for the (source, destination)
// pair, inserting contract if there is none. The UNIQUE constraint on the
// pair decides between concurrent creators: the loser reads the winner's row.
func (s *SQLiteDatabase) FindOrCreateContract(contract *sqlc.Contract, destinationTitle string) (*sqlc.Contract, bool, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	existing, err := qtx.GetContractBySourceAndDestination(ctx, sqlc.GetContractBySourceAndDestinationParams{
		SourceID:      contract.SourceID,
		DestinationID: contract.DestinationID,
	})
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("finding contract: %w", err)
	}

	now := s.clock.Now()
	err = qtx.UpsertDestination(ctx, sqlc.UpsertDestinationParams{
		ID:        contract.DestinationID,
		Title:     destinationTitle,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("recording destination: %w", err)
	}

	created, err := qtx.InsertContract(ctx, sqlc.InsertContractParams{
		ID:            s.newID(contract.ID),
		SourceID:      contract.SourceID,
		DestinationID: contract.DestinationID,
		Strategy:      contract.Strategy,
		ChunkSize:     contract.ChunkSize,
		Config:        contract.Config,
		Status:        contract.Status,
		CreatedAt:     orNow(contract.CreatedAt, now),
		UpdatedAt:     orNow(contract.UpdatedAt, now),
	})
	if err != nil {
		if isConstraintError(err) {
			tx.Rollback()
			winner, ferr := s.FindContract(contract.SourceID, contract.DestinationID)
			if ferr == nil && winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, fmt.Errorf("inserting contract: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}
	return &created, true, nil
}

func (s *SQLiteDatabase) UpdateContractStatus(id string, status string) error {
	err := s.queries.UpdateContractStatus(context.Background(), sqlc.UpdateContractStatusParams{
		Status:    status,
		UpdatedAt: s.clock.Now(),
		ID:        id,
	})
	if err != nil {
		return fmt.Errorf("updating contract status: %w", err)
	}
	return nil
}

// Transport unit operations

func (s *SQLiteDatabase) FindPayloads(contractID string) ([]*sqlc.Payload, error) {
	payloads, err := s.queries.GetPayloadsByContractID(context.Background(), contractID)
	if err != nil {
		return nil, fmt.Errorf("finding payloads: %w", err)
	}

	result := make([]*sqlc.Payload, len(payloads))
	for i := range payloads {
		result[i] = &payloads[i]
	}
	return result, nil
}

// CreatePayloads registers the full unit set of a contract in one
// transaction together with the contract's status change.
func (s *SQLiteDatabase) CreatePayloads(contractID string, payloads []*sqlc.Payload, status string) ([]*sqlc.Payload, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	existing, err := qtx.GetPayloadsByContractID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("checking for existing payloads: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("contract %s already has %d payloads", contractID, len(existing))
	}

	now := s.clock.Now()
	result := make([]*sqlc.Payload, 0, len(payloads))
	for _, p := range payloads {
		created, err := qtx.InsertPayload(ctx, sqlc.InsertPayloadParams{
			ID:         s.newID(p.ID),
			ContractID: contractID,
			Sequence:   p.Sequence,
			TempPath:   p.TempPath,
			Checksum:   p.Checksum,
			Size:       p.Size,
			CreatedAt:  orNow(p.CreatedAt, now),
		})
		if err != nil {
			return nil, fmt.Errorf("inserting payload %d: %w", p.Sequence, err)
		}
		result = append(result, &created)
	}

	err = qtx.UpdateContractStatus(ctx, sqlc.UpdateContractStatusParams{
		Status:    status,
		UpdatedAt: now,
		ID:        contractID,
	})
	if err != nil {
		return nil, fmt.Errorf("updating contract status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) UpdatePayloadTempPath(id string, tempPath string) error {
	err := s.queries.UpdatePayloadTempPath(context.Background(), sqlc.UpdatePayloadTempPathParams{
		TempPath: tempPath,
		ID:       id,
	})
	if err != nil {
		return fmt.Errorf("updating payload temp path: %w", err)
	}
	return nil
}

// Placement operations

func (s *SQLiteDatabase) FindPlacements(contractID string) ([]*sqlc.Placement, error) {
	placements, err := s.queries.GetPlacementsByContractID(context.Background(), contractID)
	if err != nil {
		return nil, fmt.Errorf("finding placements: %w", err)
	}
	return placementPointers(placements), nil
}

func (s *SQLiteDatabase) FindPlacementsBySource(sourceID string) ([]*sqlc.Placement, error) {
	placements, err := s.queries.GetPlacementsBySourceID(context.Background(), sourceID)
	if err != nil {
		return nil, fmt.Errorf("finding placements by source: %w", err)
	}
	return placementPointers(placements), nil
}

func placementPointers(placements []sqlc.Placement) []*sqlc.Placement {
	result := make([]*sqlc.Placement, len(placements))
	for i := range placements {
		result[i] = &placements[i]
	}
	return result
}

// CreatePlacement records a delivered unit. The destination and actor rows
// are refreshed in the same transaction so the placement never references a
// missing row.
func (s *SQLiteDatabase) CreatePlacement(placement *sqlc.RemotePayload, destination *sqlc.Destination, actor *sqlc.Actor) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	now := s.clock.Now()

	err = qtx.UpsertDestination(ctx, sqlc.UpsertDestinationParams{
		ID:        destination.ID,
		Title:     destination.Title,
		UpdatedAt: orNow(destination.UpdatedAt, now),
	})
	if err != nil {
		return fmt.Errorf("recording destination: %w", err)
	}

	if actor != nil {
		err = qtx.UpsertActor(ctx, sqlc.UpsertActorParams{
			ID:        actor.ID,
			Name:      actor.Name,
			UpdatedAt: orNow(actor.UpdatedAt, now),
		})
		if err != nil {
			return fmt.Errorf("recording actor: %w", err)
		}
	}

	created, err := qtx.InsertRemotePayload(ctx, sqlc.InsertRemotePayloadParams{
		ID:            s.newID(placement.ID),
		PayloadID:     placement.PayloadID,
		DestinationID: placement.DestinationID,
		MessageID:     placement.MessageID,
		FileName:      placement.FileName,
		Link:          placement.Link,
		Metadata:      placement.Metadata,
		ActorID:       placement.ActorID,
		CreatedAt:     orNow(placement.CreatedAt, now),
	})
	if err != nil {
		return fmt.Errorf("inserting remote payload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	*placement = created
	return nil
}

func (s *SQLiteDatabase) DeletePlacements(ids []string) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	for _, id := range ids {
		if err := qtx.DeleteRemotePayload(ctx, id); err != nil {
			return fmt.Errorf("deleting remote payload %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*sqlc.Operation, error) {
	op, err := s.queries.InsertOperation(context.Background(), sqlc.InsertOperationParams{
		StartedAt:  s.clock.Now(),
		Operation:  operation,
		Parameters: parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return &op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	err := s.queries.UpdateOperationFinished(context.Background(), sqlc.UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: s.clock.Now(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*sqlc.Operation, error) {
	ops, err := s.queries.GetOperations(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}

	result := make([]*sqlc.Operation, len(ops))
	for i := range ops {
		result[i] = &ops[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	id, err := s.queries.GetMaxOperationID(context.Background())
	if err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate brings the schema up to the latest embedded migration.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements tt.Database interface
var _ tt.Database = (*SQLiteDatabase)(nil)
