package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"tt-go/internal/config"
	"tt-go/internal/database"
	"tt-go/internal/database/sqlc"
	"tt-go/internal/fs"
	"tt-go/internal/manifest"
	"tt-go/internal/transport"
	"tt-go/internal/tt"
)

// Version is stamped into every contract's configuration snapshot.
var Version = "dev"

// TTApp is the application layer between the CLI and tt.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths and destination names, and manages the DB
// lifecycle on Close.
type TTApp struct {
	cfg       *config.Config
	db        tt.Database
	transport tt.Transport
	fsmgr     tt.FilesystemManager
	service   *tt.Service
	op        *Operation
	logFile   *os.File
}

// NewTTApp creates a fully wired TTApp from the given config.
// operation identifies the CLI command being run (e.g. "Transfer", "Status").
// The caller must call Close when done.
func NewTTApp(ctx context.Context, cfg *config.Config, operation string) (*TTApp, error) {
	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	tr, err := transport.NewTransportFromConfig(ctx, cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := tt.NewService(db, tr, fsmgr, &slogAdapter{l: logger}, tt.RealClock{}, tt.UUIDGenerator{}, SettingsFromConfig(cfg))

	return &TTApp{
		cfg:       cfg,
		db:        db,
		transport: tr,
		fsmgr:     fsmgr,
		service:   svc,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// Migrate opens the configured identity store and applies pending schema
// migrations.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// SettingsFromConfig derives the engine's global settings from the config.
func SettingsFromConfig(cfg *config.Config) tt.Settings {
	return tt.Settings{
		ChunkSize:        cfg.Transfer.ChunkSize,
		PremiumChunkSize: cfg.Transfer.PremiumChunkSize,
		Premium:          cfg.Transfer.Premium,
		RateLimit:        cfg.Transfer.RateLimit,
		WorkDir:          cfg.Transfer.WorkDir,
		MaxNameLength:    cfg.Transfer.MaxNameLength,
		AppVersion:       Version,
		ValidationRate:   cfg.Transfer.ValidationRate,
		Destinations:     cfg.DestinationTitles(),
	}
}

// Config returns the config the app was built from.
func (a *TTApp) Config() *config.Config {
	return a.cfg
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *TTApp) persistOperation(params ...string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	if err := a.op.SetParameters(params...); err != nil {
		return err
	}
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Transfer places the file or directory at rawPath on the named destination.
func (a *TTApp) Transfer(ctx context.Context, rawPath, destination string, policy tt.Policy, ask tt.AskFunc) (*tt.TransferResult, error) {
	dest, err := a.cfg.ResolveDestination(destination)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawPath, destination, string(policy)); err != nil {
		return nil, err
	}
	res, err := a.service.Transfer(ctx, rawPath, dest, policy, ask)
	return res, a.op.Record(err)
}

// Status reports on the content at rawPath for the named destination.
func (a *TTApp) Status(ctx context.Context, rawPath, destination string) (*tt.ContentStatus, error) {
	dest, err := a.cfg.ResolveDestination(destination)
	if err != nil {
		return nil, err
	}
	return a.service.Status(ctx, rawPath, dest)
}

// ListContracts returns the most recent contracts.
func (a *TTApp) ListContracts(limit int) ([]*tt.ContractSummary, error) {
	return a.service.ListContracts(limit)
}

// GetHistory returns the most recent operations.
func (a *TTApp) GetHistory(limit int) ([]*sqlc.Operation, error) {
	return a.service.GetHistory(limit)
}

// ExportManifest writes the manifest of the contract between the content at
// rawPath and the named destination.
func (a *TTApp) ExportManifest(rawPath, destination string, w io.Writer) (*manifest.Document, error) {
	dest, err := a.cfg.ResolveDestination(destination)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawPath, destination); err != nil {
		return nil, err
	}

	contract, err := a.findContract(rawPath, dest)
	if err != nil {
		return nil, a.op.Record(err)
	}
	doc, err := a.service.ExportManifest(contract, w)
	return doc, a.op.Record(err)
}

func (a *TTApp) findContract(rawPath string, dest int64) (*sqlc.Contract, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", tt.ErrNotFound, rawPath, err)
	}

	var source *sqlc.SourceContent
	if p.IsDir() {
		source, err = a.service.RegisterDirectory(p)
	} else {
		source, err = a.service.RegisterSource(p)
	}
	if err != nil {
		return nil, err
	}

	contract, err := a.db.FindContract(source.ID, dest)
	if err != nil {
		return nil, fmt.Errorf("finding contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: no contract for %s with destination %d", tt.ErrNotFound, p.String(), dest)
	}
	return contract, nil
}

// ImportManifest restores the contract described by the manifest in r.
// An empty destination accepts the one recorded in the manifest.
func (a *TTApp) ImportManifest(ctx context.Context, r io.Reader, destination string) (*tt.ImportResult, error) {
	var dest int64
	if destination != "" {
		var err error
		if dest, err = a.cfg.ResolveDestination(destination); err != nil {
			return nil, err
		}
	}
	if err := a.persistOperation(destination); err != nil {
		return nil, err
	}
	res, err := a.service.ImportManifest(ctx, r, dest)
	return res, a.op.Record(err)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the DB,
// and sends the snapshot to the metadata destination when one is configured.
// For non-persisted operations: just closes the database.
func (a *TTApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}

		var tmpPath string
		if a.cfg.Transfer.MetadataDestination != "" {
			tmpFile, err := os.CreateTemp("", "tt-db-snapshot-*.db")
			if err != nil {
				keep(fmt.Errorf("creating temp file for db snapshot: %w", err))
			} else {
				tmpPath = tmpFile.Name()
				tmpFile.Close()
				if err := a.db.BackupTo(tmpPath); err != nil {
					keep(fmt.Errorf("snapshotting database: %w", err))
					os.Remove(tmpPath)
					tmpPath = ""
				}
			}
		}

		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}

		if tmpPath != "" {
			keep(a.sendMetadata(tmpPath, a.op.ID))
			os.Remove(tmpPath)
		}
	} else {
		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// sendMetadata delivers the DB snapshot at path to the metadata destination,
// named after the host and the operation that produced it.
func (a *TTApp) sendMetadata(path string, version int64) error {
	dest, err := a.cfg.ResolveDestination(a.cfg.Transfer.MetadataDestination)
	if err != nil {
		return fmt.Errorf("metadata destination: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}

	name := fmt.Sprintf("%s-%d.db", a.cfg.HostID, version)
	caption := fmt.Sprintf("tt metadata host=%s version=%d", a.cfg.HostID, version)
	if _, err := a.transport.SendDocument(context.Background(), dest, f, info.Size(), name, caption); err != nil {
		return fmt.Errorf("sending metadata: %w", err)
	}
	return nil
}
