package tt

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path/filepath"
	"time"

	"tt-go/internal/chunker"
	"tt-go/internal/database/sqlc"
)

const tarMediaType = "application/x-tar"

// RegisterSource returns the identity record for the file at path. A record
// whose path, size and mtime all match is accepted without reading the file.
// Otherwise the file is hashed: known bytes have their location refreshed in
// place, new bytes get a new record.
func (s *Service) RegisterSource(path *Path) (*sqlc.SourceContent, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, path.String())
	}

	cached, info, err := s.lookupByPath(path)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		s.logger.Debug("source fast path hit", "path", path.String(), "checksum", cached.Checksum)
		return cached, nil
	}

	checksum, err := s.hashFile(path)
	if err != nil {
		return nil, err
	}
	return s.recordSource(KindFile, path.String(), checksum, info.Size(), info.ModTime(), mediaTypeOf(path.String()))
}

// RegisterDirectory returns the identity record for the tape archive of the
// directory at path. The tape is replayed once to hash it; nothing is written
// to disk.
func (s *Service) RegisterDirectory(path *Path) (*sqlc.SourceContent, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidArgument, path.String())
	}

	tape, modifiedAt, err := directoryTape(s.fsmgr, path)
	if err != nil {
		return nil, err
	}
	layout, err := chunker.MeasureTape(tape, 0)
	if err != nil {
		return nil, fmt.Errorf("measuring %s: %w", path.String(), err)
	}

	s.logger.Debug("directory measured", "path", path.String(), "files", len(tape.Files()), "size", layout.Size)
	return s.recordSource(KindDirectory, path.String(), layout.Checksum, layout.Size, modifiedAt, tarMediaType)
}

// lookupByPath applies the path+size+mtime fast path without hashing. It
// returns the matching record (or nil) together with fresh file info.
func (s *Service) lookupByPath(path *Path) (*sqlc.SourceContent, fs.FileInfo, error) {
	info, err := s.fsmgr.Stat(path)
	if err != nil {
		return nil, nil, notFound(err, "stat %s", path.String())
	}

	cached, err := s.database.FindSourceContentByPath(path.String())
	if err != nil {
		return nil, nil, fmt.Errorf("finding source by path: %w", err)
	}
	if cached != nil && cached.Kind == KindFile && cached.Size == info.Size() && cached.ModifiedAt.Equal(info.ModTime()) {
		return cached, info, nil
	}
	return nil, info, nil
}

func (s *Service) hashFile(path *Path) (string, error) {
	f, err := s.fsmgr.Open(path)
	if err != nil {
		return "", notFound(err, "opening %s", path.String())
	}
	defer f.Close()

	checksum, _, err := chunker.HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path.String(), err)
	}
	return checksum, nil
}

func (s *Service) recordSource(kind, path, checksum string, size int64, modifiedAt time.Time, mediaType string) (*sqlc.SourceContent, error) {
	existing, err := s.database.FindSourceContentByChecksum(checksum)
	if err != nil {
		return nil, fmt.Errorf("finding source by checksum: %w", err)
	}

	if existing != nil {
		if existing.Kind == kind && existing.Path == path && existing.Size == size &&
			existing.ModifiedAt.Equal(modifiedAt) && existing.MediaType == mediaType {
			return existing, nil
		}
		refreshed := *existing
		refreshed.Kind = kind
		refreshed.Path = path
		refreshed.Size = size
		refreshed.ModifiedAt = modifiedAt
		refreshed.MediaType = mediaType
		if err := s.database.UpdateSourceContent(&refreshed); err != nil {
			return nil, fmt.Errorf("refreshing source content: %w", err)
		}
		s.logger.Info("source content refreshed", "checksum", checksum, "old_kind", existing.Kind, "kind", kind,
			"old_path", existing.Path, "path", path)
		return &refreshed, nil
	}

	now := s.clock.Now()
	created, err := s.database.CreateSourceContent(&sqlc.SourceContent{
		ID:         s.idgen.New(),
		Kind:       kind,
		Path:       path,
		Checksum:   checksum,
		Size:       size,
		ModifiedAt: modifiedAt,
		MediaType:  mediaType,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating source content: %w", err)
	}
	s.logger.Info("source content registered", "kind", kind, "path", path, "checksum", checksum, "size", size)
	return created, nil
}

// ObtainContract returns the contract placing source at destination, creating
// it on first request. Strategy and ceiling are decided here, once, from the
// current settings and frozen into the contract.
func (s *Service) ObtainContract(source *sqlc.SourceContent, destination int64) (*sqlc.Contract, error) {
	snapshot := s.settings.snapshot()
	contract, err := s.newContract(source, destination, ChooseStrategy(source.Size, snapshot.ChunkSize), snapshot)
	if err != nil {
		return nil, err
	}

	got, created, err := s.database.FindOrCreateContract(contract, s.destinationTitle(destination))
	if err != nil {
		return nil, fmt.Errorf("obtaining contract: %w", err)
	}
	if created {
		s.logger.Info("contract created", "contract", got.ID, "checksum", source.Checksum,
			"destination", destination, "strategy", got.Strategy, "chunk_size", got.ChunkSize)
	}
	return got, nil
}

// newContract builds an unsaved contract for source at destination. The
// ceiling column and the frozen snapshot both come from snapshot.
func (s *Service) newContract(source *sqlc.SourceContent, destination int64, strategy Strategy, snapshot ContractConfig) (*sqlc.Contract, error) {
	cfg, err := encodeContractConfig(snapshot)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &sqlc.Contract{
		ID:            s.idgen.New(),
		SourceID:      source.ID,
		DestinationID: destination,
		Strategy:      string(strategy),
		ChunkSize:     snapshot.ChunkSize,
		Config:        cfg,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// directoryTape lists the files below dir, minus ignored ones, as a tape. It
// also returns the newest file mtime.
func directoryTape(fsmgr FilesystemManager, dir *Path) (*chunker.DirectoryTape, time.Time, error) {
	files, err := fsmgr.FindFiles(dir, true)
	if err != nil {
		return nil, time.Time{}, notFound(err, "listing %s", dir.String())
	}

	var newest time.Time
	rels := make([]string, 0, len(files))
	for _, f := range files {
		ignored, err := fsmgr.IsIgnored(f, dir.String())
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("checking ignore rules: %w", err)
		}
		if ignored {
			continue
		}
		rel, err := filepath.Rel(dir.String(), f.String())
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("calculating relative path: %w", err)
		}
		rels = append(rels, rel)
		if mt := f.Info().ModTime(); mt.After(newest) {
			newest = mt
		}
	}
	return chunker.NewDirectoryTape(dir.String(), rels), newest, nil
}

func mediaTypeOf(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// notFound wraps err, adding ErrNotFound when it reports a missing file.
func notFound(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w: %w", msg, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
