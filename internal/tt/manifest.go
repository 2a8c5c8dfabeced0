package tt

import (
	"context"
	"fmt"
	"io"

	"tt-go/internal/database/sqlc"
	"tt-go/internal/manifest"
)

// ExportManifest writes the manifest of a fully placed contract to w.
func (s *Service) ExportManifest(contract *sqlc.Contract, w io.Writer) (*manifest.Document, error) {
	source, err := s.database.FindSourceContentByID(contract.SourceID)
	if err != nil {
		return nil, fmt.Errorf("finding source: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source %s of contract %s", ErrNotFound, contract.SourceID, contract.ID)
	}
	plan, err := UnitPlanFor(contract)
	if err != nil {
		return nil, err
	}
	placements, err := s.database.FindPlacements(contract.ID)
	if err != nil {
		return nil, fmt.Errorf("finding placements: %w", err)
	}
	if expected := plan.ExpectedUnits(source.Size); len(placements) != expected {
		return nil, fmt.Errorf("%w: contract %s has %d of %d units placed", ErrInvalidArgument, contract.ID, len(placements), expected)
	}

	doc := &manifest.Document{
		Version:  manifest.Version,
		Strategy: contract.Strategy,
		Source: manifest.Source{
			Kind:      source.Kind,
			Filename:  baseName(source),
			Size:      source.Size,
			Checksum:  source.Checksum,
			MediaType: source.MediaType,
		},
	}
	if plan.Strategy() == StrategyChunked {
		doc.ChunkSize = contract.ChunkSize
	}
	for _, p := range placements {
		doc.Parts = append(doc.Parts, manifest.Part{
			Sequence:      int(p.Sequence),
			MessageID:     p.MessageID,
			DestinationID: p.DestinationID,
			Link:          p.Link,
			Filename:      p.FileName,
			Size:          p.UnitSize,
			Checksum:      p.UnitChecksum,
		})
	}

	if err := manifest.Encode(w, doc); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	s.logger.Info("manifest written", "contract", contract.ID, "parts", len(doc.Parts), "checksum", source.Checksum)
	return doc, nil
}

// ImportResult reports what ImportManifest restored.
type ImportResult struct {
	Contract *sqlc.Contract
	Restored int
	Missing  int
}

// ImportManifest rebuilds the identity records of a manifest and records a
// placement for every part the destination still holds. destination 0 takes
// the destination from the manifest.
func (s *Service) ImportManifest(ctx context.Context, r io.Reader, destination int64) (*ImportResult, error) {
	doc, err := manifest.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if destination == 0 {
		destination = doc.Parts[0].DestinationID
	}
	for _, p := range doc.Parts {
		if p.DestinationID != destination {
			return nil, fmt.Errorf("%w: part %d is at destination %d, not %d", ErrInvalidArgument, p.Sequence, p.DestinationID, destination)
		}
	}

	plan, err := NewUnitPlan(doc.Strategy, doc.ChunkSize)
	if err != nil {
		return nil, err
	}
	if expected := plan.ExpectedUnits(doc.Source.Size); expected != len(doc.Parts) {
		return nil, fmt.Errorf("%w: %s layout needs %d parts, manifest has %d", ErrInvalidArgument, doc.Strategy, expected, len(doc.Parts))
	}

	source, err := s.importSource(doc)
	if err != nil {
		return nil, err
	}
	contract, err := s.importContract(doc, source, destination)
	if err != nil {
		return nil, err
	}

	donors := make([]*sqlc.Placement, len(doc.Parts))
	for i, p := range doc.Parts {
		donors[i] = &sqlc.Placement{Sequence: int64(p.Sequence), UnitChecksum: p.Checksum, UnitSize: p.Size}
	}
	run := &run{contract: contract, source: source, plan: plan}
	units, err := s.orchestrator.cloneUnits(run, donors)
	if err != nil {
		return nil, err
	}
	placed, err := s.orchestrator.placedUnits(contract.ID)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Contract: contract}
	for start := 0; start < len(units); start += validationBatch {
		end := min(start+validationBatch, len(units))

		var batch []*sqlc.Payload
		var ids []int64
		for i := start; i < end; i++ {
			if placed[units[i].ID] {
				continue
			}
			batch = append(batch, units[i])
			ids = append(ids, doc.Parts[i].MessageID)
		}
		if len(ids) == 0 {
			continue
		}

		refs, err := s.transport.GetMessages(ctx, destination, ids)
		if err != nil {
			return nil, fmt.Errorf("rescanning destination %d: %w: %w", destination, ErrTransportFailure, err)
		}
		if len(refs) != len(ids) {
			return nil, fmt.Errorf("%w: asked for %d messages, got %d answers", ErrTransportFailure, len(ids), len(refs))
		}
		for i, ref := range refs {
			u := batch[i]
			if ref == nil || ref.FileSize != u.Size {
				s.logger.Warn("manifest part missing at destination", "contract", contract.ID, "sequence", u.Sequence, "message", ids[i])
				result.Missing++
				continue
			}
			if err := s.orchestrator.recordPlacement(u, ref); err != nil {
				return nil, err
			}
			result.Restored++
		}
	}

	if result.Missing == 0 {
		if err := s.orchestrator.finish(contract, len(units)); err != nil {
			return nil, err
		}
	}
	s.logger.Info("manifest imported", "contract", contract.ID, "restored", result.Restored, "missing", result.Missing)
	return result, nil
}

func (s *Service) importSource(doc *manifest.Document) (*sqlc.SourceContent, error) {
	existing, err := s.database.FindSourceContentByChecksum(doc.Source.Checksum)
	if err != nil {
		return nil, fmt.Errorf("finding source by checksum: %w", err)
	}
	if existing != nil {
		if existing.Size != doc.Source.Size {
			return nil, fmt.Errorf("%w: known content %s has size %d, manifest says %d",
				ErrIntegrityViolation, existing.Checksum, existing.Size, doc.Source.Size)
		}
		return existing, nil
	}

	kind := doc.Source.Kind
	if kind == "" {
		kind = KindFile
	}
	if kind != KindFile && kind != KindDirectory {
		return nil, fmt.Errorf("%w: unknown source kind %q", ErrInvalidArgument, kind)
	}

	// The location is unknown until the content is registered again locally.
	now := s.clock.Now()
	created, err := s.database.CreateSourceContent(&sqlc.SourceContent{
		ID:        s.idgen.New(),
		Kind:      kind,
		Path:      doc.Source.Filename,
		Checksum:  doc.Source.Checksum,
		Size:      doc.Source.Size,
		MediaType: doc.Source.MediaType,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating source content: %w", err)
	}
	return created, nil
}

func (s *Service) importContract(doc *manifest.Document, source *sqlc.SourceContent, destination int64) (*sqlc.Contract, error) {
	// The manifest's layout wins over local settings, and the snapshot must
	// agree with it.
	snapshot := s.settings.snapshot()
	if doc.ChunkSize > 0 {
		snapshot.ChunkSize = doc.ChunkSize
	}
	contract, err := s.newContract(source, destination, Strategy(doc.Strategy), snapshot)
	if err != nil {
		return nil, err
	}

	got, created, err := s.database.FindOrCreateContract(contract, s.destinationTitle(destination))
	if err != nil {
		return nil, fmt.Errorf("obtaining contract: %w", err)
	}
	if !created && layoutOf(got.Strategy, got.ChunkSize) != layoutOf(contract.Strategy, contract.ChunkSize) {
		return nil, fmt.Errorf("%w: contract %s uses %s/%d, manifest uses %s/%d",
			ErrInvalidArgument, got.ID, got.Strategy, got.ChunkSize, doc.Strategy, doc.ChunkSize)
	}
	if created {
		s.logger.Info("contract created from manifest", "contract", got.ID, "destination", destination, "strategy", got.Strategy)
	}
	return got, nil
}
