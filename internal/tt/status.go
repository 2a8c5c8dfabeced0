package tt

import (
	"context"
	"fmt"

	"tt-go/internal/chunker"
	"tt-go/internal/database/sqlc"
)

// ContentStatus is a read-only report on one piece of content and its
// contract with a destination.
type ContentStatus struct {
	Path     string
	Kind     string
	Checksum string
	Size     int64

	// Known reports whether the content is in the identity store.
	Known bool
	// Contract is nil when no contract exists for the destination yet.
	Contract *sqlc.Contract
	Expected int
	Placed   int
	State    State
}

// Status reports on the file or directory at rawPath without writing to the
// identity store.
func (s *Service) Status(ctx context.Context, rawPath string, destination int64) (*ContentStatus, error) {
	path, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, notFound(err, "resolving %s", rawPath)
	}

	status := &ContentStatus{Path: path.String(), Kind: KindFile}
	if path.IsDir() {
		status.Kind = KindDirectory
		tape, _, err := directoryTape(s.fsmgr, path)
		if err != nil {
			return nil, err
		}
		layout, err := chunker.MeasureTape(tape, 0)
		if err != nil {
			return nil, fmt.Errorf("measuring %s: %w", path.String(), err)
		}
		status.Checksum, status.Size = layout.Checksum, layout.Size
	} else {
		cached, info, err := s.lookupByPath(path)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			status.Checksum, status.Size = cached.Checksum, cached.Size
		} else {
			if status.Checksum, err = s.hashFile(path); err != nil {
				return nil, err
			}
			status.Size = info.Size()
		}
	}

	source, err := s.database.FindSourceContentByChecksum(status.Checksum)
	if err != nil {
		return nil, fmt.Errorf("finding source by checksum: %w", err)
	}
	if source == nil {
		status.State = StateSystemNew
		status.Expected = ChooseExpected(status.Size, s.settings.Ceiling())
		return status, nil
	}
	status.Known = true

	contract, err := s.database.FindContract(source.ID, destination)
	if err != nil {
		return nil, fmt.Errorf("finding contract: %w", err)
	}
	probe := contract
	if probe == nil {
		// Discovery only needs the pair and layout, nothing is saved.
		snapshot := s.settings.snapshot()
		if probe, err = s.newContract(source, destination, ChooseStrategy(source.Size, snapshot.ChunkSize), snapshot); err != nil {
			return nil, err
		}
	} else {
		status.Contract = contract
		placements, err := s.database.FindPlacements(contract.ID)
		if err != nil {
			return nil, fmt.Errorf("finding placements: %w", err)
		}
		status.Placed = len(placements)
	}

	plan, err := UnitPlanFor(probe)
	if err != nil {
		return nil, err
	}
	status.Expected = plan.ExpectedUnits(source.Size)

	availability, err := s.discovery.Discover(ctx, probe)
	if err != nil {
		return nil, err
	}
	status.State = availability.State
	return status, nil
}

// ChooseExpected returns the number of units content of size would need
// under ceiling.
func ChooseExpected(size, ceiling int64) int {
	if ChooseStrategy(size, ceiling) == StrategySingle {
		return 1
	}
	return chunker.CountRanges(size, ceiling)
}

// ContractSummary is one line of the contract listing.
type ContractSummary struct {
	Contract *sqlc.Contract
	Source   *sqlc.SourceContent
	Expected int
	Placed   int
}

// ListContracts returns the most recent contracts with their progress.
func (s *Service) ListContracts(limit int) ([]*ContractSummary, error) {
	contracts, err := s.database.ListContracts(limit)
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}

	out := make([]*ContractSummary, 0, len(contracts))
	for _, c := range contracts {
		source, err := s.database.FindSourceContentByID(c.SourceID)
		if err != nil {
			return nil, fmt.Errorf("finding source: %w", err)
		}
		if source == nil {
			return nil, fmt.Errorf("%w: source %s of contract %s", ErrNotFound, c.SourceID, c.ID)
		}
		plan, err := UnitPlanFor(c)
		if err != nil {
			return nil, err
		}
		placements, err := s.database.FindPlacements(c.ID)
		if err != nil {
			return nil, fmt.Errorf("finding placements: %w", err)
		}
		out = append(out, &ContractSummary{
			Contract: c,
			Source:   source,
			Expected: plan.ExpectedUnits(source.Size),
			Placed:   len(placements),
		})
	}
	return out, nil
}

// GetHistory returns the most recent operations.
func (s *Service) GetHistory(limit int) ([]*sqlc.Operation, error) {
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
