package tt

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tt-go/internal/chunker"
	"tt-go/internal/database/sqlc"
	"tt-go/internal/throttle"
)

// Orchestrator executes plans: physical uploads of transport units and
// forward reconstructions from donor placements. Units of one contract are
// always handled one at a time in ascending sequence order.
type Orchestrator struct {
	database  Database
	transport Transport
	fsmgr     FilesystemManager
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	settings  Settings
}

func NewOrchestrator(database Database, transport Transport, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *Orchestrator {
	return &Orchestrator{
		database:  database,
		transport: transport,
		fsmgr:     fsmgr,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		settings:  settings,
	}
}

// run carries what one Upload or Forward call needs about its contract.
type run struct {
	contract *sqlc.Contract
	source   *sqlc.SourceContent
	plan     UnitPlan
	config   ContractConfig
	tape     *chunker.DirectoryTape
}

func (o *Orchestrator) prepare(contract *sqlc.Contract) (*run, error) {
	source, err := o.database.FindSourceContentByID(contract.SourceID)
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
	cfg, err := ParseContractConfig(contract)
	if err != nil {
		return nil, err
	}
	return &run{contract: contract, source: source, plan: plan, config: cfg}, nil
}

// directoryTape rebuilds the tape of a directory source on first use.
func (o *Orchestrator) directoryTape(r *run) (*chunker.DirectoryTape, error) {
	if r.tape != nil {
		return r.tape, nil
	}
	dir, err := o.fsmgr.Resolve(r.source.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o.orphan(r.contract)
		}
		return nil, notFound(err, "resolving %s", r.source.Path)
	}
	tape, _, err := directoryTape(o.fsmgr, dir)
	if err != nil {
		return nil, err
	}
	r.tape = tape
	return tape, nil
}

// Upload delivers every unit of contract that has no placement yet, creating
// the units first if needed. A failure aborts the run and leaves placed units
// in place; running Upload again resumes at the first unplaced unit.
func (o *Orchestrator) Upload(ctx context.Context, contract *sqlc.Contract) error {
	r, err := o.prepare(contract)
	if err != nil {
		return err
	}

	units, err := o.ensureUnits(r)
	if err != nil {
		return err
	}

	placed, err := o.placedUnits(contract.ID)
	if err != nil {
		return err
	}

	for _, u := range units {
		if placed[u.ID] {
			o.logger.Debug("unit already placed", "contract", contract.ID, "sequence", u.Sequence)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.deliver(ctx, r, u, len(units)); err != nil {
			return err
		}
	}

	if r.plan.Strategy() == StrategyChunked && r.source.Kind == KindFile {
		os.Remove(filepath.Join(o.settings.workDir(), contract.ID))
	}
	return o.finish(contract, len(units))
}

// ensureUnits returns the contract's units, registering the complete set in
// one transaction if there are none yet.
func (o *Orchestrator) ensureUnits(r *run) ([]*sqlc.Payload, error) {
	existing, err := o.database.FindPayloads(r.contract.ID)
	if err != nil {
		return nil, fmt.Errorf("finding units: %w", err)
	}
	expected := r.plan.ExpectedUnits(r.source.Size)
	if len(existing) > 0 {
		if len(existing) != expected {
			return nil, fmt.Errorf("%w: contract %s has %d units, expected %d", ErrIntegrityViolation, r.contract.ID, len(existing), expected)
		}
		return existing, nil
	}

	var payloads []*sqlc.Payload
	status := StatusSplit

	switch {
	case r.source.Kind == KindDirectory:
		payloads, err = o.measureVolumes(r)
	case r.plan.Strategy() == StrategySingle:
		payloads = []*sqlc.Payload{{TempPath: r.source.Path, Checksum: r.source.Checksum, Size: r.source.Size}}
		status = r.contract.Status
	default:
		payloads, err = o.splitChunks(r)
	}
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	for i, p := range payloads {
		p.ID = o.idgen.New()
		p.ContractID = r.contract.ID
		p.Sequence = int64(i)
		p.CreatedAt = now
	}

	created, err := o.database.CreatePayloads(r.contract.ID, payloads, status)
	if err != nil {
		return nil, fmt.Errorf("registering units: %w", err)
	}
	r.contract.Status = status
	o.logger.Info("units registered", "contract", r.contract.ID, "units", len(created), "strategy", r.contract.Strategy)
	return created, nil
}

func (o *Orchestrator) splitChunks(r *run) ([]*sqlc.Payload, error) {
	dir := filepath.Join(o.settings.workDir(), r.contract.ID)
	split, err := chunker.SplitFile(r.source.Path, dir, r.contract.ChunkSize)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			o.orphan(r.contract)
			return nil, fmt.Errorf("splitting %s: %w: %w", r.source.Path, ErrNotFound, err)
		case errors.Is(err, chunker.ErrNoSplitNeeded):
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		default:
			return nil, fmt.Errorf("splitting %s: %w", r.source.Path, err)
		}
	}
	if split.Checksum != r.source.Checksum {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s changed since it was registered", ErrIntegrityViolation, r.source.Path)
	}

	payloads := make([]*sqlc.Payload, len(split.Chunks))
	for i, c := range split.Chunks {
		payloads[i] = &sqlc.Payload{TempPath: c.Path, Checksum: c.Checksum, Size: c.Range.Size()}
	}
	o.logger.Debug("source split", "contract", r.contract.ID, "chunks", len(payloads), "dir", dir)
	return payloads, nil
}

func (o *Orchestrator) measureVolumes(r *run) ([]*sqlc.Payload, error) {
	tape, err := o.directoryTape(r)
	if err != nil {
		return nil, err
	}
	layout, err := chunker.MeasureTape(tape, r.plan.VolumeSize())
	if err != nil {
		return nil, fmt.Errorf("measuring %s: %w", r.source.Path, err)
	}
	if layout.Checksum != r.source.Checksum {
		return nil, fmt.Errorf("%w: %s changed since it was registered", ErrIntegrityViolation, r.source.Path)
	}

	payloads := make([]*sqlc.Payload, len(layout.Volumes))
	for i, v := range layout.Volumes {
		payloads[i] = &sqlc.Payload{TempPath: chunker.VirtualPath(v.Index), Checksum: v.Checksum, Size: v.Range.Size()}
		o.logger.Debug("volume layout", "contract", r.contract.ID, "volume", v.Index, "files", len(v.Files))
	}
	return payloads, nil
}

// deliver sends one unit and records its placement.
func (o *Orchestrator) deliver(ctx context.Context, r *run, u *sqlc.Payload, total int) error {
	src, closeUnit, err := o.openUnit(r, u)
	if err != nil {
		return err
	}
	defer closeUnit()

	name, caption := displayName(unitName(r.source, r.plan, int(u.Sequence), total), u.Checksum, r.config.MaxNameLength)
	h := sha256.New()
	body := io.TeeReader(throttle.NewReader(ctx, src, r.config.RateLimit), h)

	ref, err := o.transport.SendDocument(ctx, r.contract.DestinationID, body, u.Size, name, caption)
	if err != nil {
		return fmt.Errorf("sending unit %d of contract %s: %w: %w", u.Sequence, r.contract.ID, ErrTransportFailure, err)
	}

	if sum := hex.EncodeToString(h.Sum(nil)); sum != u.Checksum {
		if derr := o.transport.DeleteMessages(ctx, ref.DestinationID, []int64{ref.MessageID}); derr != nil {
			o.logger.Warn("deleting corrupt message failed", "destination", ref.DestinationID, "message", ref.MessageID, "error", derr)
		}
		return fmt.Errorf("%w: unit %d of contract %s was sent with hash %s, recorded %s",
			ErrIntegrityViolation, u.Sequence, r.contract.ID, sum, u.Checksum)
	}

	if err := o.recordPlacement(u, ref); err != nil {
		return err
	}
	o.logger.Info("unit placed", "contract", r.contract.ID, "sequence", u.Sequence,
		"destination", ref.DestinationID, "message", ref.MessageID, "name", name)

	if r.plan.Strategy() == StrategyChunked && !chunker.IsVirtualPath(u.TempPath) {
		if err := os.Remove(u.TempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			o.logger.Warn("removing chunk file failed", "path", u.TempPath, "error", err)
		} else {
			o.logger.Debug("chunk file reclaimed", "path", u.TempPath)
		}
	}
	return nil
}

// openUnit returns a reader over a unit's bytes, regenerating a missing
// chunk file from the source first.
func (o *Orchestrator) openUnit(r *run, u *sqlc.Payload) (io.Reader, func() error, error) {
	switch {
	case chunker.IsVirtualPath(u.TempPath):
		return o.openSourceRange(r, u.Sequence*r.plan.VolumeSize(), u.Size, int(u.Sequence))

	case r.plan.Strategy() == StrategySingle:
		return o.openSourceRange(r, 0, u.Size, 0)

	default:
		f, err := os.Open(u.TempPath)
		if errors.Is(err, fs.ErrNotExist) {
			if r.source.Kind == KindDirectory {
				rg, err := unitRange(r, u)
				if err != nil {
					return nil, nil, err
				}
				return o.openSourceRange(r, rg.Start, rg.Size(), int(u.Sequence))
			}
			if err := o.regenerate(r, u); err != nil {
				return nil, nil, err
			}
			f, err = os.Open(u.TempPath)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("opening chunk %d: %w", u.Sequence, err)
		}
		return f, f.Close, nil
	}
}

// openSourceRange streams size bytes of the content starting at start. The
// record's current kind decides where they come from: a directory is read
// through its tape, a file directly. Units keep working when the same bytes
// move from a directory to a tar file or back.
func (o *Orchestrator) openSourceRange(r *run, start, size int64, index int) (io.Reader, func() error, error) {
	if r.source.Kind == KindDirectory {
		tape, err := o.directoryTape(r)
		if err != nil {
			return nil, nil, err
		}
		vol := chunker.NewVolume(tape, start, size, r.source.Size, index)
		return vol, vol.Close, nil
	}

	f, err := os.Open(r.source.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o.orphan(r.contract)
		}
		return nil, nil, notFound(err, "opening %s", r.source.Path)
	}
	return io.NewSectionReader(f, start, size), f.Close, nil
}

func unitRange(r *run, u *sqlc.Payload) (chunker.Range, error) {
	ranges := r.plan.Ranges(r.source.Size)
	if u.Sequence < 0 || int(u.Sequence) >= len(ranges) {
		return chunker.Range{}, fmt.Errorf("%w: unit %d outside the %d ranges of contract %s", ErrIntegrityViolation, u.Sequence, len(ranges), r.contract.ID)
	}
	return ranges[u.Sequence], nil
}

// regenerate rebuilds a chunk file from its byte range of the source and
// checks it against the recorded hash.
func (o *Orchestrator) regenerate(r *run, u *sqlc.Payload) error {
	rg, err := unitRange(r, u)
	if err != nil {
		return err
	}

	checksum, err := chunker.ExtractRange(r.source.Path, u.TempPath, rg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o.orphan(r.contract)
			return fmt.Errorf("regenerating unit %d: %w: %w", u.Sequence, ErrNotFound, err)
		}
		return fmt.Errorf("regenerating unit %d: %w", u.Sequence, err)
	}
	if checksum != u.Checksum {
		os.Remove(u.TempPath)
		return fmt.Errorf("%w: regenerated unit %d of contract %s has hash %s, recorded %s",
			ErrIntegrityViolation, u.Sequence, r.contract.ID, checksum, u.Checksum)
	}
	o.logger.Info("unit regenerated", "contract", r.contract.ID, "sequence", u.Sequence, "path", u.TempPath)
	return nil
}

// Forward reconstructs contract at its destination by duplicating the donor
// placements, one per sequence. On any failure it falls back to Upload;
// uploaded reports that the bytes were sent again.
func (o *Orchestrator) Forward(ctx context.Context, contract *sqlc.Contract, donors []*sqlc.Placement) (uploaded bool, err error) {
	err = o.forward(ctx, contract, donors)
	if err == nil {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, err
	}
	o.logger.Warn("forward failed, falling back to physical upload", "contract", contract.ID, "error", err)
	return true, o.Upload(ctx, contract)
}

func (o *Orchestrator) forward(ctx context.Context, contract *sqlc.Contract, donors []*sqlc.Placement) error {
	r, err := o.prepare(contract)
	if err != nil {
		return err
	}
	expected := r.plan.ExpectedUnits(r.source.Size)

	ordered, err := orderDonors(contract, donors, expected)
	if err != nil {
		return err
	}

	units, err := o.cloneUnits(r, ordered)
	if err != nil {
		return err
	}

	placed, err := o.placedUnits(contract.ID)
	if err != nil {
		return err
	}

	// Consecutive unplaced units held by the same donor go in one call.
	for i := 0; i < len(units); {
		if placed[units[i].ID] {
			i++
			continue
		}
		from := ordered[i].DestinationID
		j := i
		ids := []int64{}
		for j < len(units) && !placed[units[j].ID] && ordered[j].DestinationID == from {
			ids = append(ids, ordered[j].MessageID)
			j++
		}

		refs, err := o.transport.ForwardMessages(ctx, contract.DestinationID, from, ids)
		if err != nil {
			return fmt.Errorf("forwarding units %d-%d of contract %s: %w: %w", i, j-1, contract.ID, ErrTransportFailure, err)
		}
		if len(refs) != len(ids) {
			return fmt.Errorf("%w: forwarded %d messages, got %d back", ErrTransportFailure, len(ids), len(refs))
		}

		for k, ref := range refs {
			u := units[i+k]
			if ref == nil || ref.FileSize != u.Size {
				return fmt.Errorf("%w: forwarded unit %d does not match its size", ErrIntegrityViolation, u.Sequence)
			}
			if err := o.recordPlacement(u, ref); err != nil {
				return err
			}
		}
		o.logger.Info("units forwarded", "contract", contract.ID, "from", from, "to", contract.DestinationID, "first", i, "count", len(ids))
		i = j
	}

	return o.finish(contract, len(units))
}

// orderDonors checks that donors cover sequences 0..expected-1 under the
// contract's layout and returns them ordered by sequence.
func orderDonors(contract *sqlc.Contract, donors []*sqlc.Placement, expected int) ([]*sqlc.Placement, error) {
	want := layoutOf(contract.Strategy, contract.ChunkSize)
	ordered := make([]*sqlc.Placement, expected)
	for _, d := range donors {
		if layoutOf(d.Strategy, d.ChunkSize) != want {
			return nil, fmt.Errorf("%w: donor %s uses %s/%d, contract uses %s/%d",
				ErrInvalidArgument, d.ID, d.Strategy, d.ChunkSize, contract.Strategy, contract.ChunkSize)
		}
		if d.Sequence < 0 || int(d.Sequence) >= expected {
			return nil, fmt.Errorf("%w: donor sequence %d outside 0..%d", ErrInvalidArgument, d.Sequence, expected-1)
		}
		if ordered[d.Sequence] == nil {
			ordered[d.Sequence] = d
		}
	}
	for i, d := range ordered {
		if d == nil {
			return nil, fmt.Errorf("%w: no donor for unit %d", ErrInvalidArgument, i)
		}
	}
	return ordered, nil
}

// cloneUnits returns the contract's units, registering them from the donor
// units if none exist yet.
func (o *Orchestrator) cloneUnits(r *run, donors []*sqlc.Placement) ([]*sqlc.Payload, error) {
	units, err := o.database.FindPayloads(r.contract.ID)
	if err != nil {
		return nil, fmt.Errorf("finding units: %w", err)
	}

	if len(units) > 0 {
		if len(units) != len(donors) {
			return nil, fmt.Errorf("%w: contract %s has %d units, donors have %d", ErrIntegrityViolation, r.contract.ID, len(units), len(donors))
		}
		for i, u := range units {
			if u.Checksum != donors[i].UnitChecksum {
				return nil, fmt.Errorf("%w: unit %d differs from its donor", ErrIntegrityViolation, i)
			}
		}
		return units, nil
	}

	now := o.clock.Now()
	payloads := make([]*sqlc.Payload, len(donors))
	for i, d := range donors {
		payloads[i] = &sqlc.Payload{
			ID:         o.idgen.New(),
			ContractID: r.contract.ID,
			Sequence:   int64(i),
			TempPath:   o.plannedPath(r, i, len(donors)),
			Checksum:   d.UnitChecksum,
			Size:       d.UnitSize,
			CreatedAt:  now,
		}
	}

	status := StatusSplit
	if r.plan.Strategy() == StrategySingle && r.source.Kind == KindFile {
		status = r.contract.Status
	}
	created, err := o.database.CreatePayloads(r.contract.ID, payloads, status)
	if err != nil {
		return nil, fmt.Errorf("registering units: %w", err)
	}
	r.contract.Status = status
	return created, nil
}

// plannedPath is where a unit's bytes live or would be regenerated to.
func (o *Orchestrator) plannedPath(r *run, sequence, total int) string {
	switch {
	case r.source.Kind == KindDirectory:
		return chunker.VirtualPath(sequence)
	case r.plan.Strategy() == StrategySingle:
		return r.source.Path
	default:
		name := chunker.ChunkName(filepath.Base(r.source.Path), sequence+1, total)
		return filepath.Join(o.settings.workDir(), r.contract.ID, name)
	}
}

func (o *Orchestrator) placedUnits(contractID string) (map[string]bool, error) {
	placements, err := o.database.FindPlacements(contractID)
	if err != nil {
		return nil, fmt.Errorf("finding placements: %w", err)
	}
	placed := make(map[string]bool, len(placements))
	for _, p := range placements {
		placed[p.PayloadID] = true
	}
	return placed, nil
}

func (o *Orchestrator) recordPlacement(u *sqlc.Payload, ref *RemoteRef) error {
	meta, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encoding message metadata: %w", err)
	}

	now := o.clock.Now()
	placement := &sqlc.RemotePayload{
		ID:            o.idgen.New(),
		PayloadID:     u.ID,
		DestinationID: ref.DestinationID,
		MessageID:     ref.MessageID,
		FileName:      ref.FileName,
		Link:          ref.Link,
		Metadata:      string(meta),
		CreatedAt:     now,
	}

	title := ref.DestinationTitle
	if title == "" {
		title = o.settings.Destinations[ref.DestinationID]
	}
	destination := &sqlc.Destination{ID: ref.DestinationID, Title: title, UpdatedAt: now}

	var actor *sqlc.Actor
	if ref.SenderID != 0 {
		actor = &sqlc.Actor{ID: ref.SenderID, Name: ref.SenderName, UpdatedAt: now}
		placement.ActorID = sql.NullInt64{Int64: ref.SenderID, Valid: true}
	}

	if err := o.database.CreatePlacement(placement, destination, actor); err != nil {
		return fmt.Errorf("recording placement of unit %d: %w", u.Sequence, err)
	}
	return nil
}

// finish marks contract uploaded once every unit is placed.
func (o *Orchestrator) finish(contract *sqlc.Contract, total int) error {
	placements, err := o.database.FindPlacements(contract.ID)
	if err != nil {
		return fmt.Errorf("finding placements: %w", err)
	}
	if len(placements) != total {
		return fmt.Errorf("contract %s has %d of %d units placed", contract.ID, len(placements), total)
	}
	if contract.Status == StatusUploaded {
		return nil
	}
	if err := o.database.UpdateContractStatus(contract.ID, StatusUploaded); err != nil {
		return fmt.Errorf("marking contract uploaded: %w", err)
	}
	contract.Status = StatusUploaded
	o.logger.Info("contract uploaded", "contract", contract.ID, "units", total, "destination", contract.DestinationID)
	return nil
}

func (o *Orchestrator) orphan(contract *sqlc.Contract) {
	if err := o.database.UpdateContractStatus(contract.ID, StatusOrphaned); err != nil {
		o.logger.Error("marking contract orphaned failed", "contract", contract.ID, "error", err)
		return
	}
	contract.Status = StatusOrphaned
	o.logger.Warn("source gone, contract orphaned", "contract", contract.ID)
}
