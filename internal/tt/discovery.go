package tt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/ratelimit"

	"tt-go/internal/database/sqlc"
)

// State classifies where a contract's content is currently available.
type State string

const (
	StateSystemNew        State = "system-new"
	StateFulfilled        State = "fulfilled"
	StateRemoteMirror     State = "remote-mirror"
	StateRemotePuzzle     State = "remote-puzzle"
	StateRemoteRestricted State = "remote-restricted"
)

// States lists every availability state.
var States = []State{StateSystemNew, StateFulfilled, StateRemoteMirror, StateRemotePuzzle, StateRemoteRestricted}

// validationBatch is the number of messages looked up per transport call.
const validationBatch = 100

const defaultValidationTTL = 30 * time.Second

// Availability is the result of Discover.
type Availability struct {
	State State

	// Placements justify the state: the target's set when fulfilled, the donor
	// set for a mirror, one placement per sequence for a puzzle. Ordered by
	// sequence.
	Placements []*sqlc.Placement

	// Donors are the destinations holding Placements, for mirror and puzzle.
	Donors []int64

	// Stale are recorded placements at the target destination that failed
	// live re-validation.
	Stale []*sqlc.Placement
}

// Discovery classifies the availability of a contract's content from the
// identity store, confirming candidate placements against the live transport.
type Discovery struct {
	database  Database
	transport Transport
	logger    Logger
	limiter   ratelimit.Limiter
	verdicts  *cache.Cache
}

// NewDiscovery creates a Discovery. callsPerSecond paces live re-validation
// calls (0 disables pacing); ttl is how long a message verdict is reused.
func NewDiscovery(database Database, transport Transport, logger Logger, callsPerSecond int, ttl time.Duration) *Discovery {
	limiter := ratelimit.NewUnlimited()
	if callsPerSecond > 0 {
		limiter = ratelimit.New(callsPerSecond)
	}
	if ttl <= 0 {
		ttl = defaultValidationTTL
	}
	return &Discovery{
		database:  database,
		transport: transport,
		logger:    logger,
		limiter:   limiter,
		verdicts:  cache.New(ttl, 2*ttl),
	}
}

// placementGroup is the placement set of one contract.
type placementGroup struct {
	contractID  string
	destination int64
	layout      layoutKey
	expected    int
	placements  []*sqlc.Placement
}

func (g *placementGroup) complete() bool {
	return len(g.placements) == g.expected
}

// Discover classifies the availability of contract's content. Transport
// errors during re-validation count as unavailability and are never returned.
func (d *Discovery) Discover(ctx context.Context, contract *sqlc.Contract) (*Availability, error) {
	source, err := d.database.FindSourceContentByID(contract.SourceID)
	if err != nil {
		return nil, fmt.Errorf("finding source: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source %s of contract %s", ErrNotFound, contract.SourceID, contract.ID)
	}

	all, err := d.database.FindPlacementsBySource(source.ID)
	if err != nil {
		return nil, fmt.Errorf("finding placements: %w", err)
	}
	if len(all) == 0 {
		return &Availability{State: StateSystemNew}, nil
	}

	target, others, err := groupPlacements(contract, source.Size, all)
	if err != nil {
		return nil, err
	}

	result := &Availability{}
	sawComplete := false
	anyValid := false

	// (1) The requested destination.
	if target != nil {
		valid, stale := d.revalidate(ctx, target.placements)
		anyValid = anyValid || len(valid) > 0
		result.Stale = stale
		if target.complete() {
			if len(stale) == 0 {
				result.State = StateFulfilled
				result.Placements = target.placements
				return result, nil
			}
			sawComplete = true
			d.logger.Warn("placements at target failed re-validation",
				"contract", contract.ID, "destination", contract.DestinationID, "stale", len(stale))
		}
	}

	// (2) Other destinations: a complete valid set is a mirror, otherwise pool
	// valid pieces per layout for a puzzle.
	pools := map[layoutKey]*puzzlePool{}
	for _, g := range others {
		valid, stale := d.revalidate(ctx, g.placements)
		anyValid = anyValid || len(valid) > 0

		if g.complete() {
			sawComplete = true
			if len(stale) == 0 {
				result.State = StateRemoteMirror
				result.Placements = g.placements
				result.Donors = []int64{g.destination}
				return result, nil
			}
		}

		pool := pools[g.layout]
		if pool == nil {
			pool = newPuzzlePool(g.expected)
			pools[g.layout] = pool
		}
		pool.add(valid)
	}

	for _, g := range others {
		pool := pools[g.layout]
		if pool != nil && pool.complete() && len(pool.destinations()) > 1 {
			result.State = StateRemotePuzzle
			result.Placements = pool.ordered()
			result.Donors = pool.destinations()
			return result, nil
		}
	}

	// (3) Records exist but nothing usable confirmed.
	if sawComplete || !anyValid {
		result.State = StateRemoteRestricted
		return result, nil
	}

	// (4) Only partial pieces: start over.
	result.State = StateSystemNew
	return result, nil
}

// groupPlacements splits placements into the target contract's group and
// the groups of other contracts ordered by destination.
func groupPlacements(contract *sqlc.Contract, size int64, all []*sqlc.Placement) (*placementGroup, []*placementGroup, error) {
	byContract := map[string]*placementGroup{}
	var order []*placementGroup

	for _, p := range all {
		g := byContract[p.ContractID]
		if g == nil {
			plan, err := NewUnitPlan(p.Strategy, p.ChunkSize)
			if err != nil {
				return nil, nil, fmt.Errorf("placement %s: %w", p.ID, err)
			}
			g = &placementGroup{
				contractID:  p.ContractID,
				destination: p.DestinationID,
				layout:      layoutOf(p.Strategy, p.ChunkSize),
				expected:    plan.ExpectedUnits(size),
			}
			byContract[p.ContractID] = g
			order = append(order, g)
		}
		g.placements = append(g.placements, p)
	}

	var target *placementGroup
	var others []*placementGroup
	for _, g := range order {
		sort.Slice(g.placements, func(i, j int) bool {
			return g.placements[i].Sequence < g.placements[j].Sequence
		})
		if g.contractID == contract.ID {
			target = g
			continue
		}
		others = append(others, g)
	}
	sort.SliceStable(others, func(i, j int) bool {
		return others[i].destination < others[j].destination
	})
	return target, others, nil
}

// puzzlePool collects one valid placement per sequence across destinations.
type puzzlePool struct {
	expected int
	pieces   map[int64]*sqlc.Placement
}

func newPuzzlePool(expected int) *puzzlePool {
	return &puzzlePool{expected: expected, pieces: map[int64]*sqlc.Placement{}}
}

func (p *puzzlePool) add(placements []*sqlc.Placement) {
	for _, pl := range placements {
		if _, ok := p.pieces[pl.Sequence]; !ok {
			p.pieces[pl.Sequence] = pl
		}
	}
}

func (p *puzzlePool) complete() bool {
	if len(p.pieces) != p.expected {
		return false
	}
	for i := 0; i < p.expected; i++ {
		if _, ok := p.pieces[int64(i)]; !ok {
			return false
		}
	}
	return true
}

func (p *puzzlePool) ordered() []*sqlc.Placement {
	out := make([]*sqlc.Placement, 0, len(p.pieces))
	for i := 0; i < p.expected; i++ {
		out = append(out, p.pieces[int64(i)])
	}
	return out
}

func (p *puzzlePool) destinations() []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, pl := range p.ordered() {
		if pl != nil && !seen[pl.DestinationID] {
			seen[pl.DestinationID] = true
			out = append(out, pl.DestinationID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// revalidate confirms placements against the live transport, one paced call
// per destination batch. A placement is valid if its message still exists
// with the unit's size.
func (d *Discovery) revalidate(ctx context.Context, placements []*sqlc.Placement) (valid, stale []*sqlc.Placement) {
	sizes := map[string]int64{}

	var pending []*sqlc.Placement
	for _, p := range placements {
		if size, ok := d.verdicts.Get(verdictKey(p.DestinationID, p.MessageID)); ok {
			sizes[p.ID] = size.(int64)
			continue
		}
		pending = append(pending, p)
	}

	for start := 0; start < len(pending); {
		dest := pending[start].DestinationID
		end := start
		for end < len(pending) && end-start < validationBatch && pending[end].DestinationID == dest {
			end++
		}
		batch := pending[start:end]
		start = end

		ids := make([]int64, len(batch))
		for i, p := range batch {
			ids[i] = p.MessageID
		}

		d.limiter.Take()
		refs, err := d.transport.GetMessages(ctx, dest, ids)
		if err == nil && len(refs) != len(ids) {
			err = fmt.Errorf("asked for %d messages, got %d answers", len(ids), len(refs))
		}
		if err != nil {
			d.logger.Warn("re-validation failed, treating messages as unavailable",
				"transport", d.transport.Name(), "destination", dest, "messages", len(ids), "error", err)
			for _, p := range batch {
				sizes[p.ID] = -1
			}
			continue
		}

		for i, p := range batch {
			size := int64(-1)
			if refs[i] != nil {
				size = refs[i].FileSize
			}
			sizes[p.ID] = size
			d.verdicts.Set(verdictKey(p.DestinationID, p.MessageID), size, cache.DefaultExpiration)
		}
	}

	for _, p := range placements {
		if sizes[p.ID] == p.UnitSize {
			valid = append(valid, p)
		} else {
			stale = append(stale, p)
		}
	}
	return valid, stale
}

// Forget drops cached verdicts for a destination's messages.
func (d *Discovery) Forget(destination int64, messageIDs []int64) {
	for _, id := range messageIDs {
		d.verdicts.Delete(verdictKey(destination, id))
	}
}

func verdictKey(destination, messageID int64) string {
	return fmt.Sprintf("%d/%d", destination, messageID)
}
