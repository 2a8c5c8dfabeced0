package tt

import (
	"fmt"

	"tt-go/internal/chunker"
	"tt-go/internal/database/sqlc"
)

// Strategy is how a contract maps content onto transport units.
type Strategy string

const (
	StrategySingle  Strategy = "single"
	StrategyChunked Strategy = "chunked"
)

// Contract statuses.
const (
	StatusPending  = "pending"
	StatusSplit    = "split"
	StatusUploaded = "uploaded"
	StatusOrphaned = "orphaned"
)

// Source content kinds.
const (
	KindFile      = "file"
	KindDirectory = "directory"
)

// ParseStrategy validates a stored or user-supplied strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySingle, StrategyChunked:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidArgument, s)
	}
}

// ChooseStrategy decides the strategy for content of size under ceiling.
func ChooseStrategy(size, ceiling int64) Strategy {
	if ceiling <= 0 || size <= ceiling {
		return StrategySingle
	}
	return StrategyChunked
}

// UnitPlan describes the unit layout a strategy produces for content of a
// given size.
type UnitPlan interface {
	Strategy() Strategy
	ExpectedUnits(size int64) int
	Ranges(size int64) []chunker.Range
	// VolumeSize is the unit size used when streaming a tape, 0 for one volume.
	VolumeSize() int64
}

type singleUnitPlan struct{}

func (singleUnitPlan) Strategy() Strategy      { return StrategySingle }
func (singleUnitPlan) ExpectedUnits(int64) int { return 1 }
func (singleUnitPlan) VolumeSize() int64       { return 0 }

func (singleUnitPlan) Ranges(size int64) []chunker.Range {
	return []chunker.Range{{Start: 0, End: size}}
}

type chunkedUnitPlan struct {
	chunkSize int64
}

func (p chunkedUnitPlan) Strategy() Strategy { return StrategyChunked }
func (p chunkedUnitPlan) VolumeSize() int64  { return p.chunkSize }

func (p chunkedUnitPlan) ExpectedUnits(size int64) int {
	return chunker.CountRanges(size, p.chunkSize)
}

func (p chunkedUnitPlan) Ranges(size int64) []chunker.Range {
	return chunker.SplitRanges(size, p.chunkSize)
}

// NewUnitPlan returns the plan for a strategy and chunk size.
func NewUnitPlan(strategy string, chunkSize int64) (UnitPlan, error) {
	s, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	if s == StrategySingle {
		return singleUnitPlan{}, nil
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunked strategy needs a positive chunk size, got %d", ErrInvalidArgument, chunkSize)
	}
	return chunkedUnitPlan{chunkSize: chunkSize}, nil
}

// UnitPlanFor returns the plan recorded in a contract.
func UnitPlanFor(c *sqlc.Contract) (UnitPlan, error) {
	return NewUnitPlan(c.Strategy, c.ChunkSize)
}

// layoutKey identifies placements that are interchangeable unit for unit.
type layoutKey struct {
	strategy  string
	chunkSize int64
}

func layoutOf(strategy string, chunkSize int64) layoutKey {
	if Strategy(strategy) == StrategySingle {
		return layoutKey{strategy: strategy}
	}
	return layoutKey{strategy: strategy, chunkSize: chunkSize}
}
