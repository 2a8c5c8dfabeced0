package tt

import (
	"context"
	"fmt"

	"tt-go/internal/database/sqlc"
)

// Decision is the caller's answer to an AskUser plan.
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionForward
	DecisionUpload
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionForward:
		return "forward"
	case DecisionUpload:
		return "upload"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// AskFunc resolves an AskUser plan. It receives the discovery result that
// led to the question.
type AskFunc func(ctx context.Context, contract *sqlc.Contract, availability *Availability) (Decision, error)

// TransferResult reports what Transfer did.
type TransferResult struct {
	Source       *sqlc.SourceContent
	Contract     *sqlc.Contract
	Availability *Availability
	Plan         Plan

	// Outcome is what was carried out: "skipped", "fulfilled", "uploaded"
	// or "forwarded". A forward that fell back to sending bytes is "uploaded".
	Outcome string
}

const (
	OutcomeSkipped   = "skipped"
	OutcomeFulfilled = "fulfilled"
	OutcomeUploaded  = "uploaded"
	OutcomeForwarded = "forwarded"
)

// Transfer runs the whole lifecycle for the file or directory at rawPath:
// register, obtain the contract, discover, decide and execute. ask resolves
// AskUser plans; a nil ask answers Skip.
func (s *Service) Transfer(ctx context.Context, rawPath string, destination int64, policy Policy, ask AskFunc) (*TransferResult, error) {
	path, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, notFound(err, "resolving %s", rawPath)
	}

	var source *sqlc.SourceContent
	if path.IsDir() {
		source, err = s.RegisterDirectory(path)
	} else {
		source, err = s.RegisterSource(path)
	}
	if err != nil {
		return nil, err
	}

	contract, err := s.ObtainContract(source, destination)
	if err != nil {
		return nil, err
	}

	availability, err := s.discovery.Discover(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("discovering %s: %w", source.Checksum, err)
	}

	plan, err := Decide(availability.State, policy)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transfer planned", "contract", contract.ID, "state", availability.State,
		"policy", policy, "action", plan.Action)

	result := &TransferResult{Source: source, Contract: contract, Availability: availability, Plan: plan}

	switch plan.Action {
	case ActionSkip:
		if plan.AlreadyFulfilled {
			if contract.Status != StatusUploaded {
				if err := s.database.UpdateContractStatus(contract.ID, StatusUploaded); err != nil {
					return nil, fmt.Errorf("marking contract uploaded: %w", err)
				}
				contract.Status = StatusUploaded
			}
			result.Outcome = OutcomeFulfilled
			return result, nil
		}
		result.Outcome = OutcomeSkipped
		return result, nil

	case ActionPhysicalUpload:
		if err := s.upload(ctx, contract, availability); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeUploaded
		return result, nil

	case ActionAskUser:
		decision := DecisionSkip
		if ask != nil {
			decision, err = ask(ctx, contract, availability)
			if err != nil {
				return nil, err
			}
		}
		s.logger.Info("transfer decided", "contract", contract.ID, "decision", decision)

		switch decision {
		case DecisionSkip:
			result.Outcome = OutcomeSkipped
		case DecisionUpload:
			if err := s.upload(ctx, contract, availability); err != nil {
				return nil, err
			}
			result.Outcome = OutcomeUploaded
		case DecisionForward:
			if availability.State != StateRemoteMirror && availability.State != StateRemotePuzzle {
				return nil, fmt.Errorf("%w: nothing to forward from in state %s", ErrInvalidArgument, availability.State)
			}
			uploaded, err := s.orchestrator.Forward(ctx, contract, availability.Placements)
			if err != nil {
				return nil, err
			}
			result.Outcome = OutcomeForwarded
			if uploaded {
				result.Outcome = OutcomeUploaded
			}
		default:
			return nil, fmt.Errorf("%w: unknown decision %d", ErrInvalidArgument, int(decision))
		}
		return result, nil

	default:
		return nil, fmt.Errorf("%w: action %s", ErrPolicyViolation, plan.Action)
	}
}

// upload drops target placements that failed re-validation, then runs a
// physical upload so those units are sent again.
func (s *Service) upload(ctx context.Context, contract *sqlc.Contract, availability *Availability) error {
	if len(availability.Stale) > 0 {
		ids := make([]string, len(availability.Stale))
		messages := make([]int64, len(availability.Stale))
		for i, p := range availability.Stale {
			ids[i] = p.ID
			messages[i] = p.MessageID
		}
		if err := s.database.DeletePlacements(ids); err != nil {
			return fmt.Errorf("dropping stale placements: %w", err)
		}
		s.discovery.Forget(contract.DestinationID, messages)
		s.logger.Warn("stale placements dropped", "contract", contract.ID, "count", len(ids))
	}
	return s.orchestrator.Upload(ctx, contract)
}
