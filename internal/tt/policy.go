package tt

import "fmt"

// Policy is the user's stance on content that already exists elsewhere.
type Policy string

const (
	// PolicyStrict never re-sends content that exists anywhere in the ecosystem.
	PolicyStrict Policy = "strict"
	// PolicyForce always uploads unless the target already holds the content.
	PolicyForce Policy = "force"
	// PolicySmart asks the caller whenever a choice exists.
	PolicySmart Policy = "smart"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyStrict, PolicyForce, PolicySmart:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidArgument, s)
	}
}

// Action is what a plan tells the orchestrator to do.
type Action int

const (
	ActionSkip Action = iota
	ActionPhysicalUpload
	ActionAskUser
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionPhysicalUpload:
		return "upload"
	case ActionAskUser:
		return "ask"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Plan is the outcome of Decide.
type Plan struct {
	Action           Action
	AlreadyFulfilled bool
	State            State
}

// Decide maps an availability state and a policy to a plan. It performs no
// I/O and is defined for every State and Policy; anything else is a
// programming error reported as ErrPolicyViolation.
func Decide(state State, policy Policy) (Plan, error) {
	switch policy {
	case PolicyStrict, PolicyForce, PolicySmart:
	default:
		return Plan{}, fmt.Errorf("%w: policy %q", ErrPolicyViolation, policy)
	}

	plan := Plan{State: state}
	switch state {
	case StateSystemNew:
		plan.Action = ActionPhysicalUpload
	case StateFulfilled:
		plan.Action = ActionSkip
		plan.AlreadyFulfilled = true
	case StateRemoteMirror, StateRemotePuzzle:
		switch policy {
		case PolicyStrict:
			plan.Action = ActionSkip
		case PolicyForce:
			plan.Action = ActionPhysicalUpload
		default:
			plan.Action = ActionAskUser
		}
	case StateRemoteRestricted:
		if policy == PolicyForce {
			plan.Action = ActionPhysicalUpload
		} else {
			plan.Action = ActionAskUser
		}
	default:
		return Plan{}, fmt.Errorf("%w: state %q", ErrPolicyViolation, state)
	}
	return plan, nil
}
