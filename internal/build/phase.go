package build

import "fmt"

// A point in the build pipeline's fixed progression.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseBaseSelected
	PhasePayloadStaged
	PhaseWorkdirSet
	PhaseDependenciesInstalled
	PhaseAborted
)

// Returns the phase name used in logs and diagnostics.
func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseBaseSelected:
		return "base-selected"
	case PhasePayloadStaged:
		return "payload-staged"
	case PhaseWorkdirSet:
		return "workdir-set"
	case PhaseDependenciesInstalled:
		return "dependencies-installed"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reports whether the phase is terminal.
func (p Phase) Terminal() bool {
	return p == PhaseDependenciesInstalled || p == PhaseAborted
}

// Tracks the pipeline's progression through its phases.
//
// Phases commit strictly in order. A failed phase moves the tracker to
// [PhaseAborted], after which no further transition is allowed: the caller
// must fix the input and start a fresh build.
type progress struct {
	phase Phase
}

// Commits the transition to the next phase.
//
// The only legal commit is to the immediate successor of the current phase;
// anything else indicates a pipeline bug.
func (pr *progress) commit(next Phase) error {
	if pr.phase == PhaseAborted {
		return fmt.Errorf("build already aborted")
	}
	if next != pr.phase+1 || next == PhaseAborted {
		return fmt.Errorf("illegal phase transition %s -> %s", pr.phase, next)
	}
	pr.phase = next
	return nil
}

// Moves the tracker to the aborted state, annotating the error with the
// phase whose work failed (the uncommitted successor of the last committed
// phase).
func (pr *progress) abort(err error) error {
	failed := pr.phase + 1
	pr.phase = PhaseAborted
	return fmt.Errorf("%w: phase %s: %w", ErrBuild, failed, err)
}

// Reports whether every phase committed.
func (pr *progress) complete() bool {
	return pr.phase == PhaseDependenciesInstalled
}
