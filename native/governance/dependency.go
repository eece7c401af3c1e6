package governance

import "fmt"

// resolveDependencies checks every predecessor id declared in a proposal's
// payload against the Store, per spec.md §4.7: a success terminal state
// passes, any other terminal state is a permanent failure
// (DependentProposalNotSucceeded), and any non-terminal state is retryable
// (DependentProposalNotReady). Mirrors the dependency-gating rule; force
// execution does not bypass it (spec.md §4.5).
func resolveDependencies(store Store, dependsOn []Index) error {
	for _, depID := range dependsOn {
		dep, err := store.GetProposal(depID)
		if err != nil {
			return fmt.Errorf("governance: resolve dependency %d: %w", depID, err)
		}
		switch dep.State.Kind {
		case StateSucceeded, StateForceExecutionSucceeded:
			continue
		default:
			if dep.State.IsTerminal() {
				return fmt.Errorf("governance: dependency %d in state %s: %w", depID, dep.State.Kind, ErrDependentProposalNotSucceeded)
			}
			return fmt.Errorf("governance: dependency %d in state %s: %w", depID, dep.State.Kind, ErrDependentProposalNotReady)
		}
	}
	return nil
}
