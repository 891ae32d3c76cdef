package validation

import "github.com/savegress/vaxguard/pkg/models"

// Result is the tri-state outcome of a single condition or requirement check.
// The third state exists so "definitely fails" is never conflated with
// "cannot be determined".
type Result int

const (
	// Satisfied means the condition is definitely met.
	Satisfied Result = iota
	// NotSatisfied means the condition is definitely not met.
	NotSatisfied
	// Undetermined means the condition cannot be evaluated (missing data,
	// unparsable condition text, unexpected evaluator failure).
	Undetermined
)

func (r Result) String() string {
	switch r {
	case Satisfied:
		return "SATISFIED"
	case NotSatisfied:
		return "NOT_SATISFIED"
	case Undetermined:
		return "UNDETERMINED"
	default:
		return "UNDETERMINED"
	}
}

// ToBoolean collapses the tri-state for legacy boolean callers.
// treatUndeterminedAs decides how UNDETERMINED maps. Internal decision
// logic must keep the Result value and never go through this.
func (r Result) ToBoolean(treatUndeterminedAs bool) bool {
	switch r {
	case Satisfied:
		return true
	case NotSatisfied:
		return false
	default:
		return treatUndeterminedAs
	}
}

// And combines results with AND logic. The empty combination is Satisfied.
//
// Uncertainty dominates failure: if any input is Undetermined the result is
// Undetermined even when another input is NotSatisfied, so the system never
// claims non-compliance for a fact it could not actually check. Otherwise
// any NotSatisfied input makes the result NotSatisfied.
func And(results ...Result) Result {
	hasNotSatisfied := false
	for _, r := range results {
		if r == Undetermined {
			return Undetermined
		}
		if r == NotSatisfied {
			hasNotSatisfied = true
		}
	}
	if hasNotSatisfied {
		return NotSatisfied
	}
	return Satisfied
}

// Or combines results with OR logic. The empty combination is NotSatisfied.
// The first Satisfied input wins; otherwise any Undetermined input makes the
// result Undetermined.
func Or(results ...Result) Result {
	hasUndetermined := false
	for _, r := range results {
		if r == Satisfied {
			return Satisfied
		}
		if r == Undetermined {
			hasUndetermined = true
		}
	}
	if hasUndetermined {
		return Undetermined
	}
	return NotSatisfied
}

// StatusFor maps a batch of per-requirement results to the patient-level
// rollup using the same priority rule as And: any Undetermined requirement
// makes the whole record UNDETERMINED, otherwise any NotSatisfied makes it
// INVALID.
func StatusFor(undeterminedCount, unsatisfiedCount int) models.ComplianceStatus {
	switch {
	case undeterminedCount > 0:
		return models.StatusUndetermined
	case unsatisfiedCount > 0:
		return models.StatusInvalid
	default:
		return models.StatusValid
	}
}
