package validation

import (
	"time"

	"github.com/savegress/vaxguard/pkg/models"
)

// EvaluateDateCondition evaluates a single birthday-form or month-form
// condition against a patient's doses for one vaccine. The dose sequence is
// sorted here before any ordinal indexing, so callers may pass doses in any
// order. A nil birthDate makes the condition Undetermined; a dose history
// shorter than the requested ordinal is a definite NotSatisfied.
func EvaluateDateCondition(text string, doses []models.Immunization, birthDate *time.Time) Result {
	return evaluateDateParsed(ParseDateCondition(text), SortDoses(doses), birthDate)
}

// EvaluateDateConditions AND-folds a list of date conditions. An empty list
// is Satisfied.
func EvaluateDateConditions(conditions []string, doses []models.Immunization, birthDate *time.Time) Result {
	if len(conditions) == 0 {
		return Satisfied
	}
	sorted := SortDoses(doses)
	results := make([]Result, 0, len(conditions))
	for _, c := range conditions {
		results = append(results, evaluateDateParsed(ParseDateCondition(c), sorted, birthDate))
	}
	return And(results...)
}

// evalDateConditions is the pre-compiled path used by the engine. Doses must
// already be sorted chronologically.
func evalDateConditions(conditions []Condition, sortedDoses []models.Immunization, birthDate *time.Time) Result {
	if len(conditions) == 0 {
		return Satisfied
	}
	results := make([]Result, 0, len(conditions))
	for _, c := range conditions {
		results = append(results, evaluateDateParsed(c, sortedDoses, birthDate))
	}
	return And(results...)
}

// evaluateDateParsed dispatches on the parsed condition. Doses must already
// be sorted chronologically. Unexpected failures inside the evaluation are
// downgraded to Undetermined so one malformed condition can never abort a
// whole validation run.
func evaluateDateParsed(cond Condition, sortedDoses []models.Immunization, birthDate *time.Time) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Undetermined
		}
	}()

	switch cond.Kind {
	case CondBirthday, CondMonth:
	default:
		// Blank or unrecognized text: nothing checkable, surface to caller.
		return Undetermined
	}

	if birthDate == nil {
		return Undetermined
	}

	// The required dose has not been given yet. That is a known fact, not
	// missing information.
	if len(sortedDoses) < cond.DoseNumber {
		return NotSatisfied
	}

	doseDate, ok := ParseDate(sortedDoses[cond.DoseNumber-1].OccurrenceDate)
	if !ok {
		return Undetermined
	}

	var target time.Time
	if cond.Kind == CondBirthday {
		target = addYears(*birthDate, cond.Offset)
	} else {
		target = addMonths(*birthDate, cond.Offset)
	}

	// "on or after" includes the target day itself.
	if doseDate.Before(target) {
		return NotSatisfied
	}
	return Satisfied
}
