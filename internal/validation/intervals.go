package validation

import "github.com/savegress/vaxguard/pkg/models"

// EvaluateIntervalCondition evaluates a single interval condition against a
// patient's doses for one vaccine. The dose sequence is sorted here before
// any pair is examined, so callers may pass doses in any order.
func EvaluateIntervalCondition(text string, doses []models.Immunization) Result {
	return evaluateIntervalParsed(ParseIntervalCondition(text), SortDoses(doses))
}

// EvaluateIntervalConditions AND-folds a list of interval conditions. An
// empty list is Satisfied.
func EvaluateIntervalConditions(conditions []string, doses []models.Immunization) Result {
	if len(conditions) == 0 {
		return Satisfied
	}
	sorted := SortDoses(doses)
	results := make([]Result, 0, len(conditions))
	for _, c := range conditions {
		results = append(results, evaluateIntervalParsed(ParseIntervalCondition(c), sorted))
	}
	return And(results...)
}

// evalIntervalConditions is the pre-compiled path used by the engine. Doses
// must already be sorted chronologically.
func evalIntervalConditions(conditions []Condition, sortedDoses []models.Immunization) Result {
	if len(conditions) == 0 {
		return Satisfied
	}
	results := make([]Result, 0, len(conditions))
	for _, c := range conditions {
		results = append(results, evaluateIntervalParsed(c, sortedDoses))
	}
	return And(results...)
}

// evaluateIntervalParsed dispatches on the parsed condition. Doses must
// already be sorted chronologically.
func evaluateIntervalParsed(cond Condition, sortedDoses []models.Immunization) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Undetermined
		}
	}()

	switch cond.Kind {
	case CondIntervalPair:
		return checkDosePair(cond, sortedDoses)
	case CondIntervalLastTwo:
		if len(sortedDoses) < 2 {
			return NotSatisfied
		}
		return checkPair(cond, sortedDoses[len(sortedDoses)-2], sortedDoses[len(sortedDoses)-1])
	case CondIntervalAll:
		if len(sortedDoses) < 2 {
			return NotSatisfied
		}
		for i := 1; i < len(sortedDoses); i++ {
			if r := checkPair(cond, sortedDoses[i-1], sortedDoses[i]); r != Satisfied {
				return r
			}
		}
		return Satisfied
	default:
		return Undetermined
	}
}

// checkDosePair checks the interval between two doses named by 1-based
// ordinal. A sequence too short to contain the named pair is a definite
// NotSatisfied for that pair.
func checkDosePair(cond Condition, sortedDoses []models.Immunization) Result {
	if cond.FromDose < 1 || cond.ToDose < 1 || len(sortedDoses) < cond.ToDose || len(sortedDoses) < cond.FromDose {
		return NotSatisfied
	}
	return checkPair(cond, sortedDoses[cond.FromDose-1], sortedDoses[cond.ToDose-1])
}

func checkPair(cond Condition, from, to models.Immunization) Result {
	fromDate, okFrom := ParseDate(from.OccurrenceDate)
	toDate, okTo := ParseDate(to.OccurrenceDate)
	if !okFrom || !okTo {
		return Undetermined
	}
	if intervalIn(cond.Unit, fromDate, toDate) < cond.Amount {
		return NotSatisfied
	}
	return Satisfied
}
