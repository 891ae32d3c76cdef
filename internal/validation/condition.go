package validation

import (
	"regexp"
	"strconv"
	"strings"
)

// ConditionKind tags the parsed form of a condition string.
type ConditionKind int

const (
	// CondUnparsable marks text that matched no known grammar. Evaluating it
	// yields Undetermined, never an error.
	CondUnparsable ConditionKind = iota
	// CondBirthday: "Nth dose on or after Yth birthday"
	CondBirthday
	// CondMonth: "Nth dose on or after Yth month"
	CondMonth
	// CondIntervalAll: "at least N unit between doses" (every consecutive pair)
	CondIntervalAll
	// CondIntervalLastTwo: "at least N unit between last two doses"
	CondIntervalLastTwo
	// CondIntervalPair: "at least N unit between Nth and Mth dose"
	CondIntervalPair
)

// IntervalUnit is the time unit of an interval condition.
type IntervalUnit string

const (
	UnitDays   IntervalUnit = "days"
	UnitWeeks  IntervalUnit = "weeks"
	UnitMonths IntervalUnit = "months"
	UnitYears  IntervalUnit = "years"
)

// Condition is the parsed form of one condition string. Conditions are
// compiled once when requirements are loaded; evaluation dispatches on Kind
// instead of re-running the regexes per call.
type Condition struct {
	Kind ConditionKind
	Raw  string

	// Birthday / month forms (1-based dose ordinal).
	DoseNumber int
	// Years after birth (birthday form) or months after birth (month form).
	Offset int

	// Interval forms.
	Amount int
	Unit   IntervalUnit
	// 1-based dose ordinals for the specific-pair form.
	FromDose int
	ToDose   int
}

// Grammar, case-insensitive, ordinal suffixes st/nd/rd/th accepted and
// ignored. The specific-pair interval form must be tried before the generic
// one: "between 3rd and 4th dose" would otherwise never match.
var (
	birthdayPattern = regexp.MustCompile(
		`(?i)(\d+)(?:st|nd|rd|th)\s+dose\s+on or after\s+(\d+)(?:st|nd|rd|th)\s+birthday`)
	monthPattern = regexp.MustCompile(
		`(?i)(\d+)(?:st|nd|rd|th)\s+dose\s+on or after\s+(\d+)(?:st|nd|rd|th)\s+month`)
	intervalPairPattern = regexp.MustCompile(
		`(?i)at least\s+(\d+)\s+(days?|weeks?|months?|years?)\s+between\s+(\d+)(?:st|nd|rd|th)\s+and\s+(\d+)(?:st|nd|rd|th)\s+dose`)
	intervalGenericPattern = regexp.MustCompile(
		`(?i)at least\s+(\d+)\s+(days?|weeks?|months?|years?)\s+between\s+(last two\s+)?doses`)
)

// ParseDateCondition parses a birthday-form or month-form condition.
// Unrecognized text comes back as CondUnparsable.
func ParseDateCondition(text string) Condition {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Condition{Kind: CondUnparsable, Raw: text}
	}

	if m := birthdayPattern.FindStringSubmatch(trimmed); m != nil {
		dose, okDose := parseOrdinal(m[1])
		offset, okOffset := parseOrdinal(m[2])
		if okDose && okOffset {
			return Condition{Kind: CondBirthday, Raw: text, DoseNumber: dose, Offset: offset}
		}
	}

	if m := monthPattern.FindStringSubmatch(trimmed); m != nil {
		dose, okDose := parseOrdinal(m[1])
		offset, okOffset := parseOrdinal(m[2])
		if okDose && okOffset {
			return Condition{Kind: CondMonth, Raw: text, DoseNumber: dose, Offset: offset}
		}
	}

	return Condition{Kind: CondUnparsable, Raw: text}
}

// ParseIntervalCondition parses one of the three interval forms, most
// specific first.
func ParseIntervalCondition(text string) Condition {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Condition{Kind: CondUnparsable, Raw: text}
	}

	if m := intervalPairPattern.FindStringSubmatch(trimmed); m != nil {
		amount, okAmount := parseOrdinal(m[1])
		from, okFrom := parseOrdinal(m[3])
		to, okTo := parseOrdinal(m[4])
		if okAmount && okFrom && okTo {
			return Condition{
				Kind:     CondIntervalPair,
				Raw:      text,
				Amount:   amount,
				Unit:     normalizeUnit(m[2]),
				FromDose: from,
				ToDose:   to,
			}
		}
	}

	if m := intervalGenericPattern.FindStringSubmatch(trimmed); m != nil {
		amount, ok := parseOrdinal(m[1])
		if ok {
			kind := CondIntervalAll
			if m[3] != "" {
				kind = CondIntervalLastTwo
			}
			return Condition{Kind: kind, Raw: text, Amount: amount, Unit: normalizeUnit(m[2])}
		}
	}

	return Condition{Kind: CondUnparsable, Raw: text}
}

func parseOrdinal(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeUnit(raw string) IntervalUnit {
	u := strings.ToLower(strings.TrimSpace(raw))
	u = strings.TrimSuffix(u, "s")
	switch u {
	case "day":
		return UnitDays
	case "week":
		return UnitWeeks
	case "month":
		return UnitMonths
	default:
		return UnitYears
	}
}
