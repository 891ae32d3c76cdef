package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savegress/vaxguard/pkg/models"
)

// Version reported in validation metadata.
const Version = "1.0.0"

// AlternateMode controls what happens when a requirement's alternate
// schedule was attempted (dose threshold met) but not satisfied.
type AlternateMode string

const (
	// ModeFlexible falls back to the primary schedule when an alternate
	// fails. Default.
	ModeFlexible AlternateMode = "FLEXIBLE"
	// ModeStrict marks the requirement not satisfied without consulting the
	// primary schedule: committing to an alternate path forfeits the
	// fallback to raw dose counting.
	ModeStrict AlternateMode = "STRICT"
)

// ParseAlternateMode normalizes a configured mode string, defaulting to
// FLEXIBLE for anything unrecognized.
func ParseAlternateMode(s string) AlternateMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeStrict)) {
		return ModeStrict
	}
	return ModeFlexible
}

// CompiledRequirement is a Requirement with its condition strings parsed
// once into dispatchable form.
type CompiledRequirement struct {
	models.Requirement

	DateConds     []Condition
	IntervalConds []Condition
	AltCompiled   []CompiledAlternate
}

// CompiledAlternate mirrors CompiledRequirement for one alternate schedule.
type CompiledAlternate struct {
	models.AlternateRequirement

	DateConds     []Condition
	IntervalConds []Condition
}

// Compile parses every condition string in a requirement. Unparsable
// conditions compile to CondUnparsable and evaluate to Undetermined, so a
// typo in a requirements file degrades that requirement instead of failing
// the load.
func Compile(req models.Requirement) CompiledRequirement {
	compiled := CompiledRequirement{
		Requirement:   req,
		DateConds:     compileDates(req.DateConditions),
		IntervalConds: compileIntervals(req.IntervalConditions),
	}
	for _, alt := range req.Alternates {
		compiled.AltCompiled = append(compiled.AltCompiled, CompiledAlternate{
			AlternateRequirement: alt,
			DateConds:            compileDates(alt.DateConditions),
			IntervalConds:        compileIntervals(alt.IntervalConditions),
		})
	}
	return compiled
}

// CompileAll compiles a requirement list in order.
func CompileAll(reqs []models.Requirement) []CompiledRequirement {
	if len(reqs) == 0 {
		return nil
	}
	compiled := make([]CompiledRequirement, 0, len(reqs))
	for _, r := range reqs {
		compiled = append(compiled, Compile(r))
	}
	return compiled
}

func compileDates(texts []string) []Condition {
	conds := make([]Condition, 0, len(texts))
	for _, t := range texts {
		conds = append(conds, ParseDateCondition(t))
	}
	return conds
}

func compileIntervals(texts []string) []Condition {
	conds := make([]Condition, 0, len(texts))
	for _, t := range texts {
		conds = append(conds, ParseIntervalCondition(t))
	}
	return conds
}

// Engine resolves patient records against compiled requirements. It holds no
// mutable state; Validate calls are pure functions of their inputs and may
// run concurrently.
type Engine struct {
	mode AlternateMode
	log  zerolog.Logger
}

// NewEngine creates an engine with the given alternate-schedule mode.
func NewEngine(mode AlternateMode, log zerolog.Logger) *Engine {
	return &Engine{mode: mode, log: log}
}

// Mode returns the configured alternate-schedule mode.
func (e *Engine) Mode() AlternateMode {
	return e.mode
}

// tally accumulates per-requirement outcomes for one patient.
type tally struct {
	satisfied    int
	unsatisfied  int
	undetermined int

	unmet         []models.UnmetRequirement
	undetermineds []models.UndeterminedCondition
	warnings      []string
}

// Validate checks one patient against a requirement list and produces the
// patient-level rollup. An empty or nil requirement list is an UNDETERMINED
// verdict: the system cannot assess what it cannot look up. includeDetail
// controls whether the unmet/undetermined lists are populated; status,
// message and metadata counts are always present.
func (e *Engine) Validate(patient models.Patient, requirements []CompiledRequirement, state, schoolYear string, includeDetail bool) models.ValidationResponse {
	masked := MaskPatientID(patient.ID)
	e.log.Debug().
		Str("patient", masked).
		Str("state", state).
		Str("mode", string(e.mode)).
		Int("requirements", len(requirements)).
		Msg("validating patient")

	if len(requirements) == 0 {
		resp := models.ValidationResponse{
			PatientID: patient.ID,
			Status:    models.StatusUndetermined,
			Message:   "No validation requirements found for the specified criteria",
		}
		if includeDetail {
			resp.UndeterminedConditions = []models.UndeterminedCondition{{
				Reason:     "No requirements found",
				Details:    fmt.Sprintf("State: %s, SchoolYear: %s", state, schoolYear),
				Suggestion: "Verify state code and school year or age are correct",
			}}
		}
		return resp
	}

	// Group and sort once at the resolution boundary; everything downstream
	// receives chronologically sorted views.
	dosesByVaccine := GroupDosesByVaccine(patient.Immunizations)

	exemptionsByVaccine := make(map[string]models.ExemptionType)
	for _, ex := range patient.Exemptions {
		// Last write wins when a patient carries several exemptions for the
		// same vaccine code; only one is consulted.
		exemptionsByVaccine[ex.VaccineCode] = ex.ExemptionType
	}

	var birthDate *time.Time
	if patient.BirthDate != "" {
		if bd, ok := ParseDate(patient.BirthDate); ok {
			birthDate = &bd
		}
	}

	var t tally
	if patient.BirthDate != "" && birthDate == nil {
		t.warnings = append(t.warnings,
			"Invalid birth date format - date-based conditions cannot be evaluated")
	}

	for _, req := range requirements {
		e.resolveRequirement(req, dosesByVaccine, exemptionsByVaccine, birthDate, &t)
	}

	status := StatusFor(t.undetermined, t.unsatisfied)
	resp := models.ValidationResponse{
		PatientID: patient.ID,
		Status:    status,
		Valid:     status == models.StatusValid,
		Message:   statusMessage(status, &t),
		Metadata: &models.ValidationMetadata{
			ValidatedAt:              time.Now().UTC(),
			State:                    state,
			SchoolYear:               schoolYear,
			TotalRequirements:        len(requirements),
			SatisfiedRequirements:    t.satisfied,
			UnsatisfiedRequirements:  t.unsatisfied,
			UndeterminedRequirements: t.undetermined,
			ValidatorVersion:         Version,
		},
		Warnings: t.warnings,
	}
	if includeDetail {
		resp.UnmetRequirements = t.unmet
		resp.UndeterminedConditions = t.undetermineds
	}

	e.log.Info().
		Str("patient", masked).
		Str("status", string(status)).
		Int("satisfied", t.satisfied).
		Int("unsatisfied", t.unsatisfied).
		Int("undetermined", t.undetermined).
		Msg("validation complete")

	return resp
}

// ValidateBatch validates patients independently and in order: the result at
// index i always corresponds to the patient at index i. A failure while
// resolving one patient is captured as that patient's UNDETERMINED result
// and never aborts the rest of the batch.
func (e *Engine) ValidateBatch(patients []models.Patient, requirements []CompiledRequirement, state, schoolYear string, includeDetail bool) []models.ValidationResponse {
	results := make([]models.ValidationResponse, len(patients))
	for i, p := range patients {
		results[i] = e.ValidateIsolated(p, requirements, state, schoolYear, includeDetail)
	}
	return results
}

// ValidateIsolated validates one patient with the same failure isolation as
// ValidateBatch: an unexpected panic becomes that patient's UNDETERMINED
// result instead of propagating. Callers resolving requirements per patient
// use this directly.
func (e *Engine) ValidateIsolated(patient models.Patient, requirements []CompiledRequirement, state, schoolYear string, includeDetail bool) (resp models.ValidationResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("patient", MaskPatientID(patient.ID)).
				Interface("panic", r).
				Msg("validation aborted for patient")
			resp = models.ValidationResponse{
				PatientID: patient.ID,
				Status:    models.StatusUndetermined,
				Message:   fmt.Sprintf("Validation failed unexpectedly: %v", r),
			}
		}
	}()
	return e.Validate(patient, requirements, state, schoolYear, includeDetail)
}

// resolveRequirement applies the per-requirement resolution policy:
// exemption short-circuit, alternate scan, STRICT/FLEXIBLE mode branch,
// primary evaluation, then records the outcome in the tally.
func (e *Engine) resolveRequirement(req CompiledRequirement, dosesByVaccine map[string][]models.Immunization, exemptions map[string]models.ExemptionType, birthDate *time.Time, t *tally) {
	code := req.VaccineCode

	// Step 1: an accepted exemption satisfies the requirement outright,
	// dose counts included.
	if len(req.AcceptedExemptions) > 0 {
		if held, ok := exemptions[code]; ok && exemptionAccepted(held, req.AcceptedExemptions) {
			e.log.Debug().Str("vaccine", code).Str("exemption", string(held)).
				Msg("requirement satisfied by exemption")
			t.satisfied++
			return
		}
	}

	requiredDoses := req.MinDoses
	if requiredDoses < 1 {
		requiredDoses = 1
	}
	foundDoses := len(dosesByVaccine[code])

	// Step 2: alternates, in declaration order. An alternate is "attempted"
	// only once its dose threshold is met; after that, a SATISFIED result
	// wins, an UNDETERMINED result leaves later alternates in play, and a
	// NOT_SATISFIED result is remembered but scanning continues.
	attempted := false
	for _, alt := range req.AltCompiled {
		altCode := alt.VaccineCode
		if altCode == "" {
			altCode = code
		}
		altRequired := alt.MinDoses
		if altRequired < 1 {
			altRequired = 1
		}
		altDoses := dosesByVaccine[altCode]
		if len(altDoses) < altRequired {
			continue
		}

		attempted = true
		altResult := And(
			evalDateConditions(alt.DateConds, altDoses, birthDate),
			evalIntervalConditions(alt.IntervalConds, altDoses),
		)
		if altResult == Satisfied {
			e.log.Debug().Str("vaccine", code).Str("alternate", altCode).Int("doses", len(altDoses)).
				Msg("requirement satisfied via alternate schedule")
			t.satisfied++
			return
		}
		e.log.Debug().Str("vaccine", code).Str("alternate", altCode).
			Str("result", altResult.String()).Msg("alternate attempted without success")
	}

	// Step 3: in STRICT mode an attempted-but-unsatisfied alternate path is
	// final; the primary schedule is deliberately not consulted.
	if e.mode == ModeStrict && attempted {
		t.unsatisfied++
		t.unmet = append(t.unmet, models.UnmetRequirement{
			VaccineCode:   code,
			RequiredDoses: requiredDoses,
			FoundDoses:    foundDoses,
			Description:   fmt.Sprintf("Alternate requirement not satisfied (STRICT mode): %s", req.Description),
		})
		return
	}

	// Step 4: primary schedule.
	if foundDoses < requiredDoses {
		t.unsatisfied++
		desc := req.Description
		if desc == "" {
			desc = fmt.Sprintf("Insufficient doses of %s: required %d, found %d", code, requiredDoses, foundDoses)
		}
		t.unmet = append(t.unmet, models.UnmetRequirement{
			VaccineCode:   code,
			RequiredDoses: requiredDoses,
			FoundDoses:    foundDoses,
			Description:   desc,
		})
		return
	}

	doses := dosesByVaccine[code]
	primary := And(
		evalDateConditions(req.DateConds, doses, birthDate),
		evalIntervalConditions(req.IntervalConds, doses),
	)

	switch primary {
	case Satisfied:
		t.satisfied++
	case Undetermined:
		t.undetermined++
		t.undetermineds = append(t.undetermineds, models.UndeterminedCondition{
			VaccineCode: code,
			Condition:   req.Description,
			Reason:      undeterminedReason(req, birthDate),
			Details:     fmt.Sprintf("Missing or invalid data for %s validation", code),
			Suggestion:  "Verify birth date is provided and conditions are correctly formatted",
		})
	default:
		t.unsatisfied++
		reason := "date/interval conditions not met"
		if attempted {
			reason = "neither alternate nor primary requirements satisfied"
		}
		t.unmet = append(t.unmet, models.UnmetRequirement{
			VaccineCode:   code,
			RequiredDoses: requiredDoses,
			FoundDoses:    foundDoses,
			Description:   fmt.Sprintf("%s: %d doses found, but %s. %s", code, foundDoses, reason, req.Description),
		})
	}
}

func exemptionAccepted(held models.ExemptionType, accepted []models.ExemptionType) bool {
	for _, a := range accepted {
		if a == held {
			return true
		}
	}
	return false
}

// undeterminedReason names the most likely cause for a requirement that
// could not be evaluated, for the remediation record.
func undeterminedReason(req CompiledRequirement, birthDate *time.Time) string {
	if birthDate == nil && len(req.DateConds) > 0 {
		return "missing birth date"
	}
	for _, c := range append(append([]Condition{}, req.DateConds...), req.IntervalConds...) {
		if c.Kind == CondUnparsable {
			return "unparsable condition"
		}
	}
	return "cannot evaluate date or interval conditions"
}

func statusMessage(status models.ComplianceStatus, t *tally) string {
	switch status {
	case models.StatusUndetermined:
		return fmt.Sprintf("Cannot determine compliance: %d requirement(s) could not be evaluated", t.undetermined)
	case models.StatusInvalid:
		return fmt.Sprintf("Patient does not meet requirements: %d requirement(s) not satisfied", t.unsatisfied)
	default:
		return "Patient meets all immunization requirements"
	}
}

// MaskPatientID hides the middle of a patient identifier for logs and audit
// records. IDs of eight characters or fewer are masked entirely.
func MaskPatientID(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:4] + "****" + id[len(id)-4:]
}

// CalculateAge returns whole years between birthDate (YYYY-MM-DD) and now.
func CalculateAge(birthDate string, now time.Time) (int, bool) {
	bd, ok := ParseDate(birthDate)
	if !ok || now.Before(bd) {
		return 0, false
	}
	return monthsBetween(bd, now) / 12, true
}
