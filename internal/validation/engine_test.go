package validation

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/savegress/vaxguard/pkg/models"
)

func testEngine(mode AlternateMode) *Engine {
	return NewEngine(mode, zerolog.Nop())
}

func immunizations(code string, dates ...string) []models.Immunization {
	doses := make([]models.Immunization, 0, len(dates))
	for _, d := range dates {
		doses = append(doses, models.Immunization{VaccineCode: code, OccurrenceDate: d})
	}
	return doses
}

func dtapRequirement() models.Requirement {
	return models.Requirement{
		VaccineCode: "DTaP",
		MinDoses:    5,
		Description: "5 doses of DTaP required",
		Alternates: []models.AlternateRequirement{{
			MinDoses:       4,
			DateConditions: []string{"4th dose on or after 4th birthday"},
			Description:    "4 doses acceptable if 4th given on or after 4th birthday",
		}},
	}
}

func TestParseAlternateMode(t *testing.T) {
	tests := []struct {
		in   string
		want AlternateMode
	}{
		{"STRICT", ModeStrict},
		{"strict", ModeStrict},
		{" Strict ", ModeStrict},
		{"FLEXIBLE", ModeFlexible},
		{"", ModeFlexible},
		{"whatever", ModeFlexible},
	}
	for _, tt := range tests {
		if got := ParseAlternateMode(tt.in); got != tt.want {
			t.Errorf("ParseAlternateMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompile_UnparsableConditionDegrades(t *testing.T) {
	req := Compile(models.Requirement{
		VaccineCode:        "MMR",
		MinDoses:           1,
		DateConditions:     []string{"1st dose on or after 1st birthday", "nonsense"},
		IntervalConditions: []string{"at least 28 days between doses"},
	})
	if len(req.DateConds) != 2 {
		t.Fatalf("expected 2 compiled date conditions, got %d", len(req.DateConds))
	}
	if req.DateConds[0].Kind != CondBirthday {
		t.Errorf("first condition kind = %v, want CondBirthday", req.DateConds[0].Kind)
	}
	if req.DateConds[1].Kind != CondUnparsable {
		t.Errorf("second condition kind = %v, want CondUnparsable", req.DateConds[1].Kind)
	}
	if len(req.IntervalConds) != 1 || req.IntervalConds[0].Kind != CondIntervalAll {
		t.Errorf("interval condition not compiled as all-pairs: %+v", req.IntervalConds)
	}
}

func TestValidate_EmptyRequirements(t *testing.T) {
	e := testEngine(ModeFlexible)
	patient := models.Patient{ID: "patient-001", BirthDate: "2019-01-01"}

	resp := e.Validate(patient, nil, "MA", "kindergarten", true)
	if resp.Status != models.StatusUndetermined {
		t.Fatalf("empty requirements: status = %v, want UNDETERMINED", resp.Status)
	}
	if resp.Valid {
		t.Error("empty requirements must not be Valid")
	}
	if len(resp.UndeterminedConditions) != 1 {
		t.Errorf("expected one undetermined record, got %d", len(resp.UndeterminedConditions))
	}

	resp = e.Validate(patient, nil, "MA", "kindergarten", false)
	if len(resp.UndeterminedConditions) != 0 {
		t.Error("summary mode must omit undetermined detail")
	}
}

func TestValidate_ExemptionShortCircuit(t *testing.T) {
	e := testEngine(ModeFlexible)
	reqs := CompileAll([]models.Requirement{{
		VaccineCode:        "MMR",
		MinDoses:           2,
		AcceptedExemptions: []models.ExemptionType{models.ExemptionMedicalContraindication},
	}})

	// Zero doses on record, exemption held: requirement is satisfied.
	patient := models.Patient{
		ID:        "patient-002",
		BirthDate: "2019-01-01",
		Exemptions: []models.Exemption{
			{VaccineCode: "MMR", ExemptionType: models.ExemptionMedicalContraindication},
		},
	}
	resp := e.Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusValid {
		t.Errorf("exempt patient: status = %v, want VALID", resp.Status)
	}

	// A held exemption the requirement does not accept changes nothing.
	patient.Exemptions[0].ExemptionType = models.ExemptionReligious
	resp = e.Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusInvalid {
		t.Errorf("non-accepted exemption: status = %v, want INVALID", resp.Status)
	}
}

func TestValidate_AlternateFlexibleFallsBackToPrimary(t *testing.T) {
	e := testEngine(ModeFlexible)
	reqs := CompileAll([]models.Requirement{dtapRequirement()})

	// Five doses, 4th given before the 4th birthday. The alternate is
	// attempted and fails, but FLEXIBLE mode falls back to the primary
	// count, which passes.
	patient := models.Patient{
		ID:        "patient-003",
		BirthDate: "2019-01-01",
		Immunizations: immunizations("DTaP",
			"2019-03-01", "2019-05-01", "2019-07-01", "2020-06-01", "2023-06-01"),
	}
	resp := e.Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusValid {
		t.Errorf("FLEXIBLE fallback: status = %v, want VALID", resp.Status)
	}
}

func TestValidate_AlternateStrictBlocksPrimary(t *testing.T) {
	e := testEngine(ModeStrict)
	reqs := CompileAll([]models.Requirement{dtapRequirement()})

	// Same record as the FLEXIBLE case. STRICT mode commits to the
	// attempted alternate and never counts the five raw doses.
	patient := models.Patient{
		ID:        "patient-004",
		BirthDate: "2019-01-01",
		Immunizations: immunizations("DTaP",
			"2019-03-01", "2019-05-01", "2019-07-01", "2020-06-01", "2023-06-01"),
	}
	resp := e.Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusInvalid {
		t.Fatalf("STRICT: status = %v, want INVALID", resp.Status)
	}
	if len(resp.UnmetRequirements) != 1 {
		t.Fatalf("expected one unmet requirement, got %d", len(resp.UnmetRequirements))
	}
	if !strings.Contains(resp.UnmetRequirements[0].Description, "STRICT") {
		t.Errorf("unmet description should name STRICT mode: %q", resp.UnmetRequirements[0].Description)
	}
}

func TestValidate_AlternateSatisfiedInBothModes(t *testing.T) {
	// Four doses with the 4th on the 4th birthday satisfy the alternate, so
	// the mode makes no difference.
	patient := models.Patient{
		ID:        "patient-005",
		BirthDate: "2019-01-01",
		Immunizations: immunizations("DTaP",
			"2019-03-01", "2019-05-01", "2019-07-01", "2023-01-01"),
	}
	reqs := CompileAll([]models.Requirement{dtapRequirement()})

	for _, mode := range []AlternateMode{ModeFlexible, ModeStrict} {
		resp := testEngine(mode).Validate(patient, reqs, "MA", "kindergarten", true)
		if resp.Status != models.StatusValid {
			t.Errorf("mode %s: status = %v, want VALID", mode, resp.Status)
		}
	}
}

func TestValidate_AlternateBelowThresholdNotAttempted(t *testing.T) {
	// Three doses: below the alternate's threshold of four, so the alternate
	// is skipped entirely and STRICT mode still consults the primary.
	patient := models.Patient{
		ID:            "patient-006",
		BirthDate:     "2019-01-01",
		Immunizations: immunizations("DTaP", "2019-03-01", "2019-05-01", "2019-07-01"),
	}
	reqs := CompileAll([]models.Requirement{dtapRequirement()})

	resp := testEngine(ModeStrict).Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusInvalid {
		t.Fatalf("status = %v, want INVALID", resp.Status)
	}
	if len(resp.UnmetRequirements) != 1 {
		t.Fatalf("expected one unmet requirement, got %d", len(resp.UnmetRequirements))
	}
	unmet := resp.UnmetRequirements[0]
	if unmet.RequiredDoses != 5 || unmet.FoundDoses != 3 {
		t.Errorf("unmet record = required %d found %d, want 5/3", unmet.RequiredDoses, unmet.FoundDoses)
	}
	if strings.Contains(unmet.Description, "STRICT") {
		t.Errorf("unattempted alternate must not produce a STRICT failure: %q", unmet.Description)
	}
}

func TestValidate_PolioEndToEnd(t *testing.T) {
	reqs := CompileAll([]models.Requirement{{
		VaccineCode:        "Polio",
		MinDoses:           4,
		DateConditions:     []string{"4th dose on or after 4th birthday"},
		IntervalConditions: []string{"at least 6 months between 3rd and 4th dose"},
		Description:        "4 doses of Polio required",
		Alternates: []models.AlternateRequirement{{
			MinDoses:       3,
			DateConditions: []string{"3rd dose on or after 4th birthday"},
		}},
	}})

	// 4th dose at age four, 19 months after the 3rd. Primary satisfied.
	patient := models.Patient{
		ID:        "patient-007",
		BirthDate: "2019-01-01",
		Immunizations: immunizations("Polio",
			"2019-03-01", "2019-05-01", "2019-07-01", "2023-02-01"),
	}
	resp := testEngine(ModeFlexible).Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusValid {
		t.Errorf("status = %v, want VALID", resp.Status)
	}
	if resp.Metadata == nil {
		t.Fatal("metadata must always be present")
	}
	if resp.Metadata.SatisfiedRequirements != 1 || resp.Metadata.TotalRequirements != 1 {
		t.Errorf("metadata counts = %d/%d, want 1/1",
			resp.Metadata.SatisfiedRequirements, resp.Metadata.TotalRequirements)
	}
}

func TestValidate_MissingBirthDateUndetermined(t *testing.T) {
	reqs := CompileAll([]models.Requirement{{
		VaccineCode:    "MMR",
		MinDoses:       1,
		DateConditions: []string{"1st dose on or after 1st birthday"},
	}})

	patient := models.Patient{
		ID:            "patient-008",
		Immunizations: immunizations("MMR", "2020-02-01"),
	}
	resp := testEngine(ModeFlexible).Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusUndetermined {
		t.Fatalf("status = %v, want UNDETERMINED", resp.Status)
	}
	if len(resp.UndeterminedConditions) != 1 {
		t.Fatalf("expected one undetermined record, got %d", len(resp.UndeterminedConditions))
	}
	if resp.UndeterminedConditions[0].Reason != "missing birth date" {
		t.Errorf("reason = %q, want missing birth date", resp.UndeterminedConditions[0].Reason)
	}
}

func TestValidate_InvalidBirthDateWarning(t *testing.T) {
	reqs := CompileAll([]models.Requirement{{
		VaccineCode:    "MMR",
		MinDoses:       1,
		DateConditions: []string{"1st dose on or after 1st birthday"},
	}})

	patient := models.Patient{
		ID:            "patient-009",
		BirthDate:     "01/01/2019",
		Immunizations: immunizations("MMR", "2020-02-01"),
	}
	resp := testEngine(ModeFlexible).Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusUndetermined {
		t.Errorf("status = %v, want UNDETERMINED", resp.Status)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("expected a birth date warning, got %v", resp.Warnings)
	}
}

func TestValidate_RollupPriority(t *testing.T) {
	// One satisfied, one unsatisfied, one undetermined. UNDETERMINED must
	// win the patient-level rollup over INVALID.
	reqs := CompileAll([]models.Requirement{
		{VaccineCode: "HepB", MinDoses: 1},
		{VaccineCode: "Varicella", MinDoses: 2},
		{VaccineCode: "MMR", MinDoses: 1, DateConditions: []string{"1st dose on or after 1st birthday"}},
	})

	patient := models.Patient{
		ID: "patient-010",
		// No birth date: the MMR date condition is undetermined.
		Immunizations: append(
			immunizations("HepB", "2019-02-01"),
			immunizations("MMR", "2020-02-01")...),
	}
	resp := testEngine(ModeFlexible).Validate(patient, reqs, "MA", "kindergarten", true)
	if resp.Status != models.StatusUndetermined {
		t.Fatalf("status = %v, want UNDETERMINED", resp.Status)
	}
	m := resp.Metadata
	if m.SatisfiedRequirements != 1 || m.UnsatisfiedRequirements != 1 || m.UndeterminedRequirements != 1 {
		t.Errorf("tally = %d/%d/%d, want 1/1/1",
			m.SatisfiedRequirements, m.UnsatisfiedRequirements, m.UndeterminedRequirements)
	}
}

func TestValidate_SummaryModeOmitsDetail(t *testing.T) {
	reqs := CompileAll([]models.Requirement{{VaccineCode: "HepB", MinDoses: 3}})
	patient := models.Patient{ID: "patient-011", BirthDate: "2019-01-01"}

	resp := testEngine(ModeFlexible).Validate(patient, reqs, "MA", "kindergarten", false)
	if resp.Status != models.StatusInvalid {
		t.Fatalf("status = %v, want INVALID", resp.Status)
	}
	if len(resp.UnmetRequirements) != 0 {
		t.Error("summary mode must omit unmet detail")
	}
	if resp.Metadata == nil || resp.Metadata.UnsatisfiedRequirements != 1 {
		t.Error("summary mode must still carry metadata counts")
	}
}

func TestValidateBatch_OrderPreserved(t *testing.T) {
	reqs := CompileAll([]models.Requirement{{VaccineCode: "HepB", MinDoses: 1}})
	patients := []models.Patient{
		{ID: "batch-a", BirthDate: "2019-01-01", Immunizations: immunizations("HepB", "2019-02-01")},
		{ID: "batch-b", BirthDate: "2019-01-01"},
		{ID: "batch-c", BirthDate: "2019-01-01", Immunizations: immunizations("HepB", "2019-03-01")},
	}

	results := testEngine(ModeFlexible).ValidateBatch(patients, reqs, "MA", "kindergarten", false)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, p := range patients {
		if results[i].PatientID != p.ID {
			t.Errorf("result %d is for %q, want %q", i, results[i].PatientID, p.ID)
		}
	}
	if results[0].Status != models.StatusValid || results[2].Status != models.StatusValid {
		t.Error("vaccinated patients should be VALID")
	}
	if results[1].Status != models.StatusInvalid {
		t.Errorf("unvaccinated patient status = %v, want INVALID", results[1].Status)
	}
}

func TestMaskPatientID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"patient-12345", "pati****2345"},
		{"12345678", "****"},
		{"abc", "****"},
		{"", "****"},
		{"123456789", "1234****6789"},
	}
	for _, tt := range tests {
		if got := MaskPatientID(tt.in); got != tt.want {
			t.Errorf("MaskPatientID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCalculateAge(t *testing.T) {
	now := date("2024-06-15")

	tests := []struct {
		birth string
		want  int
		ok    bool
	}{
		{"2019-01-01", 5, true},
		{"2019-06-15", 5, true},
		{"2019-06-16", 4, true},
		{"2024-06-15", 0, true},
		{"not-a-date", 0, false},
		{"2025-01-01", 0, false},
	}
	for _, tt := range tests {
		got, ok := CalculateAge(tt.birth, now)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CalculateAge(%q) = %d,%v, want %d,%v", tt.birth, got, ok, tt.want, tt.ok)
		}
	}
}
