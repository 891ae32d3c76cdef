package models

import "time"

// ComplianceStatus is the patient-level validation rollup.
type ComplianceStatus string

const (
	StatusValid        ComplianceStatus = "VALID"
	StatusInvalid      ComplianceStatus = "INVALID"
	StatusUndetermined ComplianceStatus = "UNDETERMINED"
)

// ExemptionType identifies a documented reason a vaccine requirement is
// satisfied without doses.
type ExemptionType string

const (
	ExemptionMedicalContraindication ExemptionType = "MEDICAL_CONTRAINDICATION"
	ExemptionReligious               ExemptionType = "RELIGIOUS_EXEMPTION"
	ExemptionLaboratoryEvidence      ExemptionType = "LABORATORY_EVIDENCE"
	ExemptionReliableHistory         ExemptionType = "RELIABLE_HISTORY"
	ExemptionBirthBeforeCutoff       ExemptionType = "BIRTH_BEFORE_CUTOFF_YEAR"
	ExemptionSignedWaiver            ExemptionType = "SIGNED_WAIVER"
)

// Immunization is a single administered dose.
type Immunization struct {
	VaccineCode    string `json:"vaccineCode"`
	OccurrenceDate string `json:"occurrenceDateTime"` // YYYY-MM-DD
	DoseNumber     int    `json:"doseNumber,omitempty"`
}

// Exemption documents why a vaccine requirement may be waived for a patient.
type Exemption struct {
	VaccineCode   string        `json:"vaccineCode"`
	ExemptionType ExemptionType `json:"exemptionType"`
	Description   string        `json:"description,omitempty"`
}

// Patient carries the subset of a patient record needed for validation.
// BirthDate is optional; without it date-based conditions are UNDETERMINED
// while dose counts and interval conditions still evaluate.
type Patient struct {
	ID            string         `json:"id"`
	BirthDate     string         `json:"birthDate,omitempty"` // YYYY-MM-DD
	SchoolYear    string         `json:"schoolYear,omitempty"`
	Immunizations []Immunization `json:"immunization,omitempty"`
	Exemptions    []Exemption    `json:"exemptions,omitempty"`
}

// Requirement is one vaccine's primary schedule plus its escape hatches.
type Requirement struct {
	VaccineCode        string                 `json:"vaccineCode" yaml:"vaccineCode"`
	MinDoses           int                    `json:"minDoses" yaml:"minDoses"`
	Description        string                 `json:"description,omitempty" yaml:"description"`
	DateConditions     []string               `json:"dateConditions,omitempty" yaml:"dateConditions"`
	IntervalConditions []string               `json:"intervalConditions,omitempty" yaml:"intervalConditions"`
	AcceptedExemptions []ExemptionType        `json:"acceptedExemptions,omitempty" yaml:"acceptedExemptions"`
	Alternates         []AlternateRequirement `json:"alternates,omitempty" yaml:"alternates"`
	Notes              string                 `json:"notes,omitempty" yaml:"notes"`
}

// AlternateRequirement is a fallback dose-count/timing combination that
// substitutes for the primary schedule when met. VaccineCode defaults to the
// parent requirement's code when empty. Alternates are tried in declaration
// order.
type AlternateRequirement struct {
	VaccineCode        string   `json:"alternateVaccineCode,omitempty" yaml:"alternateVaccineCode"`
	MinDoses           int      `json:"minDoses" yaml:"minDoses"`
	Description        string   `json:"description,omitempty" yaml:"description"`
	DateConditions     []string `json:"dateConditions,omitempty" yaml:"dateConditions"`
	IntervalConditions []string `json:"intervalConditions,omitempty" yaml:"intervalConditions"`
}

// UnmetRequirement describes one requirement that definitely failed.
type UnmetRequirement struct {
	VaccineCode   string `json:"vaccineCode"`
	RequiredDoses int    `json:"requiredDoses"`
	FoundDoses    int    `json:"foundDoses"`
	Description   string `json:"description,omitempty"`
}

// UndeterminedCondition describes one requirement that could not be
// evaluated, with a remediation hint for the caller.
type UndeterminedCondition struct {
	VaccineCode string `json:"vaccineCode,omitempty"`
	Condition   string `json:"condition,omitempty"`
	Reason      string `json:"reason"`
	Details     string `json:"details,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ValidationMetadata summarizes a validation run for auditing and debugging.
type ValidationMetadata struct {
	ValidatedAt              time.Time `json:"validatedAt"`
	State                    string    `json:"state,omitempty"`
	SchoolYear               string    `json:"schoolYear,omitempty"`
	TotalRequirements        int       `json:"totalRequirements"`
	SatisfiedRequirements    int       `json:"satisfiedRequirements"`
	UnsatisfiedRequirements  int       `json:"unsatisfiedRequirements"`
	UndeterminedRequirements int       `json:"undeterminedRequirements"`
	ValidatorVersion         string    `json:"validatorVersion,omitempty"`
}

// ValidationResponse is the per-patient validation result. Status is the
// authoritative tri-state verdict; Valid is kept for callers that predate it
// and maps UNDETERMINED to false.
type ValidationResponse struct {
	PatientID              string                  `json:"id"`
	Status                 ComplianceStatus        `json:"status"`
	Valid                  bool                    `json:"valid"`
	Message                string                  `json:"message,omitempty"`
	Metadata               *ValidationMetadata     `json:"metadata,omitempty"`
	UnmetRequirements      []UnmetRequirement      `json:"unmetRequirements,omitempty"`
	UndeterminedConditions []UndeterminedCondition `json:"undeterminedConditions,omitempty"`
	Warnings               []string                `json:"warnings,omitempty"`
}

// BatchValidationRequest validates several patients against one
// state/age/school-year context.
type BatchValidationRequest struct {
	State        string    `json:"state"`
	Age          *int      `json:"age,omitempty"`
	SchoolYear   string    `json:"schoolYear,omitempty"`
	ResponseMode string    `json:"responseMode,omitempty"` // "simple" or "detailed"
	Patients     []Patient `json:"patients"`
}

// BatchValidationResponse carries one result per input patient, in input
// order.
type BatchValidationResponse struct {
	Results []ValidationResponse `json:"results"`
}
